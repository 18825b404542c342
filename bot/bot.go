package bot

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/config"
	"github.com/callummance/betty/db"
	"github.com/callummance/betty/queue"
	"github.com/callummance/betty/twitch"
	"github.com/sirupsen/logrus"
)

//Messenger posts and edits announcement messages in chat channels.
type Messenger interface {
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error)
	EditMessage(ctx context.Context, channelID, messageID string, msg *discordgo.MessageSend) error
	MessageExists(ctx context.Context, channelID, messageID string) (bool, error)
	IsAdministrator(userID, channelID string) (bool, error)
}

//Platform looks up live state and metadata on the streaming platform.
type Platform interface {
	GetUserByID(ctx context.Context, id string) (*twitch.User, error)
	GetUserByLogin(ctx context.Context, login string) (*twitch.User, error)
	GetStream(ctx context.Context, userID string) (*twitch.Stream, error)
	GetGame(ctx context.Context, id string) (*twitch.Game, error)
	GetLatestArchive(ctx context.Context, userID string) (*twitch.Video, error)
}

//SubscriptionRegistry manages event subscriptions on the streaming platform.
type SubscriptionRegistry interface {
	ListSubscriptions(ctx context.Context) ([]twitch.Subscription, error)
	CreateSubscription(ctx context.Context, subType, broadcasterID, callback, secret string) (*twitch.Subscription, error)
	DeleteSubscription(ctx context.Context, id string) error
}

//ImageHost rehosts images and returns stable links.
type ImageHost interface {
	UploadFromURL(ctx context.Context, imageURL, name string) (string, error)
	UploadFile(ctx context.Context, path, name string) (string, error)
}

//Animator turns a series of image URLs into an animation file on disk.
type Animator interface {
	Compose(ctx context.Context, urls []string) (string, error)
}

//Options holds the tunables of the engine.
type Options struct {
	Engine             config.EngineConfig
	BatchSize          int
	MaxAttempts        int
	PollInterval       time.Duration
	CallbackURL        string
	WebhookSecret      string
	PruneSubscriptions bool
	CommandPrefix      string
}

//OptionsFromConfig extracts the engine options from the application configuration.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Engine:             c.Engine,
		BatchSize:          c.Queue.BatchSize,
		MaxAttempts:        c.Queue.MaxAttempts,
		PollInterval:       c.Queue.PollInterval,
		CallbackURL:        c.Twitch.CallbackURL,
		WebhookSecret:      c.Twitch.WebhookSecret,
		PruneSubscriptions: c.Twitch.PruneSubscriptions,
		CommandPrefix:      c.Discord.CommandPrefix,
	}
}

//Deps are the collaborators the engine drives. Any of Messenger, Images, Animator, Subscriptions and Queue
//may be nil for commands that do not need them.
type Deps struct {
	Streamers     *db.Streamers
	Platform      Platform
	Subscriptions SubscriptionRegistry
	Messenger     Messenger
	Images        ImageHost
	Animator      Animator
	Queue         queue.Queue
}

//Bot is the streamer state synchronization engine.
type Bot struct {
	opts Options
	Deps
	now func() time.Time

	wg sync.WaitGroup
}

//New creates a Bot.
func New(opts Options, deps Deps) *Bot {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "!twitch"
	}
	return &Bot{
		opts: opts,
		Deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

//Run starts the ingestion, snapshot and subscription loops and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	if b.Queue != nil {
		n, err := b.Queue.Recover(ctx)
		if err != nil {
			logrus.Warnf("Failed to recover in-flight queue messages: %v", err)
		} else if n > 0 {
			logrus.Infof("Returned %d in-flight queue messages to the pending list", n)
		}
		b.startLoop(ctx, "ingest", b.opts.PollInterval, false, b.drainQueue)
	}
	b.startLoop(ctx, "snapshots", b.opts.Engine.SweepInterval, false, b.SweepSnapshots)
	if b.Subscriptions != nil {
		b.startLoop(ctx, "subscriptions", b.opts.Engine.SubscriptionInterval, true, func(ctx context.Context) error {
			_, err := b.VerifySubscriptions(ctx)
			return err
		})
	}
	<-ctx.Done()
	b.wg.Wait()
	logrus.Info("All engine loops stopped")
}

func (b *Bot) startLoop(ctx context.Context, name string, interval time.Duration, immediate bool, fn func(context.Context) error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		logrus.Infof("Starting %v loop, interval %v", name, interval)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		if immediate {
			b.runIteration(ctx, name, fn)
		}
		for {
			select {
			case <-ctx.Done():
				logrus.Infof("%v loop stopped", name)
				return
			case <-ticker.C:
				b.runIteration(ctx, name, fn)
			}
		}
	}()
}

//runIteration runs one tick of a loop. Errors and panics are logged and never end the loop.
func (b *Bot) runIteration(ctx context.Context, name string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("%v loop iteration panicked: %v", name, r)
		}
	}()
	if err := fn(ctx); err != nil {
		logrus.Warnf("%v loop iteration failed: %v", name, err)
	}
}
