package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/callummance/betty/bot"
	"github.com/callummance/betty/config"
	"github.com/callummance/betty/db"
	"github.com/callummance/betty/discord"
	"github.com/callummance/betty/media"
	"github.com/callummance/betty/queue"
	"github.com/callummance/betty/twitch"
	"github.com/sirupsen/logrus"
)

const upstreamTimeout = 30 * time.Second

//openStore connects to the configured key-value backend.
func openStore(ctx context.Context, c *config.Config) (db.Store, error) {
	switch c.Store.Backend {
	case config.StoreMemory:
		logrus.Warn("Using the in-memory store; streamer state will not survive a restart")
		return db.NewMemoryStore(), nil
	case config.StoreRethink:
		return db.InitRethink(db.RethinkOptions{
			Address:  c.Store.RethinkAddress,
			Database: c.Store.RethinkDatabase,
		})
	case config.StorePostgres:
		return db.OpenPostgres(ctx, c.Store.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
}

//openQueue connects to the configured inbound queue. The returned function releases it.
func openQueue(c *config.Config) (queue.Queue, func(), error) {
	switch c.Queue.Backend {
	case config.QueueMemory:
		logrus.Warn("Using the in-memory queue; undelivered webhooks are lost on restart")
		return queue.NewMemoryQueue(), func() {}, nil
	case config.QueueValkey:
		q, err := queue.NewValkeyQueue(queue.ValkeyConfig{
			Address:   c.Queue.ValkeyAddress,
			Password:  c.Queue.ValkeyPassword,
			DB:        c.Queue.ValkeyDB,
			KeyPrefix: c.Queue.KeyPrefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return q, q.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", c.Queue.Backend)
	}
}

func newTwitchClient(c *config.Config) *twitch.Client {
	httpClient := &http.Client{Timeout: upstreamTimeout}
	return &twitch.Client{
		AppTokenSource: &twitch.TokenSource{
			ClientID:     c.Twitch.ClientID,
			ClientSecret: c.Twitch.ClientSecret,
			HTTPClient:   httpClient,
		},
		ClientID:   c.Twitch.ClientID,
		BaseURL:    c.Twitch.APIBaseURL,
		HTTPClient: httpClient,
	}
}

//newMediaDeps returns the image host and animator, or nils if no image host is configured.
func newMediaDeps(c *config.Config) (bot.ImageHost, bot.Animator) {
	if c.Media.ImgbbAPIKey == "" {
		logrus.Warn("No image host configured; announcements will link platform thumbnails directly")
		return nil, nil
	}
	httpClient := &http.Client{Timeout: upstreamTimeout}
	uploader := &media.Uploader{APIKey: c.Media.ImgbbAPIKey, HTTPClient: httpClient}
	compositor := media.NewCompositor()
	compositor.HTTPClient = httpClient
	compositor.Width = c.Media.GIFWidth
	compositor.FrameDelay = c.Media.FrameDelay
	compositor.FinalFrameDelay = c.Media.FinalFrameDelay
	return uploader, compositor
}

//engine bundles a Bot with the resources it holds open.
type engine struct {
	bot     *bot.Bot
	discord *discord.EventSource
	store   db.Store
	closers []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	if e.discord != nil {
		e.discord.Close()
	}
	if err := e.store.Close(); err != nil {
		logrus.Warnf("Failed to close store: %v", err)
	}
}

type engineOptions struct {
	withQueue   bool
	withDiscord bool
}

//newEngine wires a Bot from configuration. A Discord session is opened only if requested and a token is set.
func newEngine(ctx context.Context, c *config.Config, opts engineOptions) (*engine, error) {
	store, err := openStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	e := &engine{store: store}
	client := newTwitchClient(c)
	images, animator := newMediaDeps(c)
	deps := bot.Deps{
		Streamers:     db.NewStreamers(store),
		Platform:      client,
		Subscriptions: client,
		Images:        images,
		Animator:      animator,
	}

	if opts.withQueue {
		q, closeQueue, err := openQueue(c)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to open queue: %w", err)
		}
		e.closers = append(e.closers, closeQueue)
		deps.Queue = q
	}
	if opts.withDiscord && c.Discord.Token != "" {
		ds, err := discord.StartDiscordListener(c.Discord.Token, nil)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("failed to connect to discord: %w", err)
		}
		e.discord = ds
		deps.Messenger = ds
	}

	e.bot = bot.New(bot.OptionsFromConfig(c), deps)
	return e, nil
}
