package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/config"
	"github.com/callummance/betty/db"
	"github.com/callummance/betty/queue"
	"github.com/callummance/betty/twitch"
)

type sentMessage struct {
	channelID string
	messageID string
	msg       *discordgo.MessageSend
}

type fakeMessenger struct {
	mu      sync.Mutex
	next    int
	sent    []sentMessage
	edits   []sentMessage
	deleted map[string]bool
	admins  map[string]bool
	sendErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{deleted: map[string]bool{}, admins: map[string]bool{}}
}

func (m *fakeMessenger) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.next++
	id := fmt.Sprintf("msg-%d", m.next)
	m.sent = append(m.sent, sentMessage{channelID: channelID, messageID: id, msg: msg})
	return id, nil
}

func (m *fakeMessenger) EditMessage(_ context.Context, channelID, messageID string, msg *discordgo.MessageSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, sentMessage{channelID: channelID, messageID: messageID, msg: msg})
	return nil
}

func (m *fakeMessenger) MessageExists(_ context.Context, _, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.deleted[messageID], nil
}

func (m *fakeMessenger) IsAdministrator(userID, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admins[userID], nil
}

func (m *fakeMessenger) counts() (sent, edits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent), len(m.edits)
}

type fakePlatform struct {
	mu         sync.Mutex
	users      map[string]*twitch.User
	streams    map[string]*twitch.Stream
	games      map[string]*twitch.Game
	videos     map[string]*twitch.Video
	streamErr  error
	streamHits int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		users:   map[string]*twitch.User{},
		streams: map[string]*twitch.Stream{},
		games:   map[string]*twitch.Game{},
		videos:  map[string]*twitch.Video{},
	}
}

func (p *fakePlatform) addUser(id, login string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[id] = &twitch.User{
		ID:              id,
		Login:           login,
		DisplayName:     strings.ToUpper(login[:1]) + login[1:],
		ProfileImageURL: "https://img.example/" + login + ".png",
		OfflineImageURL: "https://img.example/" + login + "-offline.png",
	}
}

func (p *fakePlatform) setStream(id string, s *twitch.Stream) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s == nil {
		delete(p.streams, id)
		return
	}
	p.streams[id] = s
}

func (p *fakePlatform) GetUserByID(_ context.Context, id string) (*twitch.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		return nil, &twitch.NotFoundError{What: "user " + id}
	}
	return u, nil
}

func (p *fakePlatform) GetUserByLogin(_ context.Context, login string) (*twitch.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Login == strings.ToLower(login) {
			return u, nil
		}
	}
	return nil, &twitch.NotFoundError{What: "user " + login}
}

func (p *fakePlatform) GetStream(_ context.Context, userID string) (*twitch.Stream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streamHits++
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	s, ok := p.streams[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (p *fakePlatform) GetGame(_ context.Context, id string) (*twitch.Game, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.games[id], nil
}

func (p *fakePlatform) GetLatestArchive(_ context.Context, userID string) (*twitch.Video, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videos[userID], nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	next    int
	subs    []twitch.Subscription
	created int
	deleted int
}

func (r *fakeRegistry) ListSubscriptions(_ context.Context) ([]twitch.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]twitch.Subscription(nil), r.subs...), nil
}

func (r *fakeRegistry) CreateSubscription(_ context.Context, subType, broadcasterID, callback, secret string) (*twitch.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.created++
	sub := twitch.Subscription{
		ID:     fmt.Sprintf("sub-%d", r.next),
		Status: twitch.StatusEnabled,
		Type:   subType,
	}
	sub.Condition.BroadcasterUserID = broadcasterID
	sub.Transport.Method = "webhook"
	sub.Transport.Callback = callback
	r.subs = append(r.subs, sub)
	return &sub, nil
}

func (r *fakeRegistry) DeleteSubscription(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.subs {
		if s.ID == id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			r.deleted++
			return nil
		}
	}
	return &twitch.NotFoundError{What: "subscription " + id}
}

type fakeImages struct {
	mu      sync.Mutex
	fromURL []string
	files   []string
	err     error
}

func (f *fakeImages) UploadFromURL(_ context.Context, imageURL, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.fromURL = append(f.fromURL, imageURL)
	return fmt.Sprintf("https://i.example/%d.jpg", len(f.fromURL)), nil
}

func (f *fakeImages) UploadFile(_ context.Context, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.files = append(f.files, path)
	return "https://i.example/highlight.gif", nil
}

type fakeAnimator struct {
	mu     sync.Mutex
	frames [][]string
}

func (a *fakeAnimator) Compose(_ context.Context, urls []string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames = append(a.frames, urls)
	return "/nonexistent/highlight.gif", nil
}

type harness struct {
	bot       *Bot
	store     *db.Streamers
	messenger *fakeMessenger
	platform  *fakePlatform
	registry  *fakeRegistry
	images    *fakeImages
	animator  *fakeAnimator
	queue     *queue.MemoryQueue
	clock     time.Time
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		DebounceThreshold:    240 * time.Second,
		SnapshotInterval:     5 * time.Minute,
		MaxSnapshots:         50,
		SweepInterval:        time.Minute,
		SweepConcurrency:     4,
		SubscriptionInterval: time.Hour,
		VODMaxAge:            48 * time.Hour,
		FallbackGameID:       "509658",
	}
}

func newHarness() *harness {
	h := &harness{
		store:     db.NewStreamers(db.NewMemoryStore()),
		messenger: newFakeMessenger(),
		platform:  newFakePlatform(),
		registry:  &fakeRegistry{},
		images:    &fakeImages{},
		animator:  &fakeAnimator{},
		queue:     queue.NewMemoryQueue(),
		clock:     time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC),
	}
	h.bot = New(Options{
		Engine:        testEngineConfig(),
		BatchSize:     32,
		MaxAttempts:   3,
		PollInterval:  10 * time.Second,
		CallbackURL:   "https://betty.example/twitch/callback",
		WebhookSecret: "s3cret",
	}, Deps{
		Streamers:     h.store,
		Platform:      h.platform,
		Subscriptions: h.registry,
		Messenger:     h.messenger,
		Images:        h.images,
		Animator:      h.animator,
		Queue:         h.queue,
	})
	h.bot.now = func() time.Time { return h.clock }
	h.platform.games["1"] = &twitch.Game{ID: "1", Name: "Celeste", BoxArtURL: "https://box.example/./1-{width}x{height}.jpg"}
	h.platform.games["2"] = &twitch.Game{ID: "2", Name: "Hades", BoxArtURL: "https://box.example/2-{width}x{height}.jpg"}
	h.platform.games["509658"] = &twitch.Game{ID: "509658", Name: "Just Chatting"}
	return h
}

func (h *harness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

//goLiveAt marks the streamer live with a stream that started at the current clock.
func (h *harness) goLiveAt(id, gameID string) {
	h.platform.setStream(id, &twitch.Stream{
		ID:           "s-" + id,
		UserID:       id,
		GameID:       gameID,
		Title:        "speedruns",
		ViewerCount:  1234,
		StartedAt:    h.clock,
		ThumbnailURL: "https://thumbs.example/live_" + id + "-{width}x{height}.jpg",
	})
}
