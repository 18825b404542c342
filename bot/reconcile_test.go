package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/callummance/betty/streammodels"
	"github.com/callummance/betty/twitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStreamer(t *testing.T, h *harness, channels ...string) {
	t.Helper()
	h.platform.addUser("100", "alice")
	for _, ch := range channels {
		_, err := h.bot.Register(context.Background(), "alice", "g1", ch, "{everyone} {name} is playing {game} at {link}")
		require.NoError(t, err)
	}
}

func loadState(t *testing.T, h *harness) *streammodels.StreamerState {
	t.Helper()
	state, err := h.store.Get(context.Background(), "100")
	require.NoError(t, err)
	require.NotNil(t, state)
	return state
}

func TestDecide(t *testing.T) {
	now := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	liveSince := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}
	tests := []struct {
		name   string
		isLive bool
		since  *time.Time
		live   bool
		want   Transition
	}{
		{name: "offline stays offline", want: TransitionNone},
		{name: "offline goes live", live: true, want: TransitionWentLive},
		{name: "live stays live", isLive: true, since: liveSince(time.Hour), live: true, want: TransitionUpdated},
		{name: "flap inside window", isLive: true, since: liveSince(100 * time.Second), want: TransitionDebounced},
		{name: "offline after window", isLive: true, since: liveSince(300 * time.Second), want: TransitionWentOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := streammodels.NewStreamerState("100")
			state.IsLive = tt.isLive
			state.WentLiveAt = tt.since
			assert.Equal(t, tt.want, Decide(state, tt.live, now, 240*time.Second))
		})
	}
}

func TestReconcileOfflineIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")

	for i := 0; i < 2; i++ {
		tr, err := h.bot.Reconcile(ctx, "100")
		require.NoError(t, err)
		assert.Equal(t, TransitionNone, tr)
	}

	state := loadState(t, h)
	assert.False(t, state.IsLive)
	assert.Empty(t, state.Snapshots)
	assert.Empty(t, state.Games)
	assert.Equal(t, "Alice", state.DisplayName)
	sent, edits := h.messenger.counts()
	assert.Zero(t, sent)
	assert.Zero(t, edits)
}

func TestReconcileRefreshesIdentityWhileOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.platform.users["100"].DisplayName = "ALICE"

	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, "ALICE", loadState(t, h).DisplayName)
}

func TestGoLiveSendsThenUpdatesEdit(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1", "c2")
	h.goLiveAt("100", "1")

	tr, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionWentLive, tr)

	sent, edits := h.messenger.counts()
	assert.Equal(t, 2, sent)
	assert.Zero(t, edits)

	state := loadState(t, h)
	assert.True(t, state.IsLive)
	require.NotNil(t, state.WentLiveAt)
	assert.True(t, state.WentLiveAt.Equal(h.clock))
	assert.Nil(t, state.WentOfflineAt)
	assert.Equal(t, "Celeste", state.CurrentGameName)
	require.Len(t, state.Snapshots, 1)
	assert.Equal(t, "https://i.example/1.jpg", state.Snapshots[0].ThumbnailURL)
	require.Len(t, state.Games, 1)
	assert.True(t, state.Games[0].IsOpen())
	assert.Zero(t, state.Games[0].SecondsSinceLive)
	require.Len(t, state.Announcements, 2)
	require.Len(t, h.messenger.sent, 2)
	for i, a := range state.Announcements {
		assert.Equal(t, h.messenger.sent[i].channelID, a.ChannelID)
		assert.Equal(t, h.messenger.sent[i].messageID, a.LastMessageID)
	}
	assert.NotEqual(t, state.Announcements[0].LastMessageID, state.Announcements[1].LastMessageID)
	require.Len(t, h.images.fromURL, 1)
	assert.Contains(t, h.images.fromURL[0], "live_100-1280x720.jpg?random=")

	h.advance(2 * time.Minute)
	tr, err = h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionUpdated, tr)

	sent, edits = h.messenger.counts()
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, edits)
	for i, e := range h.messenger.edits {
		assert.Equal(t, state.Announcements[i].LastMessageID, e.messageID)
	}
}

func TestOfflineSignalIsDebounced(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.goLiveAt("100", "1")
	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)

	h.platform.setStream("100", nil)
	h.advance(100 * time.Second)
	tr, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionDebounced, tr)
	assert.True(t, loadState(t, h).IsLive)
	_, edits := h.messenger.counts()
	assert.Zero(t, edits)

	h.advance(200 * time.Second)
	tr, err = h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionWentOffline, tr)

	state := loadState(t, h)
	assert.False(t, state.IsLive)
	require.NotNil(t, state.WentOfflineAt)
	assert.True(t, state.WentOfflineAt.Equal(h.clock))
	require.Len(t, state.Games, 1)
	require.NotNil(t, state.Games[0].DurationSeconds)
	assert.Equal(t, int64(300), *state.Games[0].DurationSeconds)

	sent, edits := h.messenger.counts()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, edits)
	edit := h.messenger.edits[0]
	assert.Equal(t, offlineColour, edit.msg.Embeds[0].Color)
	assert.Equal(t, "https://i.example/highlight.gif", edit.msg.Embeds[0].Image.URL)
	require.Len(t, h.animator.frames, 1)
	assert.Len(t, h.animator.frames[0], 1)
}

func TestOfflineSkipsAnnouncementsWithoutMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.goLiveAt("100", "1")
	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)

	//Registered after the live message went out, so it never got one
	_, err = h.bot.Register(ctx, "alice", "g2", "c9", "{name} is live")
	require.NoError(t, err)

	h.platform.setStream("100", nil)
	h.advance(time.Hour)
	tr, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionWentOffline, tr)

	sent, edits := h.messenger.counts()
	assert.Equal(t, 1, sent)
	require.Equal(t, 1, edits)
	assert.Equal(t, "c1", h.messenger.edits[0].channelID)
}

func TestOfflineWithoutAnySentMessageSkipsHighlight(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.messenger.sendErr = errors.New("missing access")
	h.goLiveAt("100", "1")
	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.False(t, loadState(t, h).Announcements[0].HasSentMessage())

	h.platform.setStream("100", nil)
	h.advance(time.Hour)
	_, err = h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Empty(t, h.animator.frames)
	_, edits := h.messenger.counts()
	assert.Zero(t, edits)
}

func TestDeletedAnnouncementIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1", "c2")
	h.goLiveAt("100", "1")
	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)

	h.messenger.deleted[h.messenger.sent[0].messageID] = true
	h.advance(time.Minute)
	_, err = h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)

	require.Len(t, h.messenger.edits, 1)
	assert.Equal(t, h.messenger.sent[1].messageID, h.messenger.edits[0].messageID)
}

func TestGameChangeOpensSegment(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.goLiveAt("100", "1")
	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)

	h.advance(10 * time.Minute)
	h.platform.streams["100"].GameID = "2"
	tr, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, TransitionUpdated, tr)

	state := loadState(t, h)
	require.Len(t, state.Games, 2)
	require.NotNil(t, state.Games[0].DurationSeconds)
	assert.Equal(t, int64(600), *state.Games[0].DurationSeconds)
	assert.Equal(t, "2", state.Games[1].GameID)
	assert.Equal(t, int64(600), state.Games[1].SecondsSinceLive)
	assert.True(t, state.Games[1].IsOpen())
	assert.Equal(t, "Hades", state.CurrentGameName)

	h.advance(time.Minute)
	_, err = h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, loadState(t, h).Games, 2)
}

func TestMissingGameIDUsesFallback(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.goLiveAt("100", "")

	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	state := loadState(t, h)
	assert.Equal(t, "509658", state.CurrentGameID)
	assert.Equal(t, "Just Chatting", state.CurrentGameName)
}

func TestVODLinkOnlyWhenRecent(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "recent", age: time.Hour, want: true},
		{name: "stale", age: 72 * time.Hour, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness()
			seedStreamer(t, h, "c1")
			h.platform.videos["100"] = &twitch.Video{ID: "987", CreatedAt: h.clock.Add(-tt.age)}
			h.goLiveAt("100", "1")

			_, err := h.bot.Reconcile(ctx, "100")
			require.NoError(t, err)
			state := loadState(t, h)
			if !tt.want {
				assert.Nil(t, state.LinkToVOD)
				return
			}
			require.NotNil(t, state.LinkToVOD)
			assert.Equal(t, "https://www.twitch.tv/videos/987", *state.LinkToVOD)
			assert.Contains(t, h.messenger.sent[0].msg.Embeds[0].Description, "(https://www.twitch.tv/videos/987?t=0h0m0s)")
		})
	}
}

func TestGoLiveUploadFailureUsesRawThumbnail(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.images.err = errors.New("rate limited")
	h.goLiveAt("100", "1")

	_, err := h.bot.Reconcile(ctx, "100")
	require.NoError(t, err)
	state := loadState(t, h)
	require.Len(t, state.Snapshots, 1)
	assert.True(t, strings.HasPrefix(state.Snapshots[0].ThumbnailURL, "https://thumbs.example/live_100-1280x720.jpg?random="))
}

func TestReconcileUnknownUserIsNotFound(t *testing.T) {
	h := newHarness()
	_, err := h.bot.Reconcile(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, twitch.IsNotFound(err))
	assert.Equal(t, ErrorClassDrop, Classify(err))
}

func TestReconcileUnknownGameIsDropped(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1")
	h.goLiveAt("100", "31337")

	_, err := h.bot.Reconcile(ctx, "100")
	require.Error(t, err)
	assert.True(t, twitch.IsNotFound(err))
	assert.Equal(t, ErrorClassDrop, Classify(err))

	assert.False(t, loadState(t, h).IsLive)
	sent, edits := h.messenger.counts()
	assert.Zero(t, sent)
	assert.Zero(t, edits)
}

func TestReconcileCreatesStateOnFirstSight(t *testing.T) {
	h := newHarness()
	h.platform.addUser("200", "bob")
	_, err := h.bot.Reconcile(context.Background(), "200")
	require.NoError(t, err)
	state, err := h.store.Get(context.Background(), "200")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "bob", state.UserName)
	assert.Empty(t, state.Announcements)
}
