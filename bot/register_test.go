package bot

import (
	"context"
	"testing"

	"github.com/callummance/betty/twitch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterCreatesStateOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.platform.addUser("100", "alice")

	reg, err := h.bot.Register(ctx, "Alice", "g1", "c1", "{name} live")
	require.NoError(t, err)
	assert.True(t, reg.IsNew)
	assert.Equal(t, 2, h.registry.created)

	reg, err = h.bot.Register(ctx, "alice", "g2", "c2", "{name} live")
	require.NoError(t, err)
	assert.False(t, reg.IsNew)
	assert.Len(t, reg.State.Announcements, 2)
	assert.Equal(t, 2, h.registry.created)

	_, err = h.bot.Register(ctx, "nobody", "g1", "c1", "x")
	assert.True(t, twitch.IsNotFound(err))
}

func TestUnregisterKeepsState(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	seedStreamer(t, h, "c1", "c2")
	_, err := h.bot.Register(ctx, "alice", "g2", "c3", "x")
	require.NoError(t, err)

	_, removed, err := h.bot.Unregister(ctx, "alice", "g1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	state := loadState(t, h)
	require.Len(t, state.Announcements, 1)
	assert.Equal(t, "g2", state.Announcements[0].GuildID)

	_, _, err = h.bot.Unregister(ctx, "alice", "g1")
	assert.ErrorIs(t, err, ErrNoAnnouncements)

	h.platform.addUser("200", "bob")
	_, _, err = h.bot.Unregister(ctx, "bob", "g1")
	assert.ErrorIs(t, err, ErrUnknownStreamer)
}

func TestListFiltersByGuild(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.platform.addUser("100", "zed")
	h.platform.addUser("200", "amy")
	_, err := h.bot.Register(ctx, "zed", "g1", "c1", "z")
	require.NoError(t, err)
	_, err = h.bot.Register(ctx, "amy", "g1", "c2", "a")
	require.NoError(t, err)
	_, err = h.bot.Register(ctx, "amy", "g2", "c3", "a2")
	require.NoError(t, err)

	listings, err := h.bot.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "Amy", listings[0].DisplayName)
	assert.Equal(t, "Zed", listings[1].DisplayName)

	all, err := h.bot.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPreviewForDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.platform.addUser("100", "alice")

	msg, err := h.bot.PreviewFor(ctx, "alice", "g1", true)
	require.NoError(t, err)
	assert.Contains(t, msg.Content, "Alice just went online")
	assert.Equal(t, onlineColour, msg.Embeds[0].Color)

	state, err := h.store.Get(ctx, "100")
	require.NoError(t, err)
	assert.Nil(t, state)
	sent, _ := h.messenger.counts()
	assert.Zero(t, sent)
}
