package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/streammodels"
	"github.com/callummance/betty/telemetry"
	"github.com/sirupsen/logrus"
)

const defaultPreviewTemplate = "Hi all, {name} just went online with {game}! Go check it out at {link}"

var (
	//ErrUnknownStreamer is returned when removing announcements for a streamer that has never been registered.
	ErrUnknownStreamer = errors.New("streamer has never been registered")
	//ErrNoAnnouncements is returned when a streamer has no announcements in the given guild.
	ErrNoAnnouncements = errors.New("streamer has no announcements in this guild")
)

//Registration is the outcome of registering an announcement.
type Registration struct {
	State *streammodels.StreamerState
	//IsNew is set when this is the first announcement ever registered for the streamer.
	IsNew bool
}

//Listing is a single announcement together with the streamer it belongs to.
type Listing struct {
	StreamerID   string
	DisplayName  string
	Announcement streammodels.Announcement
}

//Register adds an announcement for the streamer with the given login. The streamer state is created if this is the
//first time the streamer has been seen, in which case a subscription pass is run so that events start flowing.
func (b *Bot) Register(ctx context.Context, login, guildID, channelID, template string) (*Registration, error) {
	user, err := b.Platform.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %v: %w", login, err)
	}

	state, err := b.Streamers.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %v: %w", user.ID, err)
	}
	isNew := state == nil
	if isNew {
		state = streammodels.NewStreamerState(user.ID)
	}
	refreshIdentity(state, user)
	state.AddAnnouncement(streammodels.Announcement{
		GuildID:          guildID,
		ChannelID:        channelID,
		AnnouncementText: template,
	})
	if err := b.Streamers.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save state for %v: %w", user.ID, err)
	}

	log := telemetry.Logger(ctx).WithFields(logrus.Fields{"streamer_id": user.ID, "op": "register"})
	log.Infof("Registered announcement for %v in channel %v", state.DisplayName, channelID)

	if isNew && b.Subscriptions != nil {
		if _, err := b.VerifySubscriptions(ctx); err != nil {
			log.Warnf("Subscription pass after registering a new streamer failed, the next scheduled pass will retry: %v", err)
		}
	}
	return &Registration{State: state, IsNew: isNew}, nil
}

//Unregister removes every announcement for the given login in a guild and returns how many were removed.
//The streamer state itself is kept.
func (b *Bot) Unregister(ctx context.Context, login, guildID string) (*streammodels.StreamerState, int, error) {
	user, err := b.Platform.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to look up user %v: %w", login, err)
	}
	state, err := b.Streamers.Get(ctx, user.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load state for %v: %w", user.ID, err)
	}
	if state == nil {
		return nil, 0, ErrUnknownStreamer
	}
	removed := state.RemoveAnnouncements(guildID)
	if removed == 0 {
		return state, 0, ErrNoAnnouncements
	}
	if err := b.Streamers.Save(ctx, state); err != nil {
		return nil, 0, fmt.Errorf("failed to save state for %v: %w", user.ID, err)
	}
	telemetry.Logger(ctx).WithFields(logrus.Fields{"streamer_id": user.ID, "op": "unregister"}).
		Infof("Removed %d announcements in guild %v", removed, guildID)
	return state, removed, nil
}

//List returns the announcements registered in a guild, or in every guild if guildID is empty, ordered by streamer name.
func (b *Bot) List(ctx context.Context, guildID string) ([]Listing, error) {
	all, err := b.Streamers.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load streamers: %w", err)
	}
	var res []Listing
	for _, s := range all {
		for _, a := range s.Announcements {
			if guildID != "" && a.GuildID != guildID {
				continue
			}
			res = append(res, Listing{StreamerID: s.ID, DisplayName: s.DisplayName, Announcement: a})
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].DisplayName != res[j].DisplayName {
			return res[i].DisplayName < res[j].DisplayName
		}
		return res[i].Announcement.ChannelID < res[j].Announcement.ChannelID
	})
	return res, nil
}

//PreviewFor renders the announcement a streamer would get in a guild, without sending anything. The guild's own
//template is used if it has one. Streamers with no stored state are previewed from their platform profile.
func (b *Bot) PreviewFor(ctx context.Context, login, guildID string, online bool) (*discordgo.MessageSend, error) {
	user, err := b.Platform.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user %v: %w", login, err)
	}
	state, err := b.Streamers.Get(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %v: %w", user.ID, err)
	}
	if state == nil {
		state = streammodels.NewStreamerState(user.ID)
		refreshIdentity(state, user)
	}
	template := defaultPreviewTemplate
	if existing := state.AnnouncementsInGuild(guildID); len(existing) > 0 {
		template = existing[0].AnnouncementText
	}
	now := b.now()
	if online && !state.IsLive {
		state.IsLive = true
		state.WentLiveAt = &now
		state.WentOfflineAt = nil
	} else if !online && state.IsLive {
		state.IsLive = false
		state.WentOfflineAt = &now
	}
	return Preview(state, template, online, now), nil
}
