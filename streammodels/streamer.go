package streammodels

import "time"

//StreamerState is the persisted view of a single tracked streamer. It is keyed by the streamer's platform id.
type StreamerState struct {
	ID              string `json:"id"`
	UserName        string `json:"user_name"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
	OfflineImageURL string `json:"offline_image_url"`

	IsLive               bool       `json:"is_live"`
	WentLiveAt           *time.Time `json:"went_live_at,omitempty"`
	WentOfflineAt        *time.Time `json:"went_offline_at,omitempty"`
	CurrentTitle         string     `json:"current_title"`
	CurrentGameID        string     `json:"current_game_id"`
	CurrentGameName      string     `json:"current_game_name"`
	CurrentGameBoxArtURL string     `json:"current_game_box_art_url"`
	CurrentViewerCount   int64      `json:"current_viewer_count"`
	ThumbnailTemplateURL string     `json:"thumbnail_template_url"`
	LinkToVOD            *string    `json:"link_to_vod,omitempty"`

	Announcements []Announcement `json:"announcements"`
	Snapshots     Snapshots      `json:"snapshots"`
	Games         GameEvents     `json:"games"`
}

//Announcement is one chat destination that wants updates for a streamer.
//An empty LastMessageID means no online message has been sent to it yet.
type Announcement struct {
	GuildID          string `json:"guild_id"`
	ChannelID        string `json:"channel_id"`
	AnnouncementText string `json:"announcement_text"`
	LastMessageID    string `json:"last_message_id,omitempty"`
}

//HasSentMessage reports whether an online message exists that later updates may edit.
func (a Announcement) HasSentMessage() bool {
	return a.LastMessageID != ""
}

//NewStreamerState returns an empty offline state for the given streamer id.
func NewStreamerState(id string) *StreamerState {
	return &StreamerState{
		ID:            id,
		Announcements: []Announcement{},
		Snapshots:     Snapshots{},
		Games:         GameEvents{},
	}
}

//ChannelURL returns the public channel link for the streamer.
func (s *StreamerState) ChannelURL() string {
	return "https://twitch.tv/" + s.UserName
}

//SecondsSinceLive returns the whole seconds elapsed between going live and t, or 0 if the streamer has no live timestamp.
func (s *StreamerState) SecondsSinceLive(t time.Time) int64 {
	if s.WentLiveAt == nil {
		return 0
	}
	secs := int64(t.Sub(*s.WentLiveAt) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

//LiveDuration is how long the current (or last) broadcast has lasted, measured at now while live.
func (s *StreamerState) LiveDuration(now time.Time) time.Duration {
	start := now
	if s.WentLiveAt != nil {
		start = *s.WentLiveAt
	}
	end := now
	if !s.IsLive && s.WentOfflineAt != nil {
		end = *s.WentOfflineAt
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

//HasAnnouncements reports whether any chat destination tracks this streamer.
func (s *StreamerState) HasAnnouncements() bool {
	return len(s.Announcements) > 0
}

//AnnouncementsInGuild returns the announcements registered for a single guild.
func (s *StreamerState) AnnouncementsInGuild(guildID string) []Announcement {
	var res []Announcement
	for _, a := range s.Announcements {
		if a.GuildID == guildID {
			res = append(res, a)
		}
	}
	return res
}

//AddAnnouncement registers a new chat destination.
func (s *StreamerState) AddAnnouncement(a Announcement) {
	s.Announcements = append(s.Announcements, a)
}

//RemoveAnnouncements drops every announcement for the given guild and returns how many were removed.
func (s *StreamerState) RemoveAnnouncements(guildID string) int {
	kept := s.Announcements[:0]
	removed := 0
	for _, a := range s.Announcements {
		if a.GuildID == guildID {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.Announcements = kept
	return removed
}
