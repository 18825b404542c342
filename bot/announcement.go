package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/streammodels"
	"github.com/callummance/betty/twitch"
	"github.com/dustin/go-humanize"
)

const (
	onlineColour  int = 0x2ecc71
	offlineColour int = 0xe74c3c

	maxTitleLength       = 256
	maxDescriptionLength = 4096

	boxArtWidth  = 300
	boxArtHeight = 400

	neutralEveryone = "@\u200beveryone"
	offlineTemplate = ":red_circle: **{name}** went offline :red_circle:"
)

//RenderAnnouncement builds the chat message for a streamer. Offline messages ignore the custom template.
func RenderAnnouncement(state *streammodels.StreamerState, template, image string, online bool, now time.Time) *discordgo.MessageSend {
	text := offlineTemplate
	if online {
		text = ":green_circle: " + template + " :green_circle:"
	}
	text = strings.NewReplacer(
		"{everyone}", neutralEveryone,
		"{name}", state.DisplayName,
		"{game}", state.CurrentGameName,
		"{link}", state.ChannelURL(),
	).Replace(text)

	colour := offlineColour
	status := "Offline"
	var footer string
	var timestamp *time.Time
	if online {
		colour = onlineColour
		status = "Online"
		elapsed := time.Duration(state.SecondsSinceLive(now)) * time.Second
		footer = fmt.Sprintf("Streaming %v. Stream started at ⫸", formatDuration(elapsed, 2))
		timestamp = state.WentLiveAt
	} else {
		footer = fmt.Sprintf("Streamed for %v. Stream went offline at ⫸", formatDuration(state.LiveDuration(now), 2))
		timestamp = state.WentOfflineAt
	}
	if timestamp == nil {
		timestamp = &now
	}

	gameName := state.CurrentGameName
	if gameName == "" {
		gameName = "Unknown"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Game", Value: gameName, Inline: true},
		{Name: "Status", Value: status, Inline: true},
	}
	if online {
		viewers := state.CurrentViewerCount
		if last, ok := state.Snapshots.Last(); ok && viewers == 0 {
			viewers = last.ViewerCount
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Viewers", Value: humanize.Comma(viewers), Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       truncate(state.CurrentTitle, maxTitleLength),
		URL:         state.ChannelURL(),
		Description: truncate(describeSession(state, online), maxDescriptionLength),
		Color:       colour,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    state.DisplayName,
			URL:     state.ChannelURL(),
			IconURL: state.ProfileImageURL,
		},
		Fields: fields,
		Footer: &discordgo.MessageEmbedFooter{
			Text: footer,
		},
		Timestamp: timestamp.Format(time.RFC3339),
	}
	if state.CurrentGameBoxArtURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: twitch.BoxArtURL(state.CurrentGameBoxArtURL, boxArtWidth, boxArtHeight)}
	}
	if image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: image}
	}

	return &discordgo.MessageSend{
		Content: text,
		Embeds:  []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
}

//describeSession lists the status followed by one line per game segment.
func describeSession(state *streammodels.StreamerState, online bool) string {
	var sb strings.Builder
	if online {
		sb.WriteString("**Status:** Online")
	} else {
		sb.WriteString("**Status:** Offline")
	}
	for _, g := range state.Games {
		sb.WriteString("\n⫸ ")
		offset := clockOffset(g.SecondsSinceLive)
		if state.LinkToVOD != nil {
			fmt.Fprintf(&sb, "[%v](%v?t=%v)", offset, *state.LinkToVOD, vodOffset(g.SecondsSinceLive))
		} else {
			sb.WriteString(offset)
		}
		sb.WriteString(" ")
		sb.WriteString(g.GameName)
		if g.DurationSeconds == nil {
			sb.WriteString(" (still streaming)")
		} else {
			fmt.Fprintf(&sb, " (%v)", formatDuration(time.Duration(*g.DurationSeconds)*time.Second, 2))
		}
	}
	return sb.String()
}

//clockOffset renders seconds as h:mm:ss.
func clockOffset(secs int64) string {
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}

//vodOffset renders seconds in the form the platform accepts for a video start time.
func vodOffset(secs int64) string {
	return fmt.Sprintf("%dh%dm%ds", secs/3600, (secs/60)%60, secs%60)
}

//formatDuration renders d compactly, e.g. "2h, 15m", starting at the first non-zero unit and keeping at most maxParts units.
func formatDuration(d time.Duration, maxParts int) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	parts := []struct {
		value int64
		unit  string
	}{
		{total / 86400, "d"},
		{(total / 3600) % 24, "h"},
		{(total / 60) % 60, "m"},
		{total % 60, "s"},
	}
	var out []string
	for _, p := range parts {
		if len(out) == 0 && p.value == 0 {
			continue
		}
		out = append(out, fmt.Sprintf("%d%v", p.value, p.unit))
		if len(out) == maxParts {
			break
		}
	}
	if len(out) == 0 {
		return "0s"
	}
	return strings.Join(out, ", ")
}

//truncate shortens s to at most max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	const marker = "..."
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-len(marker)]) + marker
}

//Preview renders an announcement without sending it. Used when operators check a template.
func Preview(state *streammodels.StreamerState, template string, online bool, now time.Time) *discordgo.MessageSend {
	image := ""
	if last, ok := state.Snapshots.Last(); ok {
		image = last.ThumbnailURL
	} else if online && state.ThumbnailTemplateURL != "" {
		image = twitch.ThumbnailURL(state.ThumbnailTemplateURL, thumbnailWidth, thumbnailHeight)
	} else {
		image = state.OfflineImageURL
	}
	return RenderAnnouncement(state, template, image, online, now)
}
