package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/twitch"
)

//addCommand registers an announcement for a streamer in a channel of the current guild.
func (b *Bot) addCommand(ctx context.Context, msg *discordgo.Message, args string) Response {
	const name = "add"
	parts := splitArgs(args, 3)
	if len(parts) < 3 {
		return b.syntaxError(name, msg.Content, "I need a streamer, a channel and an announcement message", commandSyntax[name])
	}
	login := interpretBroadcaster(parts[0])
	if login == "" {
		return b.syntaxError(name, msg.Content, fmt.Sprintf("%v is not a twitch username or channel link", parts[0]), commandSyntax[name])
	}
	channelID := interpretChannel(parts[1])
	if channelID == "" {
		return b.syntaxError(name, msg.Content, fmt.Sprintf("%v is not a channel", parts[1]), commandSyntax[name])
	}

	reg, err := b.Register(ctx, login, msg.GuildID, channelID, parts[2])
	if err != nil {
		return b.commandFailure(name, msg.Content, login, err)
	}
	return ResponseSuccess{
		command:     name,
		commandMsg:  msg.Content,
		description: fmt.Sprintf("Announcement for Twitch user %v has been added for <#%v>", reg.State.DisplayName, channelID),
		timestamp:   time.Now(),
	}
}

//removeCommand removes every announcement for a streamer in the current guild.
func (b *Bot) removeCommand(ctx context.Context, msg *discordgo.Message, args string) Response {
	const name = "remove"
	login := interpretBroadcaster(args)
	if login == "" {
		return b.syntaxError(name, msg.Content, "I couldn't understand that", commandSyntax[name])
	}

	state, removed, err := b.Unregister(ctx, login, msg.GuildID)
	switch {
	case errors.Is(err, ErrUnknownStreamer):
		return b.syntaxError(name, msg.Content, "I've never seen this Twitch user before", commandSyntax[name])
	case errors.Is(err, ErrNoAnnouncements):
		return b.syntaxError(name, msg.Content, "This Twitch user has no announcements on your server", commandSyntax[name])
	case err != nil:
		return b.commandFailure(name, msg.Content, login, err)
	}
	return ResponseSuccess{
		command:     name,
		commandMsg:  msg.Content,
		description: fmt.Sprintf("All %d announcements for Twitch user %v have been removed", removed, state.DisplayName),
		timestamp:   time.Now(),
	}
}

//listCommand shows the announcements configured in the current guild.
func (b *Bot) listCommand(ctx context.Context, msg *discordgo.Message, _ string) Response {
	const name = "list"
	listings, err := b.List(ctx, msg.GuildID)
	if err != nil {
		return ResponseInternalError{
			command:     name,
			commandMsg:  msg.Content,
			description: "failed to load announcements",
			err:         err,
			timestamp:   time.Now(),
		}
	}
	if len(listings) == 0 {
		return ResponseSuccess{
			command:     name,
			commandMsg:  msg.Content,
			description: "There are no Twitch users with announcements in your server",
			timestamp:   time.Now(),
		}
	}
	var sb strings.Builder
	sb.WriteString("The following Twitch announcements are configured in your server:")
	for _, l := range listings {
		fmt.Fprintf(&sb, "\n⫸ %v ⫸ <#%v> ⫸ %v", l.DisplayName, l.Announcement.ChannelID, l.Announcement.AnnouncementText)
	}
	return ResponseSuccess{
		command:     name,
		commandMsg:  msg.Content,
		description: truncate(sb.String(), maxDescriptionLength),
		timestamp:   time.Now(),
	}
}

//previewCommand renders what an announcement would look like without sending it to the announcement channel.
func (b *Bot) previewCommand(ctx context.Context, msg *discordgo.Message, args string) Response {
	const name = "preview"
	parts := splitArgs(args, 2)
	if len(parts) == 0 {
		return b.syntaxError(name, msg.Content, "Preview which user?", commandSyntax[name])
	}
	login := interpretBroadcaster(parts[0])
	if login == "" {
		return b.syntaxError(name, msg.Content, fmt.Sprintf("%v is not a twitch username or channel link", parts[0]), commandSyntax[name])
	}
	online := true
	if len(parts) > 1 {
		switch strings.ToLower(parts[1]) {
		case "online":
		case "offline":
			online = false
		default:
			return b.syntaxError(name, msg.Content, "The preview mode must be online or offline", commandSyntax[name])
		}
	}

	rendered, err := b.PreviewFor(ctx, login, msg.GuildID, online)
	if err != nil {
		return b.commandFailure(name, msg.Content, login, err)
	}
	return ResponsePreview{commandMsg: msg.Content, msg: rendered, timestamp: time.Now()}
}

//commandFailure turns an error from a registration operation into a user facing response.
func (b *Bot) commandFailure(name, content, login string, err error) Response {
	if twitch.IsNotFound(err) {
		return b.syntaxError(name, content, fmt.Sprintf("User %v cannot be found", login), commandSyntax[name])
	}
	return ResponseInternalError{
		command:     name,
		commandMsg:  content,
		description: "failed to update announcements",
		err:         err,
		timestamp:   time.Now(),
	}
}
