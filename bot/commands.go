package bot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/callummance/betty/telemetry"
	"github.com/sirupsen/logrus"
)

//commandHandler runs a single subcommand. args holds everything after the subcommand name.
type commandHandler func(b *Bot, ctx context.Context, msg *discordgo.Message, args string) Response

type command struct {
	handler   commandHandler
	adminOnly bool
}

//commandSyntax holds the usage shown alongside syntax errors.
var commandSyntax = map[string]string{
	"add":     "```!twitch add <twitch> <#channel> <message>\n<twitch> can be a twitch username or channel URL\n<message> may use {name}, {game}, {link} and {everyone}```",
	"remove":  "```!twitch remove <twitch>```",
	"list":    "```!twitch list```",
	"preview": "```!twitch preview <twitch> [online|offline]```",
}

//commands is the dispatch table for everything under the command prefix.
var commands = map[string]command{
	"add": {
		handler:   (*Bot).addCommand,
		adminOnly: true,
	},
	"remove": {
		handler:   (*Bot).removeCommand,
		adminOnly: true,
	},
	"list": {
		handler: (*Bot).listCommand,
	},
	"preview": {
		handler: (*Bot).previewCommand,
	},
}

//HandleMessage is called upon every recieved message. It checks if the message is a command, and executes it.
func (b *Bot) HandleMessage(msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || b.Messenger == nil {
		return
	}
	ctx := telemetry.WithCorrelation(context.Background(), msg.ID)
	result := b.RunCommand(ctx, msg.Message)
	if result == nil {
		return
	}
	result.WriteToLog()
	resp := result.DiscordResponse()
	resp.Reference = &discordgo.MessageReference{
		MessageID: msg.ID,
		ChannelID: msg.ChannelID,
		GuildID:   msg.GuildID,
	}
	if _, err := b.Messenger.SendMessage(ctx, msg.ChannelID, resp); err != nil {
		logrus.Errorf("Failed to send response to command due to error %v", err)
	}
}

//RunCommand parses and executes a chat command. It returns nil if the message is not addressed to the bot.
func (b *Bot) RunCommand(ctx context.Context, msg *discordgo.Message) Response {
	content := strings.TrimSpace(msg.Content)
	rest, ok := strings.CutPrefix(content, b.opts.CommandPrefix)
	if !ok || (rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n') {
		return nil
	}
	parts := splitArgs(rest, 2)
	if len(parts) == 0 {
		return b.syntaxError("", content, "Missing subcommand", b.helpText())
	}
	name := strings.ToLower(parts[0])
	cmd, ok := commands[name]
	if !ok {
		return b.syntaxError(name, content, "Unknown subcommand "+name, b.helpText())
	}
	if msg.GuildID == "" {
		return b.syntaxError(name, content, "Commands can only be used inside a server", commandSyntax[name])
	}
	if cmd.adminOnly {
		var userID string
		if msg.Author != nil {
			userID = msg.Author.ID
		}
		allowed, err := b.Messenger.IsAdministrator(userID, msg.ChannelID)
		if err != nil {
			return ResponseInternalError{
				command:     name,
				commandMsg:  content,
				description: "failed to check your permissions",
				err:         err,
				timestamp:   time.Now(),
			}
		}
		if !allowed {
			return ResponseNotAllowed{command: name, commandMsg: content, timestamp: time.Now()}
		}
	}
	var args string
	if len(parts) > 1 {
		args = parts[1]
	}
	return cmd.handler(b, ctx, msg, args)
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("Available subcommands:")
	for _, name := range []string{"add", "remove", "list", "preview"} {
		sb.WriteString("\n")
		sb.WriteString(commandSyntax[name])
	}
	return sb.String()
}

func (b *Bot) syntaxError(command, commandMsg, description, syntax string) Response {
	return ResponseSyntaxError{
		command:     b.opts.CommandPrefix + " " + command,
		commandMsg:  commandMsg,
		description: description,
		syntax:      syntax,
		timestamp:   time.Now(),
	}
}
