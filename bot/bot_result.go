package bot

import (
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	successMessageColour int = 0x28bd00
	warnMessageColour    int = 0xbdb900
	errorMessageColour   int = 0xbd1b00
)

//Response represents the result of a chat command which can be both communicated over discord and written to the log.
type Response interface {
	DiscordResponse() *discordgo.MessageSend
	WriteToLog()
}

//ResponseSuccess is returned when a command has been successfully completed
type ResponseSuccess struct {
	//The base command name
	command string
	//The entire text contents of the message
	commandMsg string
	//What was done, shown to the user
	description string
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseSuccess) DiscordResponse() *discordgo.MessageSend {
	return responseMessage(discordgo.MessageEmbed{
		Title:       "Done!",
		Description: r.description,
		Color:       successMessageColour,
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSuccess) WriteToLog() {
	logrus.Infof("%v Completed command %v successfully.", logLineLabel(r.timestamp), r.commandMsg)
}

//ResponseSyntaxError is returned when there was an issue with the user's input
type ResponseSyntaxError struct {
	command     string
	commandMsg  string
	description string
	//A description of the correct syntax
	syntax    string
	timestamp time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseSyntaxError) DiscordResponse() *discordgo.MessageSend {
	return responseMessage(discordgo.MessageEmbed{
		Title:       "Uh-oh, there was something wrong with that command",
		Description: fmt.Sprintf("There was a problem with the data you supplied for the %v command: \n%v", r.command, r.description),
		Color:       errorMessageColour,
		Fields: stringMapToFields(map[string]string{
			"Your command":   r.commandMsg,
			"Correct syntax": r.syntax,
		}),
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseSyntaxError) WriteToLog() {
	logrus.Infof("%v Syntax error in command %v: %v", logLineLabel(r.timestamp), r.commandMsg, r.description)
}

//ResponseInternalError is returned when there was some kind of error within the bot or when communicating with APIs
type ResponseInternalError struct {
	command     string
	commandMsg  string
	description string
	err         error
	timestamp   time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseInternalError) DiscordResponse() *discordgo.MessageSend {
	return responseMessage(discordgo.MessageEmbed{
		Title:       "Oops, something went wrong ;w;",
		Description: fmt.Sprintf("I encountered an unexpected error whilst running your %v command: %v. Please try again later.", r.command, r.description),
		Color:       warnMessageColour,
		Footer: &discordgo.MessageEmbedFooter{
			Text: writeLogRef(r.timestamp),
		},
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseInternalError) WriteToLog() {
	logrus.Errorf("%v Internal error whilst executing command %v: %v | error: %v", logLineLabel(r.timestamp), r.commandMsg, r.description, r.err)
}

//ResponseNotAllowed is returned when a user tried to run a command without the required permission
type ResponseNotAllowed struct {
	command    string
	commandMsg string
	timestamp  time.Time
}

//DiscordResponse builds a MessageSend object which can be sent back to whoever sent a command message.
func (r ResponseNotAllowed) DiscordResponse() *discordgo.MessageSend {
	return responseMessage(discordgo.MessageEmbed{
		Title:       "That's illegal m8",
		Description: "I'm sorry Dave, I can't let you do that...",
		Color:       errorMessageColour,
		Fields: stringMapToFields(map[string]string{
			"Reason":  fmt.Sprintf("The %v command requires the Administrator permission", r.command),
			"Command": r.commandMsg,
		}),
	}, r.timestamp)
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponseNotAllowed) WriteToLog() {
	logrus.Infof("%v Rejected command `%v` as the sender is not an administrator", logLineLabel(r.timestamp), r.commandMsg)
}

//ResponsePreview wraps a rendered announcement so previews go through the same reply path as other results.
type ResponsePreview struct {
	commandMsg string
	msg        *discordgo.MessageSend
	timestamp  time.Time
}

//DiscordResponse returns the rendered announcement.
func (r ResponsePreview) DiscordResponse() *discordgo.MessageSend {
	return r.msg
}

//WriteToLog dumps data on a discord command response to the log
func (r ResponsePreview) WriteToLog() {
	logrus.Infof("%v Rendered preview for command %v", logLineLabel(r.timestamp), r.commandMsg)
}

/////////////////////
//Utility Functions//
/////////////////////
func responseMessage(embed discordgo.MessageEmbed, t time.Time) *discordgo.MessageSend {
	embed.Type = discordgo.EmbedTypeRich
	embed.Timestamp = t.Format(time.RFC3339)
	if embed.Footer == nil {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Log ID: %d", t.UnixNano()),
		}
	}
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{&embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
}

func writeLogRef(t time.Time) string {
	return fmt.Sprintf("More details can be found on log line %v", t.UnixNano())
}

func logLineLabel(t time.Time) string {
	return fmt.Sprintf("#%v# | ", t.UnixNano())
}

func stringMapToFields(fields map[string]string) []*discordgo.MessageEmbedField {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	res := make([]*discordgo.MessageEmbedField, 0, len(names))
	for _, name := range names {
		res = append(res, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  fields[name],
			Inline: false,
		})
	}
	return res
}
