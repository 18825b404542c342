package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const botScope = "bot"
const permissions = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks | discordgo.PermissionReadMessageHistory

//EventHandler is a struct which can handle all the events the discord listener generates.
type EventHandler interface {
	HandleMessage(*discordgo.MessageCreate)
}

//EventSource represents a connection to the Discord gateway
type EventSource struct {
	discordClient *discordgo.Session
	handler       EventHandler
}

//StartDiscordListener opens a gateway session with the given bot token. If handler is nil, incoming messages are ignored.
func StartDiscordListener(token string, handler EventHandler) (*EventSource, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token was not provided")
	}

	//Create new client
	dc, err := discordgo.New("Bot " + token)
	if err != nil {
		logrus.Warnf("Failed to create Discord gateway client due to %v", err)
		return nil, err
	}
	dispatch := EventSource{
		discordClient: dc,
		handler:       handler,
	}

	//Register event handlers
	if handler != nil {
		dc.AddHandler(dispatch.dispatchMessageCreateEvent)
	}

	//Register intents
	dc.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	//Open a websocket connection
	err = dc.Open()
	if err != nil {
		logrus.Errorf("Failed to connect to discord websockets gateway; encountered error %v", err)
		return nil, err
	}
	return &dispatch, nil
}

//SetHandler replaces the handler that incoming messages are dispatched to.
func (d *EventSource) SetHandler(handler EventHandler) {
	if d.handler == nil && handler != nil {
		d.discordClient.AddHandler(d.dispatchMessageCreateEvent)
	}
	d.handler = handler
}

//BotAddURL generates a URL that can be used to add the bot to a server
func (d *EventSource) BotAddURL() (*url.URL, error) {
	user, err := d.discordClient.User("@me")
	if err != nil {
		return nil, err
	}
	clientID := user.ID

	u, err := url.Parse("https://discord.com/api/oauth2/authorize")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client_id", clientID)
	q.Set("scope", botScope)
	q.Set("permissions", fmt.Sprintf("%d", permissions))
	u.RawQuery = q.Encode()

	return u, nil
}

//Close cleanly terminates the Discord connection
func (d *EventSource) Close() {
	logrus.Info("Terminating discord event listener...")
	_ = d.discordClient.Close()
}

//Session returns a handle to the underlying discordgo session
func (d *EventSource) Session() *discordgo.Session {
	return d.discordClient
}

//SendMessage posts a new message and returns its id.
func (d *EventSource) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (string, error) {
	m, err := d.discordClient.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

//EditMessage replaces the content and embeds of an existing message.
func (d *EventSource) EditMessage(ctx context.Context, channelID, messageID string, msg *discordgo.MessageSend) error {
	edit := discordgo.MessageEdit{
		ID:              messageID,
		Channel:         channelID,
		Content:         &msg.Content,
		Embeds:          &msg.Embeds,
		AllowedMentions: msg.AllowedMentions,
	}
	_, err := d.discordClient.ChannelMessageEditComplex(&edit, discordgo.WithContext(ctx))
	return err
}

//MessageExists reports whether a message can still be fetched. A deleted message or channel is not an error.
func (d *EventSource) MessageExists(ctx context.Context, channelID, messageID string) (bool, error) {
	_, err := d.discordClient.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err == nil {
		return true, nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

//IsAdministrator reports whether a user holds the Administrator permission in a channel.
func (d *EventSource) IsAdministrator(userID, channelID string) (bool, error) {
	perms, err := d.discordClient.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false, err
	}
	return perms&discordgo.PermissionAdministrator != 0, nil
}

func (d *EventSource) dispatchMessageCreateEvent(s *discordgo.Session, m *discordgo.MessageCreate) {
	//Ignore messages created by bot
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}

	//Prevent panic from crashing the whole bot
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("Bot handler thread panicked: %v", r)
		}
	}()

	//Dispatch to bot handlers
	if d.handler != nil {
		d.handler.HandleMessage(m)
	}
}
