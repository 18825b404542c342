package twitch

import (
	"encoding/json"
	"strings"
)

//EventKind is the kind of change an incoming notification refers to.
type EventKind string

const (
	//EventStream is any change in a streamer's live state.
	EventStream EventKind = "stream"
	//EventUnknown is a notification the engine does not act on.
	EventUnknown EventKind = "unknown"
)

//Event is a normalized inbound notification. It carries only the streamer identity;
//current state is always re-read from the API.
type Event struct {
	UserID   string
	UserName string
	Kind     EventKind
}

type notificationBody struct {
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
	Event struct {
		BroadcasterUserID    string `json:"broadcaster_user_id"`
		BroadcasterUserLogin string `json:"broadcaster_user_login"`
	} `json:"event"`
}

//NormalizeEvent turns the query parameters and body captured from a webhook delivery into an Event.
//The callback query takes precedence; the notification body is used when the query lacks a user id.
func NormalizeEvent(query map[string]string, body string) (*Event, error) {
	cbtype := query["cbtype"]
	userID := query["user_id"]
	userName := query["user_name"]

	if cbtype != "" && cbtype != string(EventStream) {
		return &Event{UserID: userID, UserName: userName, Kind: EventUnknown}, nil
	}
	if userID != "" {
		return &Event{UserID: userID, UserName: userName, Kind: EventStream}, nil
	}

	if strings.TrimSpace(body) == "" {
		return nil, &MalformedEventError{Reason: "no user_id in query and empty body"}
	}
	var n notificationBody
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		return nil, &MalformedEventError{Reason: "undecodable body: " + err.Error()}
	}
	if n.Event.BroadcasterUserID == "" {
		return nil, &MalformedEventError{Reason: "no broadcaster_user_id in body"}
	}
	kind := EventUnknown
	switch n.Subscription.Type {
	case SubscriptionStreamOnline, SubscriptionStreamOffline:
		kind = EventStream
	}
	return &Event{
		UserID:   n.Event.BroadcasterUserID,
		UserName: n.Event.BroadcasterUserLogin,
		Kind:     kind,
	}, nil
}
