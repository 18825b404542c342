package twitch

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

//Subscription types tracked for each streamer.
const (
	SubscriptionStreamOnline  = "stream.online"
	SubscriptionStreamOffline = "stream.offline"
)

//Subscription statuses that mean the subscription is working or about to.
const (
	StatusEnabled             = "enabled"
	StatusVerificationPending = "webhook_callback_verification_pending"
)

//Subscription is an EventSub webhook subscription.
type Subscription struct {
	ID        string                `json:"id"`
	Status    string                `json:"status"`
	Type      string                `json:"type"`
	Version   string                `json:"version"`
	Condition SubscriptionCondition `json:"condition"`
	Transport SubscriptionTransport `json:"transport"`
	CreatedAt time.Time             `json:"created_at"`
}

//SubscriptionCondition selects which broadcaster a subscription applies to.
type SubscriptionCondition struct {
	BroadcasterUserID string `json:"broadcaster_user_id"`
}

//SubscriptionTransport describes where notifications are delivered.
type SubscriptionTransport struct {
	Method   string `json:"method"`
	Callback string `json:"callback"`
	Secret   string `json:"secret,omitempty"`
}

//Healthy reports whether the subscription is enabled or awaiting verification.
func (s Subscription) Healthy() bool {
	return s.Status == StatusEnabled || s.Status == StatusVerificationPending
}

//CallbackHasPrefix reports whether the subscription delivers to a callback under base.
func (s Subscription) CallbackHasPrefix(base string) bool {
	return base != "" && strings.HasPrefix(s.Transport.Callback, base)
}

//ListSubscriptions returns every subscription owned by the application, following pagination.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var res []Subscription
	cursor := ""
	for {
		q := url.Values{}
		if cursor != "" {
			q.Set("after", cursor)
		}
		var body struct {
			Data       []Subscription `json:"data"`
			Pagination pagination     `json:"pagination"`
		}
		if err := c.do(ctx, http.MethodGet, "/eventsub/subscriptions", q, nil, &body); err != nil {
			return nil, err
		}
		res = append(res, body.Data...)
		if body.Pagination.Cursor == "" || body.Pagination.Cursor == cursor {
			return res, nil
		}
		cursor = body.Pagination.Cursor
	}
}

//CreateSubscription registers a webhook subscription of the given type for a broadcaster.
func (c *Client) CreateSubscription(ctx context.Context, subType, broadcasterID, callback, secret string) (*Subscription, error) {
	req := struct {
		Type      string                `json:"type"`
		Version   string                `json:"version"`
		Condition SubscriptionCondition `json:"condition"`
		Transport SubscriptionTransport `json:"transport"`
	}{
		Type:      subType,
		Version:   "1",
		Condition: SubscriptionCondition{BroadcasterUserID: broadcasterID},
		Transport: SubscriptionTransport{Method: "webhook", Callback: callback, Secret: secret},
	}
	var body struct {
		Data []Subscription `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/eventsub/subscriptions", nil, req, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}

//DeleteSubscription removes a subscription by id.
func (c *Client) DeleteSubscription(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", id)
	return c.do(ctx, http.MethodDelete, "/eventsub/subscriptions", q, nil, nil)
}
