package twitch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

//DefaultBaseURL is the root of the Helix REST API.
const DefaultBaseURL = "https://api.twitch.tv/helix"

//Client talks to the Helix API using an app access token.
type Client struct {
	AppTokenSource *TokenSource
	ClientID       string
	BaseURL        string
	HTTPClient     *http.Client
}

//User is a platform account.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Description     string `json:"description"`
	ProfileImageURL string `json:"profile_image_url"`
	OfflineImageURL string `json:"offline_image_url"`
}

//Stream is a live broadcast.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameID       string    `json:"game_id"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int64     `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

//Game is a category a stream can be listed under.
type Game struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BoxArtURL string `json:"box_art_url"`
}

//Video is a stored broadcast or upload.
type Video struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Duration  string    `json:"duration"`
	CreatedAt time.Time `json:"created_at"`
}

type pagination struct {
	Cursor string `json:"cursor"`
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

//do performs an authenticated request and decodes a JSON response into out, if out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	tok, err := c.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	u := c.baseURL() + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Warnf("Failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode == http.StatusUnauthorized {
		c.AppTokenSource.Invalidate()
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

//GetUsersByID fetches the accounts with the given ids. Unknown ids are absent from the result.
func (c *Client) GetUsersByID(ctx context.Context, ids ...string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("id", id)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", q, nil, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

//GetUserByID fetches a single account by id.
func (c *Client) GetUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, fmt.Errorf("user id empty")
	}
	users, err := c.GetUsersByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, &NotFoundError{What: "user " + id}
	}
	return &users[0], nil
}

//GetUserByLogin fetches a single account by login name.
func (c *Client) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	if login == "" {
		return nil, fmt.Errorf("login empty")
	}
	q := url.Values{}
	q.Set("login", strings.ToLower(login))
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users", q, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, &NotFoundError{What: "user " + login}
	}
	return &body.Data[0], nil
}

//GetStream returns the live stream for a user, or nil if they are offline.
func (c *Client) GetStream(ctx context.Context, userID string) (*Stream, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/streams", q, nil, &body); err != nil {
		return nil, err
	}
	for i := range body.Data {
		if body.Data[i].Type == "" || body.Data[i].Type == "live" {
			return &body.Data[i], nil
		}
	}
	return nil, nil
}

//GetGame returns a category by id, or nil if there is none.
func (c *Client) GetGame(ctx context.Context, id string) (*Game, error) {
	if id == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("id", id)
	var body struct {
		Data []Game `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/games", q, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}

//GetLatestArchive returns the most recent stored broadcast of a user, or nil if there is none.
func (c *Client) GetLatestArchive(ctx context.Context, userID string) (*Video, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	q.Set("type", "archive")
	q.Set("first", "1")
	var body struct {
		Data []Video `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/videos", q, nil, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, nil
	}
	return &body.Data[0], nil
}
