package media

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

//DefaultImgbbURL is the imgbb upload API root.
const DefaultImgbbURL = "https://api.imgbb.com/1"

//UploadError is a failed upload. Every upload failure is treated as transient by callers.
type UploadError struct {
	StatusCode int
	Message    string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("image upload failed (%d): %v", e.StatusCode, e.Message)
}

//Uploader rehosts images on imgbb so that chat clients get a stable link.
type Uploader struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (u *Uploader) http() *http.Client {
	if u.HTTPClient != nil {
		return u.HTTPClient
	}
	return http.DefaultClient
}

//UploadFromURL asks the host to fetch and store the image at imageURL, returning the hosted link.
func (u *Uploader) UploadFromURL(ctx context.Context, imageURL, name string) (string, error) {
	return u.upload(ctx, imageURL, name)
}

//UploadFile uploads a local file, returning the hosted link.
func (u *Uploader) UploadFile(ctx context.Context, path, name string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	logrus.Debugf("Uploading %v (%v)", path, humanize.Bytes(uint64(len(b))))
	return u.upload(ctx, base64.StdEncoding.EncodeToString(b), name)
}

func (u *Uploader) upload(ctx context.Context, image, name string) (string, error) {
	base := u.BaseURL
	if base == "" {
		base = DefaultImgbbURL
	}
	form := url.Values{}
	form.Set("image", image)
	if name != "" {
		form.Set("name", name)
	}
	endpoint := strings.TrimSuffix(base, "/") + "/upload?key=" + url.QueryEscape(u.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := u.http().Do(req)
	if err != nil {
		return "", &UploadError{Message: err.Error()}
	}
	defer resp.Body.Close()

	var body struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
		Success bool `json:"success"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: string(raw)}
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}
	if body.Data.URL == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "no url in response: " + body.Error.Message}
	}
	return body.Data.URL, nil
}
