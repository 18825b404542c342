package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 450))
	for x := 0; x < 800; x++ {
		for y := 0; y < 450; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComposeBuildsAnimation(t *testing.T) {
	red := pngBytes(t, color.RGBA{R: 255, A: 255})
	blue := pngBytes(t, color.RGBA{B: 255, A: 255})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/red.png":
			w.Write(red)
		case "/blue.png":
			w.Write(blue)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewCompositor()
	c.TempDir = t.TempDir()
	path, err := c.Compose(context.Background(), []string{server.URL + "/red.png", server.URL + "/missing.png", server.URL + "/blue.png"})
	require.NoError(t, err)
	defer os.Remove(path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	require.Len(t, anim.Image, 2)
	assert.Equal(t, []int{50, 200}, anim.Delay)
	assert.Equal(t, 400, anim.Image[0].Bounds().Dx())
	assert.Equal(t, 225, anim.Image[0].Bounds().Dy())
}

func TestComposeWithoutFrames(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	c := NewCompositor()
	_, err := c.Compose(context.Background(), []string{server.URL + "/a.png"})
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestUploadFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("key"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://cdn.example/thumb.jpg", r.PostForm.Get("image"))
		assert.Equal(t, "thumb", r.PostForm.Get("name"))
		w.Write([]byte(`{"data":{"url":"https://i.ibb.co/abc/thumb.jpg"},"success":true,"status":200}`))
	}))
	defer server.Close()

	u := &Uploader{APIKey: "k3y", BaseURL: server.URL}
	link, err := u.UploadFromURL(context.Background(), "https://cdn.example/thumb.jpg", "thumb")
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/abc/thumb.jpg", link)
}

func TestUploadFileFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status_code":400,"error":{"message":"Invalid API v1 key."}}`))
	}))
	defer server.Close()

	path := t.TempDir() + "/x.gif"
	require.NoError(t, os.WriteFile(path, []byte("GIF89a"), 0o600))
	u := &Uploader{APIKey: "bad", BaseURL: server.URL}
	_, err := u.UploadFile(context.Background(), path, "x")
	require.Error(t, err)
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadRequest, ue.StatusCode)
}
