package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"net/http"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//ErrNoFrames is returned when none of the requested frames could be fetched.
var ErrNoFrames = errors.New("no frames available for animation")

//Compositor builds an animated GIF from a series of still images.
//Delays are in hundredths of a second.
type Compositor struct {
	HTTPClient      *http.Client
	Width           int
	FrameDelay      int
	FinalFrameDelay int
	TempDir         string
}

//NewCompositor returns a compositor with the default frame timings.
func NewCompositor() *Compositor {
	return &Compositor{Width: 400, FrameDelay: 50, FinalFrameDelay: 200}
}

func (c *Compositor) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

//Compose downloads each image in order and writes the animation to a temporary file, returning its path.
//Frames that fail to download are skipped. The caller owns the file and should remove it.
func (c *Compositor) Compose(ctx context.Context, urls []string) (string, error) {
	anim := &gif.GIF{}
	for _, u := range urls {
		img, err := c.fetch(ctx, u)
		if err != nil {
			logrus.Warnf("Skipping animation frame %v: %v", u, err)
			continue
		}
		if c.Width > 0 {
			img = imaging.Resize(img, c.Width, 0, imaging.Lanczos)
		}
		frame := image.NewPaletted(img.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(frame, img.Bounds(), img, image.Point{})
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, c.FrameDelay)
	}
	if len(anim.Image) == 0 {
		return "", ErrNoFrames
	}
	anim.Delay[len(anim.Delay)-1] = c.FinalFrameDelay

	dir := c.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.NewString()+".gif")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (c *Compositor) fetch(ctx context.Context, u string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %v", resp.Status)
	}
	return imaging.Decode(resp.Body)
}
