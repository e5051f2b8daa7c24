package engine

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"os"

	"video-pipeline-service/internal/stage"

	"golang.org/x/image/draw"
)

// GIF encodes frames as an animated GIF. Container muxing for the other
// output formats lives behind the same Encoder interface in production.
type GIF struct{}

func NewGIF() stage.Encoder { return GIF{} }

func (GIF) Encode(path string, frames []image.Image, fps int) error {
	if len(frames) == 0 {
		return stage.ErrNoFrames
	}
	if fps < 1 {
		fps = 1
	}

	delay := 100 / fps // centiseconds per frame
	if delay < 1 {
		delay = 1
	}

	anim := &gif.GIF{LoopCount: 0}
	for _, f := range frames {
		p := image.NewPaletted(f.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(p, f.Bounds(), f, f.Bounds().Min)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, delay)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := gif.EncodeAll(out, anim); err != nil {
		out.Close()
		return fmt.Errorf("encode gif: %w", err)
	}
	return out.Close()
}
