package engine

import (
	"context"
	"fmt"
	"image"

	"video-pipeline-service/internal/stage"

	"golang.org/x/image/draw"
)

// Resize upscales frames with bilinear resampling. Cancellation is polled
// per frame.
type Resize struct{}

func NewResize() stage.UpscalerEngine { return Resize{} }

func (Resize) Upscale(ctx context.Context, frames []image.Image, factor int, hooks stage.Hooks) ([]image.Image, error) {
	if factor < 2 {
		return frames, nil
	}
	if factor > 8 {
		return nil, fmt.Errorf("unsupported scale factor %d", factor)
	}

	out := make([]image.Image, 0, len(frames))
	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hooks.IsCancelled() {
			return nil, stage.ErrCancelled
		}
		hooks.ReportProgress(i, len(frames))

		b := f.Bounds()
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f, b, draw.Src, nil)
		out = append(out, dst)
	}
	return out, nil
}
