package engine

import (
	"context"
	"image"
	"image/color"

	"video-pipeline-service/internal/stage"

	"golang.org/x/image/draw"
)

// Blend interpolates by cross-fading adjacent frames. Cancellation is
// polled per frame pair so cancellation latency is bounded by one pair.
type Blend struct{}

func NewBlend() stage.InterpolatorEngine { return Blend{} }

func (Blend) Interpolate(ctx context.Context, frames []image.Image, factor int, hooks stage.Hooks) ([]image.Image, error) {
	if len(frames) < 2 || factor < 2 {
		return frames, nil
	}

	totalPairs := len(frames) - 1
	out := make([]image.Image, 0, len(frames)*factor)
	out = append(out, frames[0])

	for i := 0; i < totalPairs; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hooks.IsCancelled() {
			return nil, stage.ErrCancelled
		}
		hooks.ReportProgress(i, totalPairs)

		a, b := toRGBA(frames[i]), toRGBA(frames[i+1])
		for j := 1; j < factor; j++ {
			t := float64(j) / float64(factor)
			out = append(out, crossFade(a, b, t))
		}
		if i < totalPairs-1 {
			out = append(out, frames[i+1])
		}
	}

	out = append(out, frames[len(frames)-1])
	return out, nil
}

func crossFade(a, b *image.RGBA, t float64) image.Image {
	bounds := a.Bounds()
	if b.Bounds() != bounds {
		scaled := image.NewRGBA(bounds)
		draw.ApproxBiLinear.Scale(scaled, bounds, b, b.Bounds(), draw.Src, nil)
		b = scaled
	}

	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ca := a.RGBAAt(x, y)
			cb := b.RGBAAt(x, y)
			dst.SetRGBA(x, y, color.RGBA{
				R: lerp(ca.R, cb.R, t),
				G: lerp(ca.G, cb.G, t),
				B: lerp(ca.B, cb.B, t),
				A: 255,
			})
		}
	}
	return dst
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Copy(dst, img.Bounds().Min, img, img.Bounds(), draw.Src, nil)
	return dst
}
