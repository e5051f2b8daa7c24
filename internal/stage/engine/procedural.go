// Package engine holds reference implementations of the stage engine
// interfaces. They produce deterministic synthetic media so the pipeline
// can run end to end without model weights or a GPU; production builds
// swap in real engines behind the same interfaces.
package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"

	"video-pipeline-service/internal/stage"
)

// Procedural synthesizes animated plasma frames from the seed and prompt.
// It iterates once per inference step, honoring the cancellation hook and
// reporting progress at denoising-step granularity like a real sampler.
type Procedural struct{}

func NewProcedural() stage.GeneratorEngine { return Procedural{} }

func (Procedural) Generate(ctx context.Context, req stage.GenerateRequest, hooks stage.Hooks) ([]image.Image, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", req.Width, req.Height)
	}
	if req.FPS <= 0 || req.VideoLength <= 0 {
		return nil, fmt.Errorf("invalid length %ds @ %dfps", req.VideoLength, req.FPS)
	}

	steps := req.InferenceSteps
	if steps < 1 {
		steps = 1
	}

	rng := rand.New(rand.NewSource(req.Seed ^ int64(hashString(req.Prompt))))
	phases := make([]float64, 4)
	freqs := make([]float64, 4)
	for i := range phases {
		phases[i] = rng.Float64() * 2 * math.Pi
		freqs[i] = 0.5 + rng.Float64()*2
	}

	// Each "denoising step" perturbs the field parameters; the loop is the
	// stage's iteration-granularity cancellation checkpoint.
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hooks.IsCancelled() {
			return nil, stage.ErrCancelled
		}
		for i := range phases {
			phases[i] += (rng.Float64() - 0.5) / float64(steps)
		}
		hooks.ReportProgress(step, steps)
	}

	numFrames := req.VideoLength * req.FPS
	frames := make([]image.Image, 0, numFrames)
	for f := 0; f < numFrames; f++ {
		t := float64(f) / float64(req.FPS)
		frames = append(frames, renderPlasma(req.Width, req.Height, t, phases, freqs))
	}
	return frames, nil
}

func renderPlasma(w, h int, t float64, phases, freqs []float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float64(x) / float64(w)
			fy := float64(y) / float64(h)
			v := math.Sin(fx*freqs[0]*8+phases[0]+t) +
				math.Sin(fy*freqs[1]*8+phases[1]+t*1.3) +
				math.Sin((fx+fy)*freqs[2]*8+phases[2]) +
				math.Sin(math.Hypot(fx-0.5, fy-0.5)*freqs[3]*16+phases[3]+t*0.7)
			v = (v + 4) / 8 // normalize to [0,1]
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(255 * v),
				G: uint8(255 * (1 - v)),
				B: uint8(255 * math.Abs(2*v-1)),
				A: 255,
			})
		}
	}
	return img
}

func hashString(s string) uint32 {
	// FNV-1a
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
