package stage

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
)

type PostprocessConfig struct {
	SupportedFormats []string
	DefaultFormat    string
}

func DefaultPostprocessConfig() PostprocessConfig {
	return PostprocessConfig{
		SupportedFormats: []string{"gif", "mp4", "avi", "mov", "webm"},
		DefaultFormat:    "gif",
	}
}

// Postprocessor trims the frame sequence to the target duration, fits
// every frame to the target dimensions (center crop or pad) and encodes
// the final artifact. Faults here are fatal for the job: there is no
// acceptable degraded output for the saving step.
type Postprocessor struct {
	cfg  PostprocessConfig
	enc  Encoder
	exec *Executor
	log  zerolog.Logger
}

func NewPostprocessor(cfg PostprocessConfig, enc Encoder, exec *Executor, log zerolog.Logger) *Postprocessor {
	return &Postprocessor{cfg: cfg, enc: enc, exec: exec, log: log}
}

func (p *Postprocessor) Execute(ctx context.Context, req PostprocessRequest, jobID uuid.UUID) (string, error) {
	var path string
	err := p.exec.Run(ctx, jobID, "postprocessing", func(ctx context.Context) error {
		out, err := p.postprocess(req)
		if err != nil {
			return err
		}
		path = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (p *Postprocessor) postprocess(req PostprocessRequest) (string, error) {
	if len(req.Frames) == 0 {
		return "", fmt.Errorf("postprocess: %w", ErrNoFrames)
	}

	frames := trimFrames(req.Frames, req.TargetDuration, req.FPS)
	frames = fitFrames(frames, req.TargetWidth, req.TargetHeight)

	format := p.validateFormat(req.OutputFormat)
	path := outputPath(req, format)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := p.enc.Encode(path, frames, req.FPS); err != nil {
		return "", fmt.Errorf("encode video: %w", err)
	}

	p.log.Info().
		Str("path", path).
		Int("frames", len(frames)).
		Int("fps", req.FPS).
		Msg("video saved")
	return path, nil
}

func (p *Postprocessor) validateFormat(format string) string {
	normalized := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, f := range p.cfg.SupportedFormats {
		if normalized == f {
			return normalized
		}
	}
	p.log.Warn().Str("format", format).Str("fallback", p.cfg.DefaultFormat).Msg("unsupported output format")
	return p.cfg.DefaultFormat
}

// trimFrames cuts the sequence down to target_duration*fps frames. The
// generator deliberately produces extra tail frames when interpolating.
func trimFrames(frames []image.Image, targetDuration, fps int) []image.Image {
	target := targetDuration * fps
	if target <= 0 || len(frames) <= target {
		return frames
	}
	return frames[:target]
}

// fitFrames centers every frame on a canvas of the target size, cropping
// overflow and padding shortfall with black.
func fitFrames(frames []image.Image, width, height int) []image.Image {
	if width <= 0 || height <= 0 {
		return frames
	}
	out := make([]image.Image, len(frames))
	for i, f := range frames {
		out[i] = fitFrame(f, width, height)
	}
	return out
}

func fitFrame(src image.Image, width, height int) image.Image {
	sb := src.Bounds()
	if sb.Dx() == width && sb.Dy() == height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	cropW := min(sb.Dx(), width)
	cropH := min(sb.Dy(), height)

	srcRect := image.Rect(0, 0, cropW, cropH).
		Add(image.Point{X: sb.Min.X + (sb.Dx()-cropW)/2, Y: sb.Min.Y + (sb.Dy()-cropH)/2})
	dstPoint := image.Point{X: (width - cropW) / 2, Y: (height - cropH) / 2}

	draw.Copy(dst, dstPoint, src, srcRect, draw.Src, nil)
	return dst
}

func outputPath(req PostprocessRequest, format string) string {
	slug := promptSlug(req.Prompt)
	name := fmt.Sprintf("%s_seed%d_%ds_%dfps_%s.%s",
		slug, req.Seed, req.VideoLength, req.FPS,
		time.Now().UTC().Format("20060102T150405"), format)
	return filepath.Join(req.OutputDir, name)
}

func promptSlug(prompt string) string {
	const maxLen = 40
	var b strings.Builder
	for _, r := range strings.ToLower(prompt) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
		if b.Len() >= maxLen {
			break
		}
	}
	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}
