package stage

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PreprocessConfig mirrors the generation stack's constraints.
type PreprocessConfig struct {
	BaseFPS            int // fps the generator natively produces
	DimensionAlignment int // generated dimensions must be multiples of this
	MaxDimension       int // largest dimension the generator accepts
	MinDimension       int
	ExtraSeconds       int // extra generation time when interpolating
}

func DefaultPreprocessConfig() PreprocessConfig {
	return PreprocessConfig{
		BaseFPS:            8,
		DimensionAlignment: 8,
		MaxDimension:       1024,
		MinDimension:       8,
		ExtraSeconds:       1,
	}
}

// Preprocessor derives generation parameters from the user-facing spec:
// the interpolation factor needed to reach the target fps, the upscale
// factor needed to reach the target resolution, and the adjusted
// dimensions/length the generator should run with.
type Preprocessor struct {
	cfg  PreprocessConfig
	exec *Executor
	log  zerolog.Logger
}

func NewPreprocessor(cfg PreprocessConfig, exec *Executor, log zerolog.Logger) *Preprocessor {
	return &Preprocessor{cfg: cfg, exec: exec, log: log}
}

func (p *Preprocessor) Execute(ctx context.Context, req PreprocessRequest, jobID uuid.UUID) (*DerivedParams, error) {
	var out *DerivedParams
	err := p.exec.Run(ctx, jobID, "parameter processing", func(ctx context.Context) error {
		out = p.process(req)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Preprocessor) process(req PreprocessRequest) *DerivedParams {
	fpsFactor := p.fpsFactor(req.TargetFPS)
	scaleFactor := p.frameScaleFactor(req.Width, req.Height)
	width, height := p.adjustDimensions(req.Width, req.Height, scaleFactor)
	length := p.extendLength(req.VideoLength, fpsFactor)

	p.log.Info().
		Int("fps_factor", fpsFactor).
		Int("scale_factor", scaleFactor).
		Int("width", width).
		Int("height", height).
		Int("length", length).
		Msg("derived generation parameters")

	return &DerivedParams{
		FPSFactor:      fpsFactor,
		ScaleFactor:    scaleFactor,
		AdjustedWidth:  width,
		AdjustedHeight: height,
		AdjustedLength: length,
	}
}

func (p *Preprocessor) fpsFactor(targetFPS int) int {
	if targetFPS <= p.cfg.BaseFPS {
		return 1
	}
	factor := targetFPS / p.cfg.BaseFPS
	if factor < 1 {
		return 1
	}
	return factor
}

func (p *Preprocessor) frameScaleFactor(width, height int) int {
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	if maxDim <= p.cfg.MaxDimension {
		return 1
	}
	scale := (maxDim + p.cfg.MaxDimension - 1) / p.cfg.MaxDimension
	return roundToPowerOfTwo(scale)
}

func roundToPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	power := 1
	for power*2 < n {
		power *= 2
	}
	// Ties round up: an equidistant scale takes the larger power so the
	// generator never runs above the dimension limit.
	if n-power < power*2-n {
		return power
	}
	return power * 2
}

// adjustDimensions scales the requested size down by the upscale factor and
// aligns it to what the generator accepts. The upscaler restores the full
// resolution afterwards.
func (p *Preprocessor) adjustDimensions(width, height, scaleFactor int) (int, int) {
	scaledW := width / scaleFactor
	scaledH := height / scaleFactor

	alignedW := (scaledW / p.cfg.DimensionAlignment) * p.cfg.DimensionAlignment
	alignedH := (scaledH / p.cfg.DimensionAlignment) * p.cfg.DimensionAlignment

	if alignedW < p.cfg.MinDimension {
		alignedW = p.cfg.MinDimension
	}
	if alignedH < p.cfg.MinDimension {
		alignedH = p.cfg.MinDimension
	}
	return alignedW, alignedH
}

// extendLength adds generation time when interpolating so the interpolator
// has enough source frames at the tail.
func (p *Preprocessor) extendLength(length, fpsFactor int) int {
	if fpsFactor > 1 {
		return length + p.cfg.ExtraSeconds
	}
	return length
}
