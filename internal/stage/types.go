// Package stage contains the five pipeline stage workers and the
// cancellation bracket they share. Stage internals that need real models
// (diffusion sampling, interpolation networks, super-resolution, container
// muxing) sit behind engine interfaces; the workers own cancellation
// checkpoints, progress reporting and per-stage fault policy.
package stage

import (
	"errors"
	"image"
)

// ErrCancelled is the cancellation sentinel. It is a first-class outcome,
// never treated as a failure.
var ErrCancelled = errors.New("job cancelled")

// ErrNoFrames is returned when a stage that requires frames receives none.
var ErrNoFrames = errors.New("no frames")

// ProgressFunc reports one unit of stage progress, current in [0, total).
type ProgressFunc func(current, total int)

// Hooks carry the per-invocation callbacks handed to an engine. Cancelled
// is polled at iteration granularity inside long-running engines; when it
// returns true the engine must abandon work and return ErrCancelled.
type Hooks struct {
	Progress  ProgressFunc
	Cancelled func() bool
}

func (h Hooks) ReportProgress(current, total int) {
	if h.Progress != nil {
		h.Progress(current, total)
	}
}

func (h Hooks) IsCancelled() bool {
	return h.Cancelled != nil && h.Cancelled()
}

// PreprocessRequest carries the user-facing dimensions and frame rate.
type PreprocessRequest struct {
	Width       int
	Height      int
	VideoLength int // seconds
	TargetFPS   int
}

// DerivedParams is the preprocessing output: the factors and adjusted
// dimensions the rest of the pipeline runs with.
type DerivedParams struct {
	FPSFactor      int
	ScaleFactor    int
	AdjustedWidth  int
	AdjustedHeight int
	AdjustedLength int // seconds
}

// GenerateRequest is the input to the generation stage, already adjusted
// by preprocessing.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	VideoLength    int // seconds
	FPS            int
	InferenceSteps int
	GuidanceScale  float64
	Seed           int64
	BaseModel      string
	MotionAdapter  string
	Loras          map[string]float64
}

// PostprocessRequest carries everything needed to trim, fit and encode the
// final artifact.
type PostprocessRequest struct {
	Frames         []image.Image
	TargetDuration int // seconds
	FPS            int
	TargetWidth    int
	TargetHeight   int
	Prompt         string
	Seed           int64
	VideoLength    int
	OutputFormat   string
	OutputDir      string
}
