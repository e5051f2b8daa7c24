package stage

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PoolSet bundles the five per-stage replica pools behind one-call stage
// invocations: acquire a replica, run the stage, release the replica.
// Stages within one job stay strictly sequential; across jobs each pool
// serves many callers up to its replica limit.
type PoolSet struct {
	preprocess  *Pool[*Preprocessor]
	generate    *Pool[*Generator]
	interpolate *Pool[*Interpolator]
	upscale     *Pool[*Upscaler]
	postprocess *Pool[*Postprocessor]
}

// PoolSetConfig carries per-stage sizing plus the engine constructors each
// replica is built around.
type PoolSetConfig struct {
	Preprocess  PoolConfig
	Generate    PoolConfig
	Interpolate PoolConfig
	Upscale     PoolConfig
	Postprocess PoolConfig

	PreprocessConfig  PreprocessConfig
	PostprocessConfig PostprocessConfig

	NewGeneratorEngine    func() GeneratorEngine
	NewInterpolatorEngine func() InterpolatorEngine
	NewUpscalerEngine     func() UpscalerEngine
	NewEncoder            func() Encoder
}

func NewPoolSet(cfg PoolSetConfig, checker CancelChecker, log zerolog.Logger) (*PoolSet, error) {
	preprocess, err := NewPool(cfg.Preprocess, log, func(replicaID string) (*Preprocessor, error) {
		return NewPreprocessor(cfg.PreprocessConfig, NewExecutor(checker, log, replicaID), log), nil
	})
	if err != nil {
		return nil, err
	}

	generate, err := NewPool(cfg.Generate, log, func(replicaID string) (*Generator, error) {
		return NewGenerator(cfg.NewGeneratorEngine(), NewExecutor(checker, log, replicaID), log), nil
	})
	if err != nil {
		return nil, err
	}

	interpolate, err := NewPool(cfg.Interpolate, log, func(replicaID string) (*Interpolator, error) {
		return NewInterpolator(cfg.NewInterpolatorEngine(), NewExecutor(checker, log, replicaID), log), nil
	})
	if err != nil {
		return nil, err
	}

	upscale, err := NewPool(cfg.Upscale, log, func(replicaID string) (*Upscaler, error) {
		return NewUpscaler(cfg.NewUpscalerEngine(), NewExecutor(checker, log, replicaID), log), nil
	})
	if err != nil {
		return nil, err
	}

	postprocess, err := NewPool(cfg.Postprocess, log, func(replicaID string) (*Postprocessor, error) {
		return NewPostprocessor(cfg.PostprocessConfig, cfg.NewEncoder(), NewExecutor(checker, log, replicaID), log), nil
	})
	if err != nil {
		return nil, err
	}

	return &PoolSet{
		preprocess:  preprocess,
		generate:    generate,
		interpolate: interpolate,
		upscale:     upscale,
		postprocess: postprocess,
	}, nil
}

// StartJanitors launches the scale-down loops for all five pools.
func (s *PoolSet) StartJanitors(ctx context.Context, interval time.Duration) {
	go s.preprocess.Janitor(ctx, interval)
	go s.generate.Janitor(ctx, interval)
	go s.interpolate.Janitor(ctx, interval)
	go s.upscale.Janitor(ctx, interval)
	go s.postprocess.Janitor(ctx, interval)
}

func (s *PoolSet) Preprocess(ctx context.Context, req PreprocessRequest, jobID uuid.UUID) (*DerivedParams, error) {
	w, err := s.preprocess.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.preprocess.Release(w)
	return w.Execute(ctx, req, jobID)
}

func (s *PoolSet) Generate(ctx context.Context, req GenerateRequest, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	w, err := s.generate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.generate.Release(w)
	return w.Execute(ctx, req, jobID, progress)
}

func (s *PoolSet) Interpolate(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	w, err := s.interpolate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.interpolate.Release(w)
	return w.Execute(ctx, frames, factor, jobID, progress)
}

func (s *PoolSet) Upscale(ctx context.Context, frames []image.Image, factor int, jobID uuid.UUID, progress ProgressFunc) ([]image.Image, error) {
	w, err := s.upscale.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.upscale.Release(w)
	return w.Execute(ctx, frames, factor, jobID, progress)
}

func (s *PoolSet) Postprocess(ctx context.Context, req PostprocessRequest, jobID uuid.UUID) (string, error) {
	w, err := s.postprocess.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer s.postprocess.Release(w)
	return w.Execute(ctx, req, jobID)
}
