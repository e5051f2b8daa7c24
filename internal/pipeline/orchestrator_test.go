package pipeline_test

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"video-pipeline-service/internal/entity"
	"video-pipeline-service/internal/pipeline"
	"video-pipeline-service/internal/stage"
)

// ---- fakes ----

type transition struct {
	from, to entity.JobStatus
}

type fakeStore struct {
	transitions []transition
	startOK     bool
	cancelled   bool

	progress  []progressWrite
	errorMsgs []string
	results   []string
}

func (s *fakeStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to entity.JobStatus) (bool, error) {
	s.transitions = append(s.transitions, transition{from, to})
	if from == entity.StatusPending {
		return s.startOK, nil
	}
	return true, nil
}

func (s *fakeStore) SetProgress(ctx context.Context, id uuid.UUID, pct int, step string) (bool, error) {
	s.progress = append(s.progress, progressWrite{pct: pct, step: step})
	return true, nil
}

func (s *fakeStore) SetError(ctx context.Context, id uuid.UUID, msg string) (bool, error) {
	s.errorMsgs = append(s.errorMsgs, msg)
	return true, nil
}

func (s *fakeStore) SaveResult(ctx context.Context, id uuid.UUID, objectKey, bucket string, sizeBytes int64) (bool, error) {
	s.results = append(s.results, objectKey)
	return true, nil
}

func (s *fakeStore) IsCancelled(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.cancelled, nil
}

func (s *fakeStore) transitionedTo(status entity.JobStatus) bool {
	for _, tr := range s.transitions {
		if tr.to == status {
			return true
		}
	}
	return false
}

type fakeStages struct {
	derived *stage.DerivedParams

	generateErr    error
	generateFrames int

	calls []string
}

func frames(n int) []image.Image {
	out := make([]image.Image, n)
	for i := range out {
		out[i] = image.NewRGBA(image.Rect(0, 0, 4, 4))
	}
	return out
}

func (f *fakeStages) Preprocess(ctx context.Context, req stage.PreprocessRequest, jobID uuid.UUID) (*stage.DerivedParams, error) {
	f.calls = append(f.calls, "preprocess")
	return f.derived, nil
}

func (f *fakeStages) Generate(ctx context.Context, req stage.GenerateRequest, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error) {
	f.calls = append(f.calls, "generate")
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return frames(f.generateFrames), nil
}

func (f *fakeStages) Interpolate(ctx context.Context, in []image.Image, factor int, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error) {
	f.calls = append(f.calls, "interpolate")
	return in, nil
}

func (f *fakeStages) Upscale(ctx context.Context, in []image.Image, factor int, jobID uuid.UUID, progress stage.ProgressFunc) ([]image.Image, error) {
	f.calls = append(f.calls, "upscale")
	return in, nil
}

func (f *fakeStages) Postprocess(ctx context.Context, req stage.PostprocessRequest, jobID uuid.UUID) (string, error) {
	f.calls = append(f.calls, "postprocess")
	return "outputs/test.gif", nil
}

type fakeObjectStore struct {
	uploadErr error
	uploads   []string
	cleanups  []string
}

func (s *fakeObjectStore) Upload(ctx context.Context, localPath, jobID string) (string, int64, error) {
	if s.uploadErr != nil {
		return "", 0, s.uploadErr
	}
	s.uploads = append(s.uploads, localPath)
	return jobID + "/" + jobID + ".gif", 1024, nil
}

func (s *fakeObjectStore) Bucket() string { return "test-bucket" }

func (s *fakeObjectStore) CleanupLocal(path string) bool {
	s.cleanups = append(s.cleanups, path)
	return true
}

// ---- helpers ----

func testSpec() entity.GenerationSpec {
	spec := entity.GenerationSpec{Prompt: "a calm ocean"}
	spec.ApplyDefaults()
	return spec
}

func newTestOrchestrator(store *fakeStore, stages *fakeStages, objs *fakeObjectStore) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(pipeline.Config{}, store, stages, objs, zerolog.Nop())
}

// ---- tests ----

func TestOrchestrator_HappyPath(t *testing.T) {
	store := &fakeStore{startOK: true}
	stages := &fakeStages{
		derived:        &stage.DerivedParams{FPSFactor: 2, ScaleFactor: 2, AdjustedWidth: 256, AdjustedHeight: 256, AdjustedLength: 5},
		generateFrames: 8,
	}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	expectedCalls := []string{"preprocess", "generate", "interpolate", "upscale", "postprocess"}
	if len(stages.calls) != len(expectedCalls) {
		t.Fatalf("expected calls %v, got %v", expectedCalls, stages.calls)
	}
	for i, c := range expectedCalls {
		if stages.calls[i] != c {
			t.Fatalf("expected calls %v, got %v", expectedCalls, stages.calls)
		}
	}

	if !store.transitionedTo(entity.StatusCompleted) {
		t.Fatalf("expected transition to completed, got %+v", store.transitions)
	}
	if len(store.results) != 1 {
		t.Fatalf("expected 1 saved result, got %d", len(store.results))
	}
	if last := store.progress[len(store.progress)-1]; last.pct != 100 {
		t.Fatalf("expected final progress 100, got %d", last.pct)
	}
	if len(objs.cleanups) != 1 || objs.cleanups[0] != "outputs/test.gif" {
		t.Fatalf("expected local artifact cleanup, got %v", objs.cleanups)
	}
}

func TestOrchestrator_SkipsOptionalStages(t *testing.T) {
	store := &fakeStore{startOK: true}
	stages := &fakeStages{
		derived:        &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1, AdjustedWidth: 512, AdjustedHeight: 512, AdjustedLength: 4},
		generateFrames: 8,
	}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	for _, c := range stages.calls {
		if c == "interpolate" || c == "upscale" {
			t.Fatalf("optional stage %q ran for factor 1", c)
		}
	}
	if !store.transitionedTo(entity.StatusCompleted) {
		t.Fatalf("expected completion, got %+v", store.transitions)
	}
}

func TestOrchestrator_SkipsJobNotPending(t *testing.T) {
	store := &fakeStore{startOK: false}
	stages := &fakeStages{derived: &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1}}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	if len(stages.calls) != 0 {
		t.Fatalf("expected no stage calls for non-pending job, got %v", stages.calls)
	}
	if store.transitionedTo(entity.StatusFailed) {
		t.Fatalf("non-pending job must not be failed: %+v", store.transitions)
	}
}

func TestOrchestrator_CancelledStageLeavesStatusAlone(t *testing.T) {
	store := &fakeStore{startOK: true}
	stages := &fakeStages{
		derived:     &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1},
		generateErr: stage.ErrCancelled,
	}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	if last := stages.calls[len(stages.calls)-1]; last != "generate" {
		t.Fatalf("no stage may run after the cancelled one, calls: %v", stages.calls)
	}
	if store.transitionedTo(entity.StatusFailed) {
		t.Fatalf("cancelled job must not be failed: %+v", store.transitions)
	}
	if len(store.errorMsgs) != 0 {
		t.Fatalf("cancelled job must not record an error, got %v", store.errorMsgs)
	}
}

func TestOrchestrator_CancellationWinsOverFault(t *testing.T) {
	store := &fakeStore{startOK: true, cancelled: true}
	stages := &fakeStages{
		derived:     &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1},
		generateErr: errors.New("engine exploded"),
	}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	if store.transitionedTo(entity.StatusFailed) {
		t.Fatalf("cancellation must win over the fault: %+v", store.transitions)
	}
	if len(store.errorMsgs) != 0 {
		t.Fatalf("expected no persisted error, got %v", store.errorMsgs)
	}
}

func TestOrchestrator_FaultMarksFailed(t *testing.T) {
	store := &fakeStore{startOK: true}
	stages := &fakeStages{
		derived:     &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1},
		generateErr: errors.New("engine exploded"),
	}
	objs := &fakeObjectStore{}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	if !store.transitionedTo(entity.StatusFailed) {
		t.Fatalf("expected transition to failed, got %+v", store.transitions)
	}
	if len(store.errorMsgs) != 1 || store.errorMsgs[0] != "engine exploded" {
		t.Fatalf("expected persisted error message, got %v", store.errorMsgs)
	}
}

func TestOrchestrator_UploadFailureCleansUpArtifact(t *testing.T) {
	store := &fakeStore{startOK: true}
	stages := &fakeStages{
		derived:        &stage.DerivedParams{FPSFactor: 1, ScaleFactor: 1},
		generateFrames: 4,
	}
	objs := &fakeObjectStore{uploadErr: errors.New("bucket unavailable")}

	newTestOrchestrator(store, stages, objs).Run(context.Background(), testSpec(), uuid.New())

	if !store.transitionedTo(entity.StatusFailed) {
		t.Fatalf("expected failed after upload error, got %+v", store.transitions)
	}
	if len(objs.cleanups) != 1 {
		t.Fatalf("expected local artifact cleanup after upload failure, got %v", objs.cleanups)
	}
}
