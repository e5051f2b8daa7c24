package httptransport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"video-pipeline-service/internal/entity"
	"video-pipeline-service/internal/service"
)

type Handler struct {
	jobSvc *service.JobService
}

func NewHandler(jobSvc *service.JobService) *Handler {
	return &Handler{jobSvc: jobSvc}
}

type createJobDTO struct {
	Prompt         string             `json:"prompt"`
	NegativePrompt string             `json:"negative_prompt,omitempty"`
	Width          int                `json:"width,omitempty"`
	Height         int                `json:"height,omitempty"`
	VideoLength    int                `json:"video_length,omitempty"`
	FPS            int                `json:"fps,omitempty"`
	InferenceSteps int                `json:"inference_steps,omitempty"`
	GuidanceScale  float64            `json:"guidance_scale,omitempty"`
	Seed           int64              `json:"seed,omitempty"`
	BaseModel      string             `json:"base_model,omitempty"`
	MotionAdapter  string             `json:"motion_adapter,omitempty"`
	Loras          map[string]float64 `json:"loras,omitempty"`
	OutputFormat   string             `json:"output_format,omitempty"`
	UserID         *int64             `json:"user_id,omitempty"`
}

type createJobResp struct {
	ID string `json:"id"`
}

type jobResp struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Status       entity.JobStatus       `json:"status"`
	Progress     int                    `json:"progress_percentage"`
	CurrentStep  *string                `json:"current_step,omitempty"`
	ErrorMessage *string                `json:"error_message,omitempty"`
	MarkedAsRead bool                   `json:"marked_as_read"`
	CreatedAt    string                 `json:"created_at"`
	StartedAt    *string                `json:"started_at,omitempty"`
	CompletedAt  *string                `json:"completed_at,omitempty"`
	Spec         *entity.GenerationSpec `json:"spec,omitempty"`
	Result       *jobResultResp         `json:"result,omitempty"`
}

type jobResultResp struct {
	ObjectKey     string `json:"object_key"`
	Bucket        string `json:"bucket"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	CreatedAt     string `json:"created_at"`
}

type cancelResp struct {
	Cancelled bool `json:"cancelled"`
}

type unreadResp struct {
	Jobs  []jobResp        `json:"jobs"`
	Stats *entity.JobStats `json:"stats"`
}

func toJobResp(j *entity.Job) jobResp {
	resp := jobResp{
		ID:           j.ID.String(),
		Name:         j.Name,
		Status:       j.Status,
		Progress:     j.Progress,
		CurrentStep:  j.CurrentStep,
		ErrorMessage: j.ErrorMessage,
		MarkedAsRead: j.MarkedAsRead,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
		Spec:         j.Spec,
	}
	if j.StartedAt != nil {
		s := j.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if j.CompletedAt != nil {
		s := j.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &s
	}
	if j.Result != nil {
		resp.Result = &jobResultResp{
			ObjectKey:     j.Result.ObjectKey,
			Bucket:        j.Result.Bucket,
			FileSizeBytes: j.Result.FileSizeBytes,
			CreatedAt:     j.Result.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp
}

// CreateJob godoc
// @Summary Create a video generation job
// @Description Persists the job (pending) and enqueues it for the pipeline workers.
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body createJobDTO true "generation parameters (zero values take defaults)"
// @Success 201 {object} createJobResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var dto createJobDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	spec := entity.GenerationSpec{
		Prompt:         dto.Prompt,
		NegativePrompt: dto.NegativePrompt,
		Width:          dto.Width,
		Height:         dto.Height,
		VideoLength:    dto.VideoLength,
		FPS:            dto.FPS,
		InferenceSteps: dto.InferenceSteps,
		GuidanceScale:  dto.GuidanceScale,
		Seed:           dto.Seed,
		BaseModel:      dto.BaseModel,
		MotionAdapter:  dto.MotionAdapter,
		Loras:          dto.Loras,
		OutputFormat:   dto.OutputFormat,
	}

	id, err := h.jobSvc.CreateJob(r.Context(), spec, dto.UserID)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createJobResp{ID: id.String()})
}

// GetJob godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, toJobResp(j))
}

// GetJobResult godoc
// @Summary Get job result
// @Description Returns the object-storage location of the finished artifact.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} jobResultResp
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/result [get]
func (h *Handler) GetJobResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	j, err := h.jobSvc.GetJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}
	if j.Status != entity.StatusCompleted || j.Result == nil {
		writeErr(w, http.StatusConflict, "job not completed")
		return
	}

	writeJSON(w, http.StatusOK, jobResultResp{
		ObjectKey:     j.Result.ObjectKey,
		Bucket:        j.Result.Bucket,
		FileSizeBytes: j.Result.FileSizeBytes,
		CreatedAt:     j.Result.CreatedAt.Format(time.RFC3339),
	})
}

// CancelJob godoc
// @Summary Cancel a job
// @Description Marks the job cancelled. Running stages observe the flag at their next checkpoint; the call does not wait for them.
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 200 {object} cancelResp
// @Failure 400 {object} apiError
// @Failure 409 {object} apiError
// @Router /jobs/{id}/cancel [post]
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	ok, err := h.jobSvc.CancelJob(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	if !ok {
		writeErr(w, http.StatusConflict, "job already finished or not found")
		return
	}

	writeJSON(w, http.StatusOK, cancelResp{Cancelled: true})
}

// ListJobs godoc
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Param user_id query int false "filter by user id"
// @Success 200 {array} jobResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	var userID *int64
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		userID = &v
	}

	jobs, err := h.jobSvc.ListJobs(r.Context(), userID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "list failed")
		return
	}

	resp := make([]jobResp, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResp(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnreadJobs godoc
// @Summary List unread jobs with counters
// @Tags jobs
// @Produce json
// @Param user_id query int true "user id"
// @Success 200 {object} unreadResp
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /jobs/unread [get]
func (h *Handler) UnreadJobs(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	jobs, stats, err := h.jobSvc.UnreadJobs(r.Context(), userID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "unread listing failed")
		return
	}

	resp := unreadResp{Jobs: make([]jobResp, 0, len(jobs)), Stats: stats}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResp(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkJobAsRead godoc
// @Summary Mark a job as read
// @Tags jobs
// @Produce json
// @Param id path string true "job id (uuid)"
// @Success 204 "marked"
// @Failure 400 {object} apiError
// @Failure 404 {object} apiError
// @Router /jobs/{id}/read [post]
func (h *Handler) MarkJobAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid id")
		return
	}

	ok, err := h.jobSvc.MarkJobAsRead(r.Context(), id)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "mark as read failed")
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, "job not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
