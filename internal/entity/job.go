package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further status transition is allowed.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Job struct {
	ID           uuid.UUID  `json:"id"`
	UserID       *int64     `json:"user_id,omitempty"`
	Name         string     `json:"name"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress_percentage"`
	CurrentStep  *string    `json:"current_step,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	MarkedAsRead bool       `json:"marked_as_read"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Spec   *GenerationSpec `json:"spec,omitempty"`
	Result *JobResult      `json:"result,omitempty"`
}

// JobResult holds object-storage information for a finished job.
type JobResult struct {
	ObjectKey     string    `json:"object_key"`
	Bucket        string    `json:"bucket"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	CreatedAt     time.Time `json:"created_at"`
}

// JobStats are per-user counters used by the unread-jobs listing.
type JobStats struct {
	TotalCount     int `json:"total_count"`
	ActiveCount    int `json:"active_count"`
	FailedCount    int `json:"failed_count"`
	CompletedCount int `json:"completed_count"`
	UnreadCount    int `json:"unread_count"`
}
