package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is a chat turn queued for the worker.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	// ConversationID is empty until a job without one succeeds.
	ConversationID string `gorm:"size:26;index" json:"conversation_id,omitempty"`
	Message        string `gorm:"type:text;not null" json:"message"`
	Provider       string `gorm:"type:varchar(32)" json:"provider"`
	Model          string `gorm:"type:varchar(128)" json:"model"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Response *string `gorm:"type:text" json:"response,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }
