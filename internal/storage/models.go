package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Sender is the author of a chat log message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one chat log entry.
type Message struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	// Backend is set on assistant messages.
	Backend string `json:"backend,omitempty"`
	// Mood is the analyzed mood of user messages.
	Mood string `json:"mood,omitempty"`
}

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
