package job

import (
	"encoding/json"
	"time"
)

// State represents the lifecycle state of a job at rest.
//
// "failed" is intentionally absent: it is a transient intermediate used
// only inside the fail-and-schedule transition (see queue.Manager), never
// observable once a Store transaction commits.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateDLQ        State = "dlq"
)

func (s State) String() string { return string(s) }

// ParseState parses a state string, defaulting to StatePending for unknown
// or empty input.
func ParseState(s string) State {
	switch State(s) {
	case StatePending, StateProcessing, StateCompleted, StateDLQ:
		return State(s)
	default:
		return StatePending
	}
}

// Job is a unit of work: a shell command submitted by a client.
type Job struct {
	ID           string
	Command      string
	State        State
	Attempts     int
	MaxRetries   int
	WorkerID     string
	NextRunAt    time.Time
	ClaimedAt    *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Metadata     map[string]string
}

// CanRetry reports whether the job has retry budget left after its most
// recent attempt.
func (j *Job) CanRetry() bool {
	return j.Attempts < j.MaxRetries
}

// MetadataJSON serializes Metadata for storage; a nil map marshals to "{}".
func (j *Job) MetadataJSON() (string, error) {
	if j.Metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(j.Metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseMetadata deserializes a metadata JSON text column.
func ParseMetadata(raw string) (map[string]string, error) {
	if raw == "" {
		return map[string]string{}, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Worker is the registration row for a live worker process.
type Worker struct {
	ID            string
	PID           int
	Status        WorkerStatus
	LastHeartbeat time.Time
	StartedAt     time.Time
}

// WorkerStatus is the liveness state of a registered worker.
type WorkerStatus string

const (
	WorkerActive  WorkerStatus = "active"
	WorkerStopped WorkerStatus = "stopped"
)
