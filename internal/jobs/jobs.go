package jobs

import (
	"time"

	"github.com/google/uuid"
)

const DefaultMaxTries = 5

// Job is the unit of asynchronous work stored in the retry queue.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	Payload   []byte    `json:"payload"` // raw json
	Attempts  int       `json:"attempts"`
	MaxTries  int       `json:"maxTries"`
	RunAt     time.Time `json:"runAt"`
	LastError *string   `json:"lastError,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewJob creates a job with defaults. A zero runAt means now.
func NewJob(t JobType, payloadJSON []byte, runAt time.Time) (Job, error) {
	if !t.IsValid() {
		return Job{}, ErrInvalidJobType
	}

	now := time.Now().UTC()

	if runAt.IsZero() {
		runAt = now
	}

	j := Job{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payloadJSON,
		Attempts:  0,
		MaxTries:  DefaultMaxTries,
		RunAt:     runAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return j, nil
}

// Exhausted reports whether another attempt would exceed MaxTries.
func (j Job) Exhausted() bool {
	return j.Attempts >= j.MaxTries
}

// Retry records a failed attempt and schedules the next one at runAt.
func (j Job) Retry(cause error, runAt time.Time) Job {
	msg := cause.Error()

	j.Attempts++
	j.LastError = &msg
	j.RunAt = runAt.UTC()
	j.UpdatedAt = time.Now().UTC()

	return j
}
