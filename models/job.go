package models

import "time"

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// ImportJob tracks an asynchronous import. The job id doubles as the id of
// the import it produces.
type ImportJob struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	FileName  string    `json:"file_name"`
	MimeHint  string    `json:"mime_hint,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
	Counts    *Counts   `json:"counts,omitempty"`
}
