package domain

import (
	"encoding/json"
	"time"
)

// Print job statuses. QUEUED → CLAIMED → DONE | FAIL.
// DONE and FAIL are terminal; a terminal job is never reclaimed.
const (
	PrintJobQueued  = "QUEUED"
	PrintJobClaimed = "CLAIMED"
	PrintJobDone    = "DONE"
	PrintJobFail    = "FAIL"
)

// JobTypeDeviceLabel is the job type the packaging gate looks for when a
// variant's packaging policy requires a printed device label.
const JobTypeDeviceLabel = "device_label"

// PrintJob 对应 print_jobs 表
type PrintJob struct {
	PrintJobID string          `db:"print_job_id" json:"print_job_id"` // UUID
	JobType    string          `db:"job_type" json:"job_type"`
	SN         *string         `db:"sn" json:"sn,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload"` // opaque label content (zpl/raw/...)
	Status     string          `db:"status" json:"status"`
	ClaimedBy  *string         `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt  *time.Time      `db:"claimed_at" json:"claimed_at,omitempty"`
	Error      *string         `db:"error" json:"error,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the job is in a final state.
func (j *PrintJob) Terminal() bool {
	return j.Status == PrintJobDone || j.Status == PrintJobFail
}
