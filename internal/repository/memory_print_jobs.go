package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/google/uuid"
)

// MemoryPrintJobsRepo mirrors the Postgres claim semantics with one mutex:
// the select-and-update of ClaimNext happens inside a single critical
// section, so no two claimants can win the same job.
type MemoryPrintJobsRepo struct {
	mu   sync.Mutex
	jobs map[string]domain.PrintJob // print_job_id -> job
	seq  map[string]int64           // print_job_id -> insertion order
	next int64
}

func NewMemoryPrintJobsRepo() *MemoryPrintJobsRepo {
	return &MemoryPrintJobsRepo{
		jobs: map[string]domain.PrintJob{},
		seq:  map[string]int64{},
	}
}

func (r *MemoryPrintJobsRepo) Insert(_ context.Context, job *domain.PrintJob) (*domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	j := *job
	j.PrintJobID = uuid.NewString()
	j.Status = domain.PrintJobQueued
	if len(j.Payload) == 0 {
		j.Payload = []byte("{}")
	}
	j.CreatedAt = now
	j.UpdatedAt = now
	r.next++
	r.jobs[j.PrintJobID] = j
	r.seq[j.PrintJobID] = r.next
	return &j, nil
}

func (r *MemoryPrintJobsRepo) Get(_ context.Context, printJobID string) (*domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[printJobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (r *MemoryPrintJobsRepo) ListBySN(_ context.Context, sn string) ([]domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PrintJob
	for _, j := range r.jobs {
		if j.SN != nil && *j.SN == sn {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return r.seq[out[i].PrintJobID] < r.seq[out[k].PrintJobID]
	})
	return out, nil
}

func (r *MemoryPrintJobsRepo) ClaimNext(_ context.Context, agentID string, lease time.Duration) (*domain.PrintJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	var best string
	var bestSeq int64
	for id, j := range r.jobs {
		claimable := j.Status == domain.PrintJobQueued ||
			(j.Status == domain.PrintJobClaimed && lease > 0 &&
				j.ClaimedAt != nil && now.Sub(*j.ClaimedAt) > lease)
		if !claimable {
			continue
		}
		if best == "" || r.seq[id] < bestSeq {
			best = id
			bestSeq = r.seq[id]
		}
	}
	if best == "" {
		return nil, ErrNotFound
	}

	j := r.jobs[best]
	j.Status = domain.PrintJobClaimed
	j.ClaimedBy = &agentID
	j.ClaimedAt = &now
	j.UpdatedAt = now
	r.jobs[best] = j
	return &j, nil
}

func (r *MemoryPrintJobsRepo) MarkDone(_ context.Context, printJobID string) error {
	return r.finish(printJobID, domain.PrintJobDone, nil)
}

func (r *MemoryPrintJobsRepo) MarkFail(_ context.Context, printJobID, errMsg string) error {
	return r.finish(printJobID, domain.PrintJobFail, &errMsg)
}

func (r *MemoryPrintJobsRepo) finish(printJobID, status string, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[printJobID]
	if !ok {
		return ErrNotFound
	}
	if j.Terminal() {
		// Second report on a terminal job: accept silently, change nothing.
		return nil
	}
	j.Status = status
	if errMsg != nil {
		j.Error = errMsg
	}
	j.UpdatedAt = time.Now().UTC()
	r.jobs[printJobID] = j
	return nil
}
