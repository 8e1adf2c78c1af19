package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type queueFixture struct {
	jobs   *repository.MemoryPrintJobsRepo
	events *repository.MemoryEventsRepo
	queue  PrintQueueService
}

func newQueueFixture(lease time.Duration) *queueFixture {
	f := &queueFixture{
		jobs:   repository.NewMemoryPrintJobsRepo(),
		events: repository.NewMemoryEventsRepo(),
	}
	f.queue = NewPrintQueueService(f.jobs, f.events, nil, lease, zap.NewNop())
	return f
}

func TestEnqueueAndClaim(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	sn := "2401-GN-00001"
	job, err := f.queue.Enqueue(ctx, EnqueueRequest{
		JobType:    domain.JobTypeDeviceLabel,
		SN:         &sn,
		Payload:    []byte(`{"zpl":"^XA...^XZ"}`),
		OperatorID: "op-1",
	})
	require.NoError(t, err)
	require.Equal(t, domain.PrintJobQueued, job.Status)

	claimed, err := f.queue.ClaimNext(ctx, "agent-1")
	require.NoError(t, err)
	require.Equal(t, job.PrintJobID, claimed.PrintJobID)
	require.Equal(t, domain.PrintJobClaimed, claimed.Status)
	require.Equal(t, "agent-1", *claimed.ClaimedBy)

	// Empty queue: nil job, no error.
	none, err := f.queue.ClaimNext(ctx, "agent-1")
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestClaimOrder_OldestFirst(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, OperatorID: "op-1"})
		require.NoError(t, err)
		ids = append(ids, job.PrintJobID)
	}

	for _, want := range ids {
		got, err := f.queue.ClaimNext(ctx, "agent-1")
		require.NoError(t, err)
		require.Equal(t, want, got.PrintJobID)
	}
}

// Many concurrent claimants, each QUEUED job must go to exactly one of them.
func TestClaimNext_ExactlyOnce(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	const jobCount = 20
	const agentCount = 8
	for i := 0; i < jobCount; i++ {
		_, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, OperatorID: "op-1"})
		require.NoError(t, err)
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for a := 0; a < agentCount; a++ {
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			for {
				job, err := f.queue.ClaimNext(ctx, agent)
				require.NoError(t, err)
				if job == nil {
					return
				}
				mu.Lock()
				seen[job.PrintJobID]++
				mu.Unlock()
			}
		}(fmt.Sprintf("agent-%d", a))
	}
	wg.Wait()

	require.Len(t, seen, jobCount)
	for id, n := range seen {
		require.Equalf(t, 1, n, "job %s claimed %d times", id, n)
	}
}

func TestReport_TerminalIsIdempotent(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	sn := "2401-GN-00001"
	job, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, SN: &sn, OperatorID: "op-1"})
	require.NoError(t, err)
	_, err = f.queue.ClaimNext(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, f.queue.ReportDone(ctx, ReportRequest{PrintJobID: job.PrintJobID, SN: &sn}))

	// Duplicate or conflicting reports after the terminal state are
	// accepted and change nothing.
	require.NoError(t, f.queue.ReportDone(ctx, ReportRequest{PrintJobID: job.PrintJobID, SN: &sn}))
	require.NoError(t, f.queue.ReportFail(ctx, ReportRequest{PrintJobID: job.PrintJobID, SN: &sn, Error: "late"}))

	got, err := f.jobs.Get(ctx, job.PrintJobID)
	require.NoError(t, err)
	require.Equal(t, domain.PrintJobDone, got.Status)
	require.Nil(t, got.Error)
}

func TestReportFail_DefaultsError(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, OperatorID: "op-1"})
	require.NoError(t, err)
	_, err = f.queue.ClaimNext(ctx, "agent-1")
	require.NoError(t, err)

	require.NoError(t, f.queue.ReportFail(ctx, ReportRequest{PrintJobID: job.PrintJobID}))

	got, err := f.jobs.Get(ctx, job.PrintJobID)
	require.NoError(t, err)
	require.Equal(t, domain.PrintJobFail, got.Status)
	require.Equal(t, "unknown", *got.Error)
}

func TestReport_UnknownJob(t *testing.T) {
	f := newQueueFixture(0)
	err := f.queue.ReportDone(context.Background(), ReportRequest{PrintJobID: "44444444-4444-4444-4444-444444444444"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

// A claim whose agent died becomes claimable again once the lease runs out.
func TestClaimNext_LeaseReclaim(t *testing.T) {
	f := newQueueFixture(10 * time.Millisecond)
	ctx := context.Background()

	job, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, OperatorID: "op-1"})
	require.NoError(t, err)

	first, err := f.queue.ClaimNext(ctx, "agent-dead")
	require.NoError(t, err)
	require.Equal(t, job.PrintJobID, first.PrintJobID)

	// Within the lease the job is reserved.
	none, err := f.queue.ClaimNext(ctx, "agent-2")
	require.NoError(t, err)
	require.Nil(t, none)

	time.Sleep(20 * time.Millisecond)

	second, err := f.queue.ClaimNext(ctx, "agent-2")
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, job.PrintJobID, second.PrintJobID)
	require.Equal(t, "agent-2", *second.ClaimedBy)
}

func TestClaimNext_ZeroLeaseNeverReclaims(t *testing.T) {
	f := newQueueFixture(0)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, EnqueueRequest{JobType: domain.JobTypeDeviceLabel, OperatorID: "op-1"})
	require.NoError(t, err)
	_, err = f.queue.ClaimNext(ctx, "agent-1")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	none, err := f.queue.ClaimNext(ctx, "agent-2")
	require.NoError(t, err)
	require.Nil(t, none)
}
