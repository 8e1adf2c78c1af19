package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"

	"go.uber.org/zap"
)

// QueueNotifier is poked after a job is enqueued so idle agents can poll
// immediately instead of waiting out their backoff. Delivery is best
// effort: claiming always goes through the atomic claim, with or without
// a notification.
type QueueNotifier interface {
	JobQueued(jobID, jobType string)
}

// PrintQueueService owns print job state transitions. Producers enqueue,
// agents claim and report. Each QUEUED job is handed to exactly one agent.
type PrintQueueService interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.PrintJob, error)
	// ClaimNext returns (nil, nil) when no job is claimable.
	ClaimNext(ctx context.Context, agentID string) (*domain.PrintJob, error)
	ReportDone(ctx context.Context, req ReportRequest) error
	ReportFail(ctx context.Context, req ReportRequest) error
}

type EnqueueRequest struct {
	JobType    string
	SN         *string
	Payload    json.RawMessage
	StationID  *string
	OperatorID string
}

type ReportRequest struct {
	PrintJobID string
	SN         *string
	Error      string // ReportFail only
	StationID  *string
}

type printQueueService struct {
	jobs       repository.PrintJobsRepo
	events     repository.EventsRepo
	notifier   QueueNotifier
	claimLease time.Duration
	logger     *zap.Logger
}

// NewPrintQueueService wires the queue. notifier may be nil. claimLease is
// how long a CLAIMED job stays reserved for its agent before it becomes
// claimable again; zero disables reclamation entirely.
func NewPrintQueueService(
	jobs repository.PrintJobsRepo,
	events repository.EventsRepo,
	notifier QueueNotifier,
	claimLease time.Duration,
	logger *zap.Logger,
) PrintQueueService {
	return &printQueueService{
		jobs:       jobs,
		events:     events,
		notifier:   notifier,
		claimLease: claimLease,
		logger:     logger,
	}
}

func (s *printQueueService) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.PrintJob, error) {
	job, err := s.jobs.Insert(ctx, &domain.PrintJob{
		JobType: req.JobType,
		SN:      req.SN,
		Payload: req.Payload,
	})
	if err != nil {
		return nil, err
	}

	s.journal(ctx, req.SN, domain.EventPrintJobCreated, req.StationID, req.OperatorID, map[string]any{
		"print_job_id": job.PrintJobID,
		"job_type":     job.JobType,
	})

	if s.notifier != nil {
		s.notifier.JobQueued(job.PrintJobID, job.JobType)
	}
	s.logger.Info("print job queued",
		zap.String("print_job_id", job.PrintJobID), zap.String("job_type", job.JobType))
	return job, nil
}

func (s *printQueueService) ClaimNext(ctx context.Context, agentID string) (*domain.PrintJob, error) {
	job, err := s.jobs.ClaimNext(ctx, agentID, s.claimLease)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil // empty queue is not an error
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("print job claimed",
		zap.String("print_job_id", job.PrintJobID), zap.String("agent_id", agentID))
	return job, nil
}

func (s *printQueueService) ReportDone(ctx context.Context, req ReportRequest) error {
	if err := s.jobs.MarkDone(ctx, req.PrintJobID); err != nil {
		return err
	}
	if req.SN != nil {
		s.journal(ctx, req.SN, domain.EventPrintJobDone, req.StationID, "", map[string]any{
			"print_job_id": req.PrintJobID,
		})
	}
	return nil
}

func (s *printQueueService) ReportFail(ctx context.Context, req ReportRequest) error {
	errMsg := req.Error
	if errMsg == "" {
		errMsg = "unknown"
	}
	if err := s.jobs.MarkFail(ctx, req.PrintJobID, errMsg); err != nil {
		return err
	}
	if req.SN != nil {
		s.journal(ctx, req.SN, domain.EventPrintJobFail, req.StationID, "", map[string]any{
			"print_job_id": req.PrintJobID,
			"error":        errMsg,
		})
	}
	return nil
}

func (s *printQueueService) journal(ctx context.Context, sn *string, eventType string, stationID *string, operatorID string, payload map[string]any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	var op *string
	if operatorID != "" {
		op = &operatorID
	}
	ev := &domain.UnitEvent{
		SN:         sn,
		EventType:  eventType,
		StationID:  stationID,
		OperatorID: op,
		Payload:    raw,
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.logger.Error("journal append failed",
			zap.String("event_type", eventType), zap.Error(err))
	}
}
