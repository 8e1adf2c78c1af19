package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Printer renders a claimed job on a physical device. The stdout printer
// below stands in during bring-up; a real agent swaps in a ZPL driver.
type Printer interface {
	Print(job *domain.PrintJob) error
}

// StdoutPrinter 把标签内容打到标准输出（调试用）
type StdoutPrinter struct{}

func (StdoutPrinter) Print(job *domain.PrintJob) error {
	sn := ""
	if job.SN != nil {
		sn = *job.SN
	}
	fmt.Fprintf(os.Stdout, "=== print job %s (%s) sn=%s ===\n%s\n", job.PrintJobID, job.JobType, sn, string(job.Payload))
	return nil
}

type claimResponse struct {
	OK    bool             `json:"ok"`
	Error string           `json:"error"`
	Job   *domain.PrintJob `json:"job"`
}

type reportBody struct {
	SN    *string `json:"sn,omitempty"`
	Error string  `json:"error,omitempty"`
}

// Agent 打印代理：轮询认领打印任务，执行后回执 done/fail。
type Agent struct {
	httpClient *resty.Client
	agentID    string
	printer    Printer
	logger     *zap.Logger

	idleWait  time.Duration
	errorWait time.Duration

	// wake is signalled by the MQTT subscription (when enabled) so a fresh
	// job is picked up without waiting out the idle backoff.
	wake chan struct{}
}

// NewAgent 创建打印代理
func NewAgent(baseURL, agentToken, agentID string, printer Printer, logger *zap.Logger) *Agent {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if agentToken != "" {
		client.SetHeader("X-Agent-Token", agentToken)
	}

	return &Agent{
		httpClient: client,
		agentID:    agentID,
		printer:    printer,
		logger:     logger,
		idleWait:   800 * time.Millisecond,
		errorWait:  1200 * time.Millisecond,
		wake:       make(chan struct{}, 1),
	}
}

// Wake 提前唤醒轮询（MQTT 通知到达时调用）
func (a *Agent) Wake() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. It never exits on its own: claim or
// print errors are logged and retried after a short backoff.
func (a *Agent) Run(ctx context.Context) {
	a.logger.Info("print agent started", zap.String("agent_id", a.agentID))
	for {
		wait, err := a.step(ctx)
		if err != nil {
			a.logger.Error("print agent step failed", zap.Error(err))
		}
		if wait == 0 {
			// A job was handled; immediately try for the next one.
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			a.logger.Info("print agent stopping")
			return
		case <-a.wake:
		case <-time.After(wait):
		}
	}
}

// step claims and handles at most one job. It returns how long to wait
// before the next poll: 0 after a handled job, idleWait on an empty
// queue, errorWait after a failure.
func (a *Agent) step(ctx context.Context) (time.Duration, error) {
	var claim claimResponse
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetQueryParam("agent_id", a.agentID).
		SetResult(&claim).
		Get("/mes/api/v1/print-jobs/next")
	if err != nil {
		return a.errorWait, fmt.Errorf("claim request failed: %w", err)
	}
	if resp.IsError() {
		return a.errorWait, fmt.Errorf("claim rejected: %s", resp.Status())
	}
	if claim.Job == nil {
		return a.idleWait, nil
	}

	job := claim.Job
	a.logger.Info("claimed print job",
		zap.String("print_job_id", job.PrintJobID),
		zap.String("job_type", job.JobType),
	)

	if err := a.printer.Print(job); err != nil {
		a.logger.Error("print failed",
			zap.Error(err),
			zap.String("print_job_id", job.PrintJobID),
		)
		if rerr := a.report(ctx, job, "fail", err.Error()); rerr != nil {
			return a.errorWait, rerr
		}
		return 0, nil
	}
	if err := a.report(ctx, job, "done", ""); err != nil {
		return a.errorWait, err
	}
	return 0, nil
}

func (a *Agent) report(ctx context.Context, job *domain.PrintJob, outcome, errMsg string) error {
	body := reportBody{SN: job.SN, Error: errMsg}
	resp, err := a.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post("/mes/api/v1/print-jobs/" + job.PrintJobID + "/" + outcome)
	if err != nil {
		return fmt.Errorf("report %s failed: %w", outcome, err)
	}
	if resp.IsError() {
		return fmt.Errorf("report %s rejected: %s", outcome, resp.Status())
	}
	return nil
}

// DecodeWakeMessage parses the queue notification payload. A malformed
// message still wakes the poll loop, so errors here are advisory.
func DecodeWakeMessage(payload []byte) (jobID, jobType string) {
	var msg struct {
		PrintJobID string `json:"print_job_id"`
		JobType    string `json:"job_type"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", ""
	}
	return msg.PrintJobID, msg.JobType
}
