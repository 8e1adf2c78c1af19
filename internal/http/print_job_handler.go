package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/repository"
	"github.com/DynaRob/flexavolt-mes-starter2/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const printJobsPrefix = "/mes/api/v1/print-jobs/"

// PrintJobHandler 打印任务队列 Handler。入队走操作员会话，认领/回执
// 走打印代理共享密钥 X-Agent-Token。
type PrintJobHandler struct {
	queue  service.PrintQueueService
	auth   *Auth
	logger *zap.Logger
}

func NewPrintJobHandler(queue service.PrintQueueService, auth *Auth, logger *zap.Logger) *PrintJobHandler {
	return &PrintJobHandler{
		queue:  queue,
		auth:   auth,
		logger: logger,
	}
}

// ServeHTTP 实现 http.Handler 接口
func (h *PrintJobHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/mes/api/v1/print-jobs" && r.Method == http.MethodPost:
		h.Enqueue(w, r)
	case path == "/mes/api/v1/print-jobs/next" && r.Method == http.MethodGet:
		h.ClaimNext(w, r)
	case strings.HasSuffix(path, "/done") && r.Method == http.MethodPost:
		h.ReportDone(w, r, pathSegment(path, printJobsPrefix, "/done"))
	case strings.HasSuffix(path, "/fail") && r.Method == http.MethodPost:
		h.ReportFail(w, r, pathSegment(path, printJobsPrefix, "/fail"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type enqueueRequest struct {
	JobType   string          `json:"job_type"`
	SN        *string         `json:"sn"`
	Payload   json.RawMessage `json:"payload"`
	StationID *string         `json:"station_id"`
}

type enqueueResponse struct {
	Result
	PrintJobID string `json:"print_job_id"`
}

func (h *PrintJobHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	op := h.auth.Operator(w, r)
	if op == nil {
		return
	}

	var req enqueueRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.JobType == "" {
		writeError(w, http.StatusBadRequest, "job_type required")
		return
	}

	job, err := h.queue.Enqueue(r.Context(), service.EnqueueRequest{
		JobType:    req.JobType,
		SN:         req.SN,
		Payload:    req.Payload,
		StationID:  req.StationID,
		OperatorID: op.OperatorID,
	})
	if err != nil {
		h.logger.Error("enqueue print job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, enqueueResponse{Result: Ok(), PrintJobID: job.PrintJobID})
}

type claimNextResponse struct {
	Result
	Job *domain.PrintJob `json:"job"`
}

func (h *PrintJobHandler) ClaimNext(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Agent(w, r) {
		return
	}
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id required")
		return
	}

	job, err := h.queue.ClaimNext(r.Context(), agentID)
	if err != nil {
		h.logger.Error("claim print job failed", zap.Error(err), zap.String("agent_id", agentID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// job is nil when the queue is empty; the agent treats that as "poll later".
	writeJSON(w, http.StatusOK, claimNextResponse{Result: Ok(), Job: job})
}

type reportRequest struct {
	SN        *string `json:"sn"`
	Error     string  `json:"error"`
	StationID *string `json:"station_id"`
}

func (h *PrintJobHandler) ReportDone(w http.ResponseWriter, r *http.Request, jobID string) {
	h.report(w, r, jobID, false)
}

func (h *PrintJobHandler) ReportFail(w http.ResponseWriter, r *http.Request, jobID string) {
	h.report(w, r, jobID, true)
}

func (h *PrintJobHandler) report(w http.ResponseWriter, r *http.Request, jobID string, fail bool) {
	if !h.auth.Agent(w, r) {
		return
	}
	if _, err := uuid.Parse(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "print job id must be a UUID")
		return
	}
	var req reportRequest
	if err := readBodyJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := service.ReportRequest{
		PrintJobID: jobID,
		SN:         req.SN,
		Error:      req.Error,
		StationID:  req.StationID,
	}
	var err error
	if fail {
		err = h.queue.ReportFail(r.Context(), svcReq)
	} else {
		err = h.queue.ReportDone(r.Context(), svcReq)
	}
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "not found")
		return
	}
	if err != nil {
		h.logger.Error("print job report failed", zap.Error(err), zap.String("print_job_id", jobID))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, Ok())
}
