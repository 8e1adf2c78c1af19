package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

type PostgresPrintJobsRepo struct {
	db *sql.DB
}

func NewPostgresPrintJobsRepo(db *sql.DB) *PostgresPrintJobsRepo {
	return &PostgresPrintJobsRepo{db: db}
}

const printJobColumns = `print_job_id::text, job_type, sn, payload, status, claimed_by, claimed_at, error, created_at, updated_at`

func scanPrintJob(row interface{ Scan(...any) error }) (*domain.PrintJob, error) {
	var j domain.PrintJob
	err := row.Scan(
		&j.PrintJobID, &j.JobType, &j.SN, &j.Payload, &j.Status,
		&j.ClaimedBy, &j.ClaimedAt, &j.Error, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *PostgresPrintJobsRepo) Insert(ctx context.Context, job *domain.PrintJob) (*domain.PrintJob, error) {
	payload := job.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO print_jobs (job_type, sn, payload, status)
		 VALUES ($1, $2, $3, 'QUEUED')
		 RETURNING `+printJobColumns,
		job.JobType, job.SN, payload,
	)
	j, err := scanPrintJob(row)
	if err != nil {
		return nil, fmt.Errorf("insert print job: %w", err)
	}
	return j, nil
}

func (r *PostgresPrintJobsRepo) Get(ctx context.Context, printJobID string) (*domain.PrintJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+printJobColumns+` FROM print_jobs WHERE print_job_id = $1`, printJobID)
	j, err := scanPrintJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get print job %s: %w", printJobID, err)
	}
	return j, nil
}

func (r *PostgresPrintJobsRepo) ListBySN(ctx context.Context, sn string) ([]domain.PrintJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+printJobColumns+` FROM print_jobs WHERE sn = $1 ORDER BY created_at`, sn)
	if err != nil {
		return nil, fmt.Errorf("list print jobs for %s: %w", sn, err)
	}
	defer rows.Close()

	var out []domain.PrintJob
	for rows.Next() {
		j, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// ClaimNext hands out the oldest claimable job in one statement. The inner
// SELECT takes a row lock with SKIP LOCKED, so concurrent claimants never
// see the same row; the check and the write never split across round trips.
// A CLAIMED job becomes claimable again once its claim is older than lease
// (lease <= 0 disables reclamation). DONE/FAIL rows never match.
func (r *PostgresPrintJobsRepo) ClaimNext(ctx context.Context, agentID string, lease time.Duration) (*domain.PrintJob, error) {
	leaseSeconds := int64(lease / time.Second)
	row := r.db.QueryRowContext(ctx,
		`UPDATE print_jobs
		 SET status = 'CLAIMED', claimed_by = $1, claimed_at = now(), updated_at = now()
		 WHERE print_job_id = (
		     SELECT print_job_id FROM print_jobs
		     WHERE status = 'QUEUED'
		        OR (status = 'CLAIMED' AND $2 > 0 AND claimed_at < now() - make_interval(secs => $2))
		     ORDER BY created_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+printJobColumns,
		agentID, leaseSeconds,
	)
	j, err := scanPrintJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim next print job: %w", err)
	}
	return j, nil
}

func (r *PostgresPrintJobsRepo) MarkDone(ctx context.Context, printJobID string) error {
	return r.finish(ctx, printJobID, domain.PrintJobDone, nil)
}

func (r *PostgresPrintJobsRepo) MarkFail(ctx context.Context, printJobID, errMsg string) error {
	return r.finish(ctx, printJobID, domain.PrintJobFail, &errMsg)
}

// finish is conditional on the job not being terminal yet: a second report
// matches zero rows and is accepted silently, so DONE/FAIL can never be
// overwritten or resurrected.
func (r *PostgresPrintJobsRepo) finish(ctx context.Context, printJobID, status string, errMsg *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE print_jobs
		 SET status = $2, error = COALESCE($3, error), updated_at = now()
		 WHERE print_job_id = $1 AND status NOT IN ('DONE', 'FAIL')`,
		printJobID, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("finish print job %s: %w", printJobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the job does not exist or it is already terminal.
		if _, err := r.Get(ctx, printJobID); err != nil {
			return err
		}
	}
	return nil
}
