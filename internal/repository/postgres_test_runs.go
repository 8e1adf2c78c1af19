package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

type PostgresTestRunsRepo struct {
	db *sql.DB
}

func NewPostgresTestRunsRepo(db *sql.DB) *PostgresTestRunsRepo {
	return &PostgresTestRunsRepo{db: db}
}

func (r *PostgresTestRunsRepo) Insert(ctx context.Context, run *domain.TestRun) error {
	metrics := run.Metrics
	if len(metrics) == 0 {
		metrics = []byte("{}")
	}
	readback := run.FwReadback
	if len(readback) == 0 {
		readback = []byte("{}")
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO test_runs (sn, fixture_id, result, metrics, fw_readback)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING test_run_id::text, created_at`,
		run.SN, run.FixtureID, run.Result, metrics, readback,
	).Scan(&run.TestRunID, &run.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert test run: %w", err)
	}
	return nil
}

func (r *PostgresTestRunsRepo) LatestBySN(ctx context.Context, sn string) (*domain.TestRun, error) {
	var t domain.TestRun
	err := r.db.QueryRowContext(ctx,
		`SELECT test_run_id::text, sn, fixture_id, result, metrics, fw_readback, created_at
		 FROM test_runs WHERE sn = $1
		 ORDER BY created_at DESC LIMIT 1`,
		sn,
	).Scan(&t.TestRunID, &t.SN, &t.FixtureID, &t.Result, &t.Metrics, &t.FwReadback, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest test run for %s: %w", sn, err)
	}
	return &t, nil
}
