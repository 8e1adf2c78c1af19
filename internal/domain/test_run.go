package domain

import (
	"encoding/json"
	"time"
)

// Test results as reported by fixtures.
const (
	TestResultPass = "PASS"
	TestResultFail = "FAIL"
)

// TestRun 对应 test_runs 表（append-only）。
// "Current test status" of a unit is the most recent row by created_at;
// older rows are kept for audit only.
type TestRun struct {
	TestRunID  string          `db:"test_run_id" json:"test_run_id"` // UUID
	SN         string          `db:"sn" json:"sn"`
	FixtureID  string          `db:"fixture_id" json:"fixture_id"`
	Result     string          `db:"result" json:"result"` // PASS | FAIL
	Metrics    json.RawMessage `db:"metrics" json:"metrics,omitempty"`
	FwReadback json.RawMessage `db:"fw_readback" json:"fw_readback,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
