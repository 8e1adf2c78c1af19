package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/lib/pq"
)

type PostgresUnitsRepo struct {
	db *sql.DB
}

func NewPostgresUnitsRepo(db *sql.DB) *PostgresUnitsRepo {
	return &PostgresUnitsRepo{db: db}
}

const unitColumns = `sn, status, variant_id, serial_class, assigned_product_code, prod_order_id,
	hw_rev_detected, fw_version_detected, fw_build_hash, created_at, updated_at`

func scanUnit(row interface{ Scan(...any) error }) (*domain.SerializedUnit, error) {
	var u domain.SerializedUnit
	err := row.Scan(
		&u.SN, &u.Status, &u.VariantID, &u.SerialClass, &u.AssignedCode, &u.ProdOrderID,
		&u.HwRevDetected, &u.FwVersionDetected, &u.FwBuildHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateGeneric allocates the next serial for the current YYMM prefix and
// inserts the unit. The counter bump is a single statement, so two
// concurrent callers always see distinct numbers. The insert is retried a
// few times anyway in case the counter was ever reset behind our back.
func (r *PostgresUnitsRepo) CreateGeneric(ctx context.Context, prodOrderID *string) (*domain.SerializedUnit, error) {
	prefix := time.Now().UTC().Format("0601") + "-GN"

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var n int64
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO serial_counters (prefix, last_no) VALUES ($1, 1)
			 ON CONFLICT (prefix) DO UPDATE SET last_no = serial_counters.last_no + 1
			 RETURNING last_no`,
			prefix,
		).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("bump serial counter: %w", err)
		}

		sn := fmt.Sprintf("%s-%05d", prefix, n)
		row := r.db.QueryRowContext(ctx,
			`INSERT INTO serialized_units (sn, status, serial_class, prod_order_id)
			 VALUES ($1, 'GENERIC', 'GN', $2)
			 RETURNING `+unitColumns,
			sn, prodOrderID,
		)
		u, err := scanUnit(row)
		if err == nil {
			return u, nil
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			lastErr = fmt.Errorf("serial collision on %s: %w", sn, ErrConflict)
			continue
		}
		return nil, fmt.Errorf("insert unit: %w", err)
	}
	return nil, lastErr
}

func (r *PostgresUnitsRepo) Get(ctx context.Context, sn string) (*domain.SerializedUnit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM serialized_units WHERE sn = $1`, sn)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get unit %s: %w", sn, err)
	}
	return u, nil
}

func (r *PostgresUnitsRepo) List(ctx context.Context) ([]domain.SerializedUnit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+unitColumns+` FROM serialized_units ORDER BY sn`)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	var out []domain.SerializedUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *PostgresUnitsRepo) SetVariant(ctx context.Context, sn, variantID, assignedCode, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE serialized_units
		 SET variant_id = $2, assigned_product_code = $3, status = $4, updated_at = now()
		 WHERE sn = $1`,
		sn, variantID, assignedCode, status,
	)
	if err != nil {
		return fmt.Errorf("assign variant: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresUnitsRepo) SetFlashResult(ctx context.Context, sn string, hwRev, fwVersion, fwBuildHash *string, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE serialized_units
		 SET hw_rev_detected = $2, fw_version_detected = $3, fw_build_hash = $4,
		     status = $5, updated_at = now()
		 WHERE sn = $1`,
		sn, hwRev, fwVersion, fwBuildHash, status,
	)
	if err != nil {
		return fmt.Errorf("record flash: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresUnitsRepo) SetTestOutcome(ctx context.Context, sn, status string, hwRev, fwVersion, fwBuildHash *string) error {
	// COALESCE keeps the previously detected value when the fixture did not
	// report one.
	res, err := r.db.ExecContext(ctx,
		`UPDATE serialized_units
		 SET status = $2,
		     hw_rev_detected = COALESCE($3, hw_rev_detected),
		     fw_version_detected = COALESCE($4, fw_version_detected),
		     fw_build_hash = COALESCE($5, fw_build_hash),
		     updated_at = now()
		 WHERE sn = $1`,
		sn, status, hwRev, fwVersion, fwBuildHash,
	)
	if err != nil {
		return fmt.Errorf("record test outcome: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresUnitsRepo) SetStatus(ctx context.Context, sn, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE serialized_units SET status = $2, updated_at = now() WHERE sn = $1`,
		sn, status,
	)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
