package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

type PostgresInventoryRepo struct {
	db *sql.DB
}

func NewPostgresInventoryRepo(db *sql.DB) *PostgresInventoryRepo {
	return &PostgresInventoryRepo{db: db}
}

func (r *PostgresInventoryRepo) InsertMovement(ctx context.Context, m *domain.InventoryMovement) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO inventory_ledger (item_id, location_id, movement_type, qty, ref_type, ref_id, unit_cost, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING movement_id::text, created_at`,
		m.ItemID, m.LocationID, m.MovementType, m.Qty, m.RefType, m.RefID, m.UnitCost, m.CreatedBy,
	).Scan(&m.MovementID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert inventory movement: %w", err)
	}
	return nil
}
