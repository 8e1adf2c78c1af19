package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

type PostgresProductionOrdersRepo struct {
	db *sql.DB
}

func NewPostgresProductionOrdersRepo(db *sql.DB) *PostgresProductionOrdersRepo {
	return &PostgresProductionOrdersRepo{db: db}
}

func (r *PostgresProductionOrdersRepo) Insert(ctx context.Context, po *domain.ProductionOrder) (*domain.ProductionOrder, error) {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO production_orders (variant_id, qty_planned, status, due_date)
		 VALUES ($1, $2, $3, $4)
		 RETURNING prod_order_id::text, created_at`,
		po.VariantID, po.QtyPlanned, po.Status, po.DueDate,
	).Scan(&po.ProdOrderID, &po.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert production order: %w", err)
	}
	return po, nil
}

func (r *PostgresProductionOrdersRepo) Get(ctx context.Context, prodOrderID string) (*domain.ProductionOrder, error) {
	var po domain.ProductionOrder
	err := r.db.QueryRowContext(ctx,
		`SELECT prod_order_id::text, variant_id::text, qty_planned, status, due_date, created_at
		 FROM production_orders WHERE prod_order_id = $1`,
		prodOrderID,
	).Scan(&po.ProdOrderID, &po.VariantID, &po.QtyPlanned, &po.Status, &po.DueDate, &po.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get production order %s: %w", prodOrderID, err)
	}
	return &po, nil
}
