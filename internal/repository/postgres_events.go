package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

type PostgresEventsRepo struct {
	db *sql.DB
}

func NewPostgresEventsRepo(db *sql.DB) *PostgresEventsRepo {
	return &PostgresEventsRepo{db: db}
}

func (r *PostgresEventsRepo) Append(ctx context.Context, ev *domain.UnitEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO unit_events (sn, event_type, station_id, operator_id, payload)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING event_id::text, created_at`,
		ev.SN, ev.EventType, ev.StationID, ev.OperatorID, payload,
	).Scan(&ev.EventID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("append unit event: %w", err)
	}
	return nil
}

func (r *PostgresEventsRepo) LatestBySNAndType(ctx context.Context, sn, eventType string) (*domain.UnitEvent, error) {
	var ev domain.UnitEvent
	err := r.db.QueryRowContext(ctx,
		`SELECT event_id::text, sn, event_type, station_id, operator_id, payload, created_at
		 FROM unit_events WHERE sn = $1 AND event_type = $2
		 ORDER BY created_at DESC LIMIT 1`,
		sn, eventType,
	).Scan(&ev.EventID, &ev.SN, &ev.EventType, &ev.StationID, &ev.OperatorID, &ev.Payload, &ev.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest %s event for %s: %w", eventType, sn, err)
	}
	return &ev, nil
}
