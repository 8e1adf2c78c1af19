package repository

import (
	"context"
	"sync"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/google/uuid"
)

// MemoryEventsRepo keeps the journal in insertion order. Entries are never
// updated or removed.
type MemoryEventsRepo struct {
	mu     sync.RWMutex
	events []domain.UnitEvent
}

func NewMemoryEventsRepo() *MemoryEventsRepo {
	return &MemoryEventsRepo{}
}

func (r *MemoryEventsRepo) Append(_ context.Context, ev *domain.UnitEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.EventID = uuid.NewString()
	ev.CreatedAt = time.Now().UTC()
	if len(ev.Payload) == 0 {
		ev.Payload = []byte("{}")
	}
	r.events = append(r.events, *ev)
	return nil
}

func (r *MemoryEventsRepo) LatestBySNAndType(_ context.Context, sn, eventType string) (*domain.UnitEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		ev := r.events[i]
		if ev.EventType == eventType && ev.SN != nil && *ev.SN == sn {
			return &ev, nil
		}
	}
	return nil, ErrNotFound
}

// All returns a copy of the journal. Test helper.
func (r *MemoryEventsRepo) All() []domain.UnitEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UnitEvent, len(r.events))
	copy(out, r.events)
	return out
}

// MemoryInventoryRepo is an append-only ledger.
type MemoryInventoryRepo struct {
	mu        sync.Mutex
	movements []domain.InventoryMovement
}

func NewMemoryInventoryRepo() *MemoryInventoryRepo {
	return &MemoryInventoryRepo{}
}

func (r *MemoryInventoryRepo) InsertMovement(_ context.Context, m *domain.InventoryMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.MovementID = uuid.NewString()
	m.CreatedAt = time.Now().UTC()
	r.movements = append(r.movements, *m)
	return nil
}

// Movements returns a copy of the ledger. Test helper.
func (r *MemoryInventoryRepo) Movements() []domain.InventoryMovement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.InventoryMovement, len(r.movements))
	copy(out, r.movements)
	return out
}

// MemoryProductionOrdersRepo backs production order dev mode and tests.
type MemoryProductionOrdersRepo struct {
	mu     sync.RWMutex
	orders map[string]domain.ProductionOrder
}

func NewMemoryProductionOrdersRepo() *MemoryProductionOrdersRepo {
	return &MemoryProductionOrdersRepo{orders: map[string]domain.ProductionOrder{}}
}

func (r *MemoryProductionOrdersRepo) Insert(_ context.Context, po *domain.ProductionOrder) (*domain.ProductionOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *po
	p.ProdOrderID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	r.orders[p.ProdOrderID] = p
	return &p, nil
}

func (r *MemoryProductionOrdersRepo) Get(_ context.Context, prodOrderID string) (*domain.ProductionOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	po, ok := r.orders[prodOrderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &po, nil
}
