package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/google/uuid"
)

// MemoryUnitsRepo backs dev mode and unit tests when DB is disabled.
type MemoryUnitsRepo struct {
	mu     sync.RWMutex
	units  map[string]domain.SerializedUnit // sn -> unit
	lastNo map[string]int64                 // serial prefix -> last allocated number
}

func NewMemoryUnitsRepo() *MemoryUnitsRepo {
	return &MemoryUnitsRepo{
		units:  map[string]domain.SerializedUnit{},
		lastNo: map[string]int64{},
	}
}

func (r *MemoryUnitsRepo) CreateGeneric(_ context.Context, prodOrderID *string) (*domain.SerializedUnit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := time.Now().UTC().Format("0601") + "-GN"
	r.lastNo[prefix]++
	sn := fmt.Sprintf("%s-%05d", prefix, r.lastNo[prefix])
	if _, exists := r.units[sn]; exists {
		return nil, fmt.Errorf("serial collision on %s: %w", sn, ErrConflict)
	}

	now := time.Now().UTC()
	class := "GN"
	u := domain.SerializedUnit{
		SN:          sn,
		Status:      domain.StatusGeneric,
		SerialClass: &class,
		ProdOrderID: prodOrderID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.units[sn] = u
	return &u, nil
}

// Put seeds a unit directly, bypassing serial allocation. Test helper.
func (r *MemoryUnitsRepo) Put(u domain.SerializedUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	r.units[u.SN] = u
}

func (r *MemoryUnitsRepo) Get(_ context.Context, sn string) (*domain.SerializedUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.units[sn]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryUnitsRepo) List(_ context.Context) ([]domain.SerializedUnit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SerializedUnit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SN < out[j].SN })
	return out, nil
}

func (r *MemoryUnitsRepo) SetVariant(_ context.Context, sn, variantID, assignedCode, status string) error {
	return r.update(sn, func(u *domain.SerializedUnit) {
		u.VariantID = &variantID
		u.AssignedCode = &assignedCode
		u.Status = status
	})
}

func (r *MemoryUnitsRepo) SetFlashResult(_ context.Context, sn string, hwRev, fwVersion, fwBuildHash *string, status string) error {
	return r.update(sn, func(u *domain.SerializedUnit) {
		u.HwRevDetected = hwRev
		u.FwVersionDetected = fwVersion
		u.FwBuildHash = fwBuildHash
		u.Status = status
	})
}

func (r *MemoryUnitsRepo) SetTestOutcome(_ context.Context, sn, status string, hwRev, fwVersion, fwBuildHash *string) error {
	return r.update(sn, func(u *domain.SerializedUnit) {
		u.Status = status
		if hwRev != nil {
			u.HwRevDetected = hwRev
		}
		if fwVersion != nil {
			u.FwVersionDetected = fwVersion
		}
		if fwBuildHash != nil {
			u.FwBuildHash = fwBuildHash
		}
	})
}

func (r *MemoryUnitsRepo) SetStatus(_ context.Context, sn, status string) error {
	return r.update(sn, func(u *domain.SerializedUnit) {
		u.Status = status
	})
}

func (r *MemoryUnitsRepo) update(sn string, fn func(*domain.SerializedUnit)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.units[sn]
	if !ok {
		return ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.units[sn] = u
	return nil
}

// MemoryTestRunsRepo keeps the append-only test history in insertion order,
// so "latest" is well defined even when two runs land in the same clock tick.
type MemoryTestRunsRepo struct {
	mu   sync.RWMutex
	runs map[string][]domain.TestRun // sn -> runs, oldest first
}

func NewMemoryTestRunsRepo() *MemoryTestRunsRepo {
	return &MemoryTestRunsRepo{runs: map[string][]domain.TestRun{}}
}

func (r *MemoryTestRunsRepo) Insert(_ context.Context, run *domain.TestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.TestRunID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	r.runs[run.SN] = append(r.runs[run.SN], *run)
	return nil
}

func (r *MemoryTestRunsRepo) LatestBySN(_ context.Context, sn string) (*domain.TestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := r.runs[sn]
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	latest := runs[len(runs)-1]
	return &latest, nil
}
