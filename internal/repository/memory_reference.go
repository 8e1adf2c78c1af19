package repository

import (
	"context"
	"sync"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"
)

// MemoryReferenceRepo holds variants, variant rules and packaging kits.
// Reference data is immutable at runtime; Put* helpers exist for seeding.
type MemoryReferenceRepo struct {
	mu       sync.RWMutex
	variants map[string]domain.ProductVariant
	rules    map[string]domain.VariantRules
	kits     map[string]domain.PackagingKit
}

func NewMemoryReferenceRepo() *MemoryReferenceRepo {
	return &MemoryReferenceRepo{
		variants: map[string]domain.ProductVariant{},
		rules:    map[string]domain.VariantRules{},
		kits:     map[string]domain.PackagingKit{},
	}
}

func (r *MemoryReferenceRepo) PutVariant(v domain.ProductVariant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[v.VariantID] = v
}

func (r *MemoryReferenceRepo) PutVariantRules(rules domain.VariantRules) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rules.VariantID] = rules
}

func (r *MemoryReferenceRepo) PutPackagingKit(k domain.PackagingKit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kits[k.KitID] = k
}

func (r *MemoryReferenceRepo) GetVariant(_ context.Context, variantID string) (*domain.ProductVariant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[variantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (r *MemoryReferenceRepo) GetVariantRules(_ context.Context, variantID string) (*domain.VariantRules, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules, ok := r.rules[variantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &rules, nil
}

func (r *MemoryReferenceRepo) GetPackagingKit(_ context.Context, kitID string) (*domain.PackagingKit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.kits[kitID]
	if !ok {
		return nil, ErrNotFound
	}
	return &k, nil
}
