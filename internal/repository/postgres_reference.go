package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/DynaRob/flexavolt-mes-starter2/internal/domain"

	"github.com/lib/pq"
)

type PostgresReferenceRepo struct {
	db *sql.DB
}

func NewPostgresReferenceRepo(db *sql.DB) *PostgresReferenceRepo {
	return &PostgresReferenceRepo{db: db}
}

func (r *PostgresReferenceRepo) GetVariant(ctx context.Context, variantID string) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := r.db.QueryRowContext(ctx,
		`SELECT variant_id::text, variant_code, default_language_set, finished_item_id
		 FROM product_variants WHERE variant_id = $1`,
		variantID,
	).Scan(&v.VariantID, &v.VariantCode, &v.DefaultLanguageSet, &v.FinishedItemID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant %s: %w", variantID, err)
	}
	return &v, nil
}

func (r *PostgresReferenceRepo) GetVariantRules(ctx context.Context, variantID string) (*domain.VariantRules, error) {
	var (
		rules   domain.VariantRules
		fwRaw   []byte
		packRaw []byte
		manual  []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT variant_id::text, allowed_hw_revs, firmware_policy, packaging_policy, manual_policy
		 FROM variant_rules WHERE variant_id = $1`,
		variantID,
	).Scan(&rules.VariantID, pq.Array(&rules.AllowedHwRevs), &fwRaw, &packRaw, &manual)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variant rules %s: %w", variantID, err)
	}
	if len(fwRaw) > 0 {
		if err := json.Unmarshal(fwRaw, &rules.Firmware); err != nil {
			return nil, fmt.Errorf("decode firmware_policy: %w", err)
		}
	}
	if len(packRaw) > 0 {
		if err := json.Unmarshal(packRaw, &rules.Packaging); err != nil {
			return nil, fmt.Errorf("decode packaging_policy: %w", err)
		}
	}
	rules.ManualPolicy = manual
	return &rules, nil
}

func (r *PostgresReferenceRepo) GetPackagingKit(ctx context.Context, kitID string) (*domain.PackagingKit, error) {
	var k domain.PackagingKit
	err := r.db.QueryRowContext(ctx,
		`SELECT kit_id, compatible_variant_codes, language_set, active, insert_versions
		 FROM packaging_kits WHERE kit_id = $1`,
		kitID,
	).Scan(&k.KitID, pq.Array(&k.CompatibleVariantCodes), &k.LanguageSet, &k.Active, &k.InsertVersions)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get packaging kit %s: %w", kitID, err)
	}
	return &k, nil
}
