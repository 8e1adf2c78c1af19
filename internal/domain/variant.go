package domain

import "encoding/json"

// ProductVariant 对应 product_variants 表（immutable reference data）
type ProductVariant struct {
	VariantID          string `db:"variant_id" json:"variant_id"` // UUID, PRIMARY KEY
	VariantCode        string `db:"variant_code" json:"variant_code"`
	DefaultLanguageSet string `db:"default_language_set" json:"default_language_set"`
	FinishedItemID     string `db:"finished_item_id" json:"finished_item_id"`
}

// FirmwarePolicy is the firmware_policy JSONB of variant_rules.
type FirmwarePolicy struct {
	RequiredPrefix   string `json:"required_prefix,omitempty"`
	RequireBuildHash bool   `json:"require_build_hash,omitempty"`
}

// PackagingPolicy is the packaging_policy JSONB of variant_rules.
type PackagingPolicy struct {
	RequireDeviceLabel bool `json:"require_device_label,omitempty"`
}

// VariantRules 对应 variant_rules 表，keyed by variant_id.
// Consulted by the packaging gate, never mutated.
type VariantRules struct {
	VariantID     string          `db:"variant_id"`
	AllowedHwRevs []string        `db:"allowed_hw_revs"`  // text[], empty = unrestricted
	Firmware      FirmwarePolicy  `db:"firmware_policy"`  // JSONB
	Packaging     PackagingPolicy `db:"packaging_policy"` // JSONB
	ManualPolicy  json.RawMessage `db:"manual_policy"`    // JSONB, nullable
}

// PackagingKit 对应 packaging_kits 表
type PackagingKit struct {
	KitID                  string          `db:"kit_id" json:"kit_id"`
	CompatibleVariantCodes []string        `db:"compatible_variant_codes" json:"compatible_variant_codes"` // text[]
	LanguageSet            string          `db:"language_set" json:"language_set"`
	Active                 bool            `db:"active" json:"active"`
	InsertVersions         json.RawMessage `db:"insert_versions" json:"insert_versions,omitempty"` // JSONB
}
