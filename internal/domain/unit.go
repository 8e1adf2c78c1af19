package domain

import "time"

// Unit lifecycle statuses. The order is strict: a unit only ever moves
// forward along this chain. TEST_PASS and TEST_FAIL share one rank: they
// are the two sub-states of "tested" and may replace each other as new
// fixture results arrive.
const (
	StatusGeneric   = "GENERIC"
	StatusAssigned  = "ASSIGNED"
	StatusFlashed   = "FLASHED"
	StatusAssembled = "ASSEMBLED"
	StatusTestPass  = "TEST_PASS"
	StatusTestFail  = "TEST_FAIL"
	StatusPacked    = "PACKED"
	StatusInStock   = "IN_FINISHED_STOCK"
)

var statusRank = map[string]int{
	StatusGeneric:   0,
	StatusAssigned:  1,
	StatusFlashed:   2,
	StatusAssembled: 3,
	StatusTestPass:  4,
	StatusTestFail:  4,
	StatusPacked:    5,
	StatusInStock:   6,
}

// StatusRank returns the position of a status in the lifecycle chain,
// or -1 for an unknown status.
func StatusRank(status string) int {
	if r, ok := statusRank[status]; ok {
		return r
	}
	return -1
}

// CanAdvance reports whether a unit currently in `from` may be written to
// `to`. Equal-rank writes are allowed only within the tested sub-states,
// so a re-test can flip TEST_PASS/TEST_FAIL without moving backward.
func CanAdvance(from, to string) bool {
	fr, tr := StatusRank(from), StatusRank(to)
	if fr < 0 || tr < 0 {
		return false
	}
	if tr > fr {
		return true
	}
	return tr == fr && tr == statusRank[StatusTestPass]
}

// SerializedUnit 对应 serialized_units 表
type SerializedUnit struct {
	SN                string    `db:"sn" json:"sn"` // PRIMARY KEY, immutable, human-legible (YYMM-GN-00001)
	Status            string    `db:"status" json:"status"`
	VariantID         *string   `db:"variant_id" json:"variant_id,omitempty"` // UUID, nullable until assignment
	SerialClass       *string   `db:"serial_class" json:"serial_class,omitempty"`
	AssignedCode      *string   `db:"assigned_product_code" json:"assigned_product_code,omitempty"`
	ProdOrderID       *string   `db:"prod_order_id" json:"prod_order_id,omitempty"`
	HwRevDetected     *string   `db:"hw_rev_detected" json:"hw_rev_detected,omitempty"`
	FwVersionDetected *string   `db:"fw_version_detected" json:"fw_version_detected,omitempty"`
	FwBuildHash       *string   `db:"fw_build_hash" json:"fw_build_hash,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}
