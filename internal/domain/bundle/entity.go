package bundle

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fulfillment modes: a provider name means the order is submitted to that
// reseller at placement; manual means an Editor settles it by hand.
const (
	FulfillmentManual = "manual"
)

// Bundle is a sellable data-bundle SKU with unit-tracked stock
type Bundle struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	BundleType        string          `db:"bundle_type" json:"bundle_type"`
	CapacityMB        int64           `db:"capacity_mb" json:"capacity_mb"`
	Price             decimal.Decimal `db:"price" json:"price"`
	RolePricing       RolePricing     `db:"role_pricing" json:"role_pricing,omitempty"`
	Fulfillment       string          `db:"fulfillment" json:"fulfillment"`
	IsActive          bool            `db:"is_active" json:"is_active"`
	StockAvailable    int             `db:"stock_available" json:"stock_available"`
	StockReserved     int             `db:"stock_reserved" json:"stock_reserved"`
	StockSold         int             `db:"stock_sold" json:"stock_sold"`
	StockInitial      int             `db:"stock_initial" json:"stock_initial"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	IsOutOfStock      bool            `db:"is_out_of_stock" json:"is_out_of_stock"`
	IsLowStock        bool            `db:"is_low_stock" json:"is_low_stock"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// PriceFor returns the price applicable to a role, falling back to the base price
func (b *Bundle) PriceFor(role string) decimal.Decimal {
	if p, ok := b.RolePricing[role]; ok {
		return p
	}
	return b.Price
}

// RequiresProvider reports whether orders for this bundle go to a reseller API
func (b *Bundle) RequiresProvider() bool {
	return b.Fulfillment != "" && b.Fulfillment != FulfillmentManual
}

// RolePricing maps role names to override prices, stored as JSONB
type RolePricing map[string]decimal.Decimal

func (rp *RolePricing) Scan(src any) error {
	if src == nil {
		*rp = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	}
	if len(raw) == 0 {
		*rp = nil
		return nil
	}
	return json.Unmarshal(raw, rp)
}

// StockHistoryEntry is one append-only record of a stock change
type StockHistoryEntry struct {
	ID                uuid.UUID `db:"id" json:"id"`
	BundleID          uuid.UUID `db:"bundle_id" json:"bundle_id"`
	PreviousAvailable int       `db:"previous_available" json:"previous_available"`
	Delta             int       `db:"delta" json:"delta"`
	NewAvailable      int       `db:"new_available" json:"new_available"`
	Action            string    `db:"action" json:"action"`
	ActorID           uuid.UUID `db:"actor_id" json:"actor_id"`
	Reason            string    `db:"reason" json:"reason"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
