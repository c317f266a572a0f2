package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is a stocked catalog item. The sale engine treats it as
// read-only; stock moves through the inventory service and the post-sale
// adjustment worker.
type InventoryItem struct {
	ID            string          `json:"-"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	SKU           string          `json:"sku,omitempty"`
	Category      string          `json:"category,omitempty"`
	UnitPrice     decimal.Decimal `json:"price"`
	StockLevel    int             `json:"stock"`
	MinStockLevel int             `json:"minStockLevel,omitempty"`
	LastUpdated   time.Time       `json:"lastUpdated"`
}

func (i InventoryItem) InStock() bool {
	return i.StockLevel > 0
}

func (i InventoryItem) BelowMinimum() bool {
	return i.StockLevel < i.MinStockLevel
}
