package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "pending"
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// SaleLine is one catalog item on a sale. UnitPrice is snapshotted from the
// catalog when the line is added; later catalog price changes do not alter
// an in-progress draft.
type SaleLine struct {
	ItemID    string          `json:"itemId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Sale is an order document. While being composed it is the draft
// (status pending, lines unique by item id); at submission it is stamped
// completed and persisted as a single document.
type Sale struct {
	ID         string          `json:"-"`
	OperatorID string          `json:"userId"`
	CustomerID string          `json:"customerId"`
	Lines      []SaleLine      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Date       string          `json:"date"`
	Status     SaleStatus      `json:"status"`
	Notes      string          `json:"notes,omitempty"`
}

// NewDraft returns a fresh empty pending sale for the operator.
func NewDraft(operatorID string, now time.Time) Sale {
	return Sale{
		OperatorID: operatorID,
		Lines:      []SaleLine{},
		Total:      decimal.Zero,
		Date:       now.Format("2006-01-02"),
		Status:     SaleStatusPending,
	}
}

// RecomputeTotal recalculates the total from the full current line set.
// Every line mutation must end here; the total is never patched
// incrementally, so interleaved mutations cannot make it drift.
func (s *Sale) RecomputeTotal() {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	s.Total = total
}

// Line returns the index of the line for itemID, or -1.
func (s *Sale) Line(itemID string) int {
	for i, l := range s.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}
