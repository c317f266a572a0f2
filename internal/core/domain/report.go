package domain

import "github.com/shopspring/decimal"

// ReportRow is one aggregate number handed to the rendering consumer.
type ReportRow struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}
