package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

// ReportService computes the aggregate numbers the reporting front end
// renders. It only reads; visualization stays outside this service.
type ReportService struct {
	store port.DocumentStore
}

func NewReportService(store port.DocumentStore) *ReportService {
	return &ReportService{store: store}
}

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

// RevenueByWeekday sums completed sale totals per weekday across [from, to].
func (s *ReportService) RevenueByWeekday(ctx context.Context, from, to time.Time) ([]domain.ReportRow, error) {
	docs, err := s.store.Query(ctx, salesCollection, port.Filter{
		Field: "status", Op: port.FilterEq, Value: string(domain.SaleStatusCompleted),
	})
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}

	totals := make(map[time.Weekday]decimal.Decimal, len(weekdays))
	for _, doc := range docs {
		var sale domain.Sale
		if err := json.Unmarshal(doc.Body, &sale); err != nil {
			return nil, fmt.Errorf("decode sale %s: %w", doc.ID, err)
		}

		day, err := parseSaleDate(sale.Date)
		if err != nil {
			continue
		}
		if day.Before(from) || day.After(to) {
			continue
		}

		totals[day.Weekday()] = totals[day.Weekday()].Add(sale.Total)
	}

	rows := make([]domain.ReportRow, 0, len(weekdays))
	for _, wd := range weekdays {
		rows = append(rows, domain.ReportRow{
			Name:  wd.String()[:3],
			Value: totals[wd],
		})
	}
	return rows, nil
}

// StockByCategory counts units on hand per item category.
func (s *ReportService) StockByCategory(ctx context.Context) ([]domain.ReportRow, error) {
	docs, err := s.store.List(ctx, inventoryCollection)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}

	byCategory := map[string]decimal.Decimal{}
	order := []string{}
	for _, doc := range docs {
		var item domain.InventoryItem
		if err := json.Unmarshal(doc.Body, &item); err != nil {
			return nil, fmt.Errorf("decode inventory item %s: %w", doc.ID, err)
		}

		category := item.Category
		if category == "" {
			category = "Uncategorized"
		}
		if _, seen := byCategory[category]; !seen {
			order = append(order, category)
		}
		byCategory[category] = byCategory[category].Add(decimal.NewFromInt(int64(item.StockLevel)))
	}

	rows := make([]domain.ReportRow, 0, len(order))
	for _, category := range order {
		rows = append(rows, domain.ReportRow{Name: category, Value: byCategory[category]})
	}
	return rows, nil
}

// Sale dates are RFC3339 once submitted; drafts carry the date-only form.
func parseSaleDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
