package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

const (
	salesCollection     = "sales"
	inventoryCollection = "inventory"
	customersCollection = "customers"
)

var (
	ErrEmptyDraft      = errors.New("draft has no lines")
	ErrNoCustomer      = errors.New("no customer selected")
	ErrSubmitInFlight  = errors.New("submission already in flight")
	ErrCustomerUnknown = errors.New("customer not in loaded snapshot")
)

// StockAdjustment is a best-effort post-sale inventory change, applied by a
// background worker outside the sale document write.
type StockAdjustment struct {
	ItemID string
	Delta  int
}

// composer holds one operator's working draft plus the catalog and customer
// snapshots it composes against. Snapshots are point-in-time: later remote
// changes do not touch them until the next load.
type composer struct {
	mu         sync.Mutex
	catalog    map[string]domain.InventoryItem
	customers  map[string]domain.Customer
	draft      domain.Sale
	submitting bool
}

// SaleService is the sale composition engine. One draft per operator;
// every line mutation ends with a full total recompute.
type SaleService struct {
	store port.DocumentStore
	log   *logrus.Logger

	adjustments chan StockAdjustment
	closeOnce   sync.Once

	mu        sync.Mutex
	composers map[string]*composer
}

func NewSaleService(store port.DocumentStore, queueSize int, log *logrus.Logger) *SaleService {
	return &SaleService{
		store:       store,
		log:         log,
		adjustments: make(chan StockAdjustment, queueSize),
		composers:   make(map[string]*composer),
	}
}

// LoadSnapshot pulls the in-stock catalog and the customer list into the
// operator's snapshot. The working draft is left alone: items already on it
// keep their price snapshots.
func (s *SaleService) LoadSnapshot(ctx context.Context, operator string) error {
	itemDocs, err := s.store.Query(ctx, inventoryCollection, port.Filter{
		Field: "stock", Op: port.FilterGt, Value: 0,
	})
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	customerDocs, err := s.store.List(ctx, customersCollection)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}

	catalog := make(map[string]domain.InventoryItem, len(itemDocs))
	for _, doc := range itemDocs {
		var item domain.InventoryItem
		if err := json.Unmarshal(doc.Body, &item); err != nil {
			return fmt.Errorf("decode catalog item %s: %w", doc.ID, err)
		}
		item.ID = doc.ID
		catalog[doc.ID] = item
	}

	customers := make(map[string]domain.Customer, len(customerDocs))
	for _, doc := range customerDocs {
		var c domain.Customer
		if err := json.Unmarshal(doc.Body, &c); err != nil {
			return fmt.Errorf("decode customer %s: %w", doc.ID, err)
		}
		c.ID = doc.ID
		customers[doc.ID] = c
	}

	c := s.composerFor(operator)
	c.mu.Lock()
	c.catalog = catalog
	c.customers = customers
	c.mu.Unlock()

	return nil
}

// Catalog returns the operator's loaded catalog snapshot.
func (s *SaleService) Catalog(operator string) []domain.InventoryItem {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]domain.InventoryItem, 0, len(c.catalog))
	for _, item := range c.catalog {
		items = append(items, item)
	}
	return items
}

// AddLine adds one unit of the item to the draft. An item already on the
// draft gets its quantity bumped; an item missing from the loaded snapshot
// is a silent no-op.
func (s *SaleService) AddLine(operator, itemID string) domain.Sale {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.catalog[itemID]
	if !ok {
		return cloneSale(c.draft)
	}

	if i := c.draft.Line(itemID); i >= 0 {
		c.draft.Lines[i].Quantity++
	} else {
		c.draft.Lines = append(c.draft.Lines, domain.SaleLine{
			ItemID:    itemID,
			Quantity:  1,
			UnitPrice: item.UnitPrice,
		})
	}

	c.draft.RecomputeTotal()
	return cloneSale(c.draft)
}

// SetQuantity replaces a line's quantity. Below 1 it removes the line; an
// item not on the draft is a no-op.
func (s *SaleService) SetQuantity(operator, itemID string, quantity int) domain.Sale {
	if quantity < 1 {
		return s.RemoveLine(operator, itemID)
	}

	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.draft.Line(itemID); i >= 0 {
		c.draft.Lines[i].Quantity = quantity
		c.draft.RecomputeTotal()
	}
	return cloneSale(c.draft)
}

// RemoveLine deletes the line if present.
func (s *SaleService) RemoveLine(operator, itemID string) domain.Sale {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.draft.Line(itemID); i >= 0 {
		c.draft.Lines = append(c.draft.Lines[:i], c.draft.Lines[i+1:]...)
		c.draft.RecomputeTotal()
	}
	return cloneSale(c.draft)
}

// SetCustomer selects the draft's customer from the loaded snapshot.
func (s *SaleService) SetCustomer(operator, customerID string) (domain.Sale, error) {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.customers[customerID]; !ok {
		return cloneSale(c.draft), ErrCustomerUnknown
	}
	c.draft.CustomerID = customerID
	return cloneSale(c.draft), nil
}

func (s *SaleService) SetNotes(operator, notes string) domain.Sale {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.draft.Notes = notes
	return cloneSale(c.draft)
}

// Draft returns a copy of the operator's working draft.
func (s *SaleService) Draft(operator string) domain.Sale {
	c := s.composerFor(operator)
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneSale(c.draft)
}

// Submit persists the draft as a completed sale. It requires at least one
// line and a selected customer, and rejects re-entry while a prior call is
// in flight. On success the draft resets to a fresh pending order and the
// line quantities are queued as stock decrements; on persistence failure
// the draft is left untouched for retry.
func (s *SaleService) Submit(ctx context.Context, operator string) (domain.Sale, error) {
	c := s.composerFor(operator)

	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return domain.Sale{}, ErrSubmitInFlight
	}
	if len(c.draft.Lines) == 0 {
		c.mu.Unlock()
		return domain.Sale{}, ErrEmptyDraft
	}
	if c.draft.CustomerID == "" {
		c.mu.Unlock()
		return domain.Sale{}, ErrNoCustomer
	}
	c.submitting = true

	completed := cloneSale(c.draft)
	completed.Status = domain.SaleStatusCompleted
	completed.Date = time.Now().Format(time.RFC3339)
	completed.RecomputeTotal()
	c.mu.Unlock()

	id, err := s.store.Insert(ctx, salesCollection, completed)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		return domain.Sale{}, fmt.Errorf("persist sale: %w", err)
	}
	c.draft = domain.NewDraft(operator, time.Now())
	c.mu.Unlock()

	completed.ID = id
	for _, line := range completed.Lines {
		s.adjustments <- StockAdjustment{ItemID: line.ItemID, Delta: -line.Quantity}
	}

	return completed, nil
}

// ListSales returns the operator's persisted sales.
func (s *SaleService) ListSales(ctx context.Context, operator string) ([]domain.Sale, error) {
	docs, err := s.store.Query(ctx, salesCollection, port.Filter{
		Field: "userId", Op: port.FilterEq, Value: operator,
	})
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	sales := make([]domain.Sale, 0, len(docs))
	for _, doc := range docs {
		var sale domain.Sale
		if err := json.Unmarshal(doc.Body, &sale); err != nil {
			return nil, fmt.Errorf("decode sale %s: %w", doc.ID, err)
		}
		sale.ID = doc.ID
		sales = append(sales, sale)
	}
	return sales, nil
}

// Adjustments exposes the stock-adjustment queue for the worker pool.
func (s *SaleService) Adjustments() <-chan StockAdjustment {
	return s.adjustments
}

// Close closes the adjustment queue; call after the HTTP surface stops.
func (s *SaleService) Close() {
	s.closeOnce.Do(func() { close(s.adjustments) })
}

// ApplyAdjustment applies one queued stock change to the inventory
// collection. Best effort: the sale document is already persisted, so a
// failure is logged by the worker and never retried.
func (s *SaleService) ApplyAdjustment(ctx context.Context, adj StockAdjustment) error {
	doc, err := s.store.Get(ctx, inventoryCollection, adj.ItemID)
	if err != nil {
		return fmt.Errorf("read inventory item: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("inventory item %s not found", adj.ItemID)
	}

	var item domain.InventoryItem
	if err := json.Unmarshal(doc.Body, &item); err != nil {
		return fmt.Errorf("decode inventory item: %w", err)
	}

	stock := item.StockLevel + adj.Delta
	if stock < 0 {
		stock = 0
	}

	if err := s.store.Update(ctx, inventoryCollection, adj.ItemID, map[string]any{
		"stock":       stock,
		"lastUpdated": time.Now().Format(time.RFC3339),
	}); err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func (s *SaleService) composerFor(operator string) *composer {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.composers[operator]
	if !ok {
		c = &composer{
			catalog:   map[string]domain.InventoryItem{},
			customers: map[string]domain.Customer{},
			draft:     domain.NewDraft(operator, time.Now()),
		}
		s.composers[operator] = c
	}
	return c
}

func cloneSale(s domain.Sale) domain.Sale {
	out := s
	out.Lines = make([]domain.SaleLine, len(s.Lines))
	copy(out.Lines, s.Lines)
	return out
}
