package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

// Mock DocumentStore
type mockDocStore struct {
	mu          sync.Mutex
	collections map[string]map[string]json.RawMessage
	order       map[string][]string
	nextID      int

	failInsert error

	insertStarted chan struct{}
	insertRelease chan struct{}
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{
		collections: make(map[string]map[string]json.RawMessage),
		order:       make(map[string][]string),
	}
}

func (m *mockDocStore) put(collection, id string, body any) {
	raw, _ := json.Marshal(body)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]json.RawMessage)
	}
	if _, exists := m.collections[collection][id]; !exists {
		m.order[collection] = append(m.order[collection], id)
	}
	m.collections[collection][id] = raw
}

func (m *mockDocStore) Get(ctx context.Context, collection, id string) (*port.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return &port.Document{ID: id, Body: raw}, nil
}

func (m *mockDocStore) List(ctx context.Context, collection string) ([]port.Document, error) {
	return m.Query(ctx, collection)
}

func (m *mockDocStore) Query(ctx context.Context, collection string, filters ...port.Filter) ([]port.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := []port.Document{}
	for _, id := range m.order[collection] {
		raw := m.collections[collection][id]
		var body map[string]any
		json.Unmarshal(raw, &body)

		matched := true
		for _, f := range filters {
			if !matchFilter(body, f) {
				matched = false
				break
			}
		}
		if matched {
			docs = append(docs, port.Document{ID: id, Body: raw})
		}
	}
	return docs, nil
}

func (m *mockDocStore) Insert(ctx context.Context, collection string, body any) (string, error) {
	if m.insertStarted != nil {
		m.insertStarted <- struct{}{}
		<-m.insertRelease
	}

	m.mu.Lock()
	fail := m.failInsert
	m.mu.Unlock()
	if fail != nil {
		return "", fail
	}

	m.mu.Lock()
	m.nextID++
	id := "doc-" + strconv.Itoa(m.nextID)
	m.mu.Unlock()

	m.put(collection, id, body)
	return id, nil
}

func (m *mockDocStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	m.mu.Lock()
	raw, ok := m.collections[collection][id]
	m.mu.Unlock()
	if !ok {
		return errors.New("document not found")
	}

	var body map[string]any
	json.Unmarshal(raw, &body)
	for k, v := range partial {
		body[k] = v
	}
	m.put(collection, id, body)
	return nil
}

func matchFilter(body map[string]any, f port.Filter) bool {
	v, ok := body[f.Field]
	if !ok {
		return false
	}

	switch f.Op {
	case port.FilterEq:
		return fmt.Sprint(v) == fmt.Sprint(f.Value)
	case port.FilterGt:
		fv, err := toFloat(v)
		if err != nil {
			return false
		}
		want, err := toFloat(f.Value)
		if err != nil {
			return false
		}
		return fv > want
	}
	return false
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	}
	return 0, fmt.Errorf("not numeric: %v", v)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// newLoadedSaleService returns a service whose operator snapshot holds items
// A ($10, stock 5) and B ($5, stock 3) plus one customer.
func newLoadedSaleService(t *testing.T) (*SaleService, *mockDocStore) {
	t.Helper()

	store := newMockDocStore()
	store.put(inventoryCollection, "A", domain.InventoryItem{
		Name: "Item A", UnitPrice: decimal.NewFromInt(10), StockLevel: 5, LastUpdated: time.Now(),
	})
	store.put(inventoryCollection, "B", domain.InventoryItem{
		Name: "Item B", UnitPrice: decimal.NewFromInt(5), StockLevel: 3, LastUpdated: time.Now(),
	})
	store.put(customersCollection, "cust-1", domain.Customer{
		Name: "Hilltop Cafe", Phone: "555-0101", CreatedAt: time.Now(),
	})

	svc := NewSaleService(store, 100, testLogger())
	if err := svc.LoadSnapshot(context.Background(), "op-1"); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	return svc, store
}

func assertTotal(t *testing.T, draft domain.Sale, want string) {
	t.Helper()
	if !draft.Total.Equal(decimal.RequireFromString(want)) {
		t.Errorf("expected total %s, got %s", want, draft.Total)
	}
}

func TestAddLine_RunningTotal(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	assertTotal(t, svc.AddLine("op-1", "A"), "10")
	assertTotal(t, svc.AddLine("op-1", "B"), "15")
	assertTotal(t, svc.SetQuantity("op-1", "A", 3), "35")
	assertTotal(t, svc.RemoveLine("op-1", "B"), "30")
}

func TestAddLine_ExistingLineIncrements(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	draft := svc.AddLine("op-1", "A")

	if len(draft.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(draft.Lines))
	}
	if draft.Lines[0].Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", draft.Lines[0].Quantity)
	}
	assertTotal(t, draft, "20")
}

func TestAddLine_UnknownItemIsNoop(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	before := svc.Draft("op-1")

	after := svc.AddLine("op-1", "ghost-id")

	if len(after.Lines) != len(before.Lines) {
		t.Errorf("expected draft unchanged, got %d lines", len(after.Lines))
	}
	if !after.Total.Equal(before.Total) {
		t.Errorf("expected total unchanged, got %s", after.Total)
	}
}

func TestSetQuantity_BelowOneRemovesLine(t *testing.T) {
	for _, quantity := range []int{0, -1} {
		svc, _ := newLoadedSaleService(t)
		svc.AddLine("op-1", "A")
		svc.AddLine("op-1", "B")

		draft := svc.SetQuantity("op-1", "A", quantity)

		if i := draft.Line("A"); i >= 0 {
			t.Errorf("quantity %d: expected line removed", quantity)
		}
		assertTotal(t, draft, "5")
	}
}

func TestSetQuantity_UnknownItemIsNoop(t *testing.T) {
	svc, _ := newLoadedSaleService(t)
	svc.AddLine("op-1", "A")

	draft := svc.SetQuantity("op-1", "B", 4)

	if len(draft.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(draft.Lines))
	}
	assertTotal(t, draft, "10")
}

func TestUnitPriceSnapshotSurvivesCatalogReload(t *testing.T) {
	svc, store := newLoadedSaleService(t)
	svc.AddLine("op-1", "A")

	// Catalog price changes remotely, snapshot is reloaded.
	if err := store.Update(context.Background(), inventoryCollection, "A", map[string]any{"price": "99"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := svc.LoadSnapshot(context.Background(), "op-1"); err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	// The in-progress line keeps the price captured at add time.
	draft := svc.AddLine("op-1", "A")
	if draft.Lines[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", draft.Lines[0].Quantity)
	}
	assertTotal(t, draft, "20")
}

func TestSubmit_RequiresLinesAndCustomer(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	if _, err := svc.Submit(context.Background(), "op-1"); !errors.Is(err, ErrEmptyDraft) {
		t.Errorf("expected ErrEmptyDraft, got: %v", err)
	}

	svc.AddLine("op-1", "A")
	if _, err := svc.Submit(context.Background(), "op-1"); !errors.Is(err, ErrNoCustomer) {
		t.Errorf("expected ErrNoCustomer, got: %v", err)
	}
}

func TestSubmit_PersistsCompletedAndResetsDraft(t *testing.T) {
	svc, store := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	svc.AddLine("op-1", "B")
	svc.SetQuantity("op-1", "A", 3)
	svc.RemoveLine("op-1", "B")
	if _, err := svc.SetCustomer("op-1", "cust-1"); err != nil {
		t.Fatalf("SetCustomer failed: %v", err)
	}

	sale, err := svc.Submit(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if sale.Status != domain.SaleStatusCompleted {
		t.Errorf("expected completed status, got %s", sale.Status)
	}
	assertTotal(t, sale, "30")
	if sale.ID == "" {
		t.Error("expected non-empty sale id")
	}

	// Persisted record is the completed order.
	doc, _ := store.Get(context.Background(), salesCollection, sale.ID)
	if doc == nil {
		t.Fatal("sale not persisted")
	}
	var persisted domain.Sale
	if err := json.Unmarshal(doc.Body, &persisted); err != nil {
		t.Fatalf("decode persisted sale: %v", err)
	}
	if persisted.Status != domain.SaleStatusCompleted {
		t.Errorf("expected persisted status completed, got %s", persisted.Status)
	}
	assertTotal(t, persisted, "30")

	// Working draft resets to a fresh pending order.
	draft := svc.Draft("op-1")
	if draft.Status != domain.SaleStatusPending {
		t.Errorf("expected pending draft, got %s", draft.Status)
	}
	if len(draft.Lines) != 0 {
		t.Errorf("expected empty draft, got %d lines", len(draft.Lines))
	}
	if draft.CustomerID != "" {
		t.Errorf("expected cleared customer, got %s", draft.CustomerID)
	}
	assertTotal(t, draft, "0")
}

func TestSubmit_FailureLeavesDraftForRetry(t *testing.T) {
	svc, store := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	svc.SetCustomer("op-1", "cust-1")
	before := svc.Draft("op-1")

	store.mu.Lock()
	store.failInsert = errors.New("store unavailable")
	store.mu.Unlock()

	if _, err := svc.Submit(context.Background(), "op-1"); err == nil {
		t.Fatal("expected submit error")
	}

	after := svc.Draft("op-1")
	if len(after.Lines) != len(before.Lines) || after.CustomerID != before.CustomerID {
		t.Error("expected draft preserved after failed submit")
	}
	if !after.Total.Equal(before.Total) {
		t.Errorf("expected total %s preserved, got %s", before.Total, after.Total)
	}

	// Retry without re-entering data.
	store.mu.Lock()
	store.failInsert = nil
	store.mu.Unlock()

	if _, err := svc.Submit(context.Background(), "op-1"); err != nil {
		t.Errorf("retry failed: %v", err)
	}
}

func TestSubmit_QueuesStockAdjustments(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	svc.SetQuantity("op-1", "A", 3)
	svc.AddLine("op-1", "B")
	svc.SetCustomer("op-1", "cust-1")

	if _, err := svc.Submit(context.Background(), "op-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	deltas := map[string]int{}
	for i := 0; i < 2; i++ {
		adj := <-svc.Adjustments()
		deltas[adj.ItemID] = adj.Delta
	}

	if deltas["A"] != -3 {
		t.Errorf("expected delta -3 for A, got %d", deltas["A"])
	}
	if deltas["B"] != -1 {
		t.Errorf("expected delta -1 for B, got %d", deltas["B"])
	}
}

func TestSubmit_RejectsReentryWhileInFlight(t *testing.T) {
	svc, store := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	svc.SetCustomer("op-1", "cust-1")

	store.insertStarted = make(chan struct{})
	store.insertRelease = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(context.Background(), "op-1")
		done <- err
	}()

	<-store.insertStarted

	if _, err := svc.Submit(context.Background(), "op-1"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight, got: %v", err)
	}

	close(store.insertRelease)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestApplyAdjustment_DecrementsStock(t *testing.T) {
	svc, store := newLoadedSaleService(t)

	err := svc.ApplyAdjustment(context.Background(), StockAdjustment{ItemID: "A", Delta: -3})
	if err != nil {
		t.Fatalf("ApplyAdjustment failed: %v", err)
	}

	doc, _ := store.Get(context.Background(), inventoryCollection, "A")
	var item domain.InventoryItem
	if err := json.Unmarshal(doc.Body, &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.StockLevel != 2 {
		t.Errorf("expected stock 2, got %d", item.StockLevel)
	}

	// Never goes below zero.
	if err := svc.ApplyAdjustment(context.Background(), StockAdjustment{ItemID: "A", Delta: -10}); err != nil {
		t.Fatalf("ApplyAdjustment failed: %v", err)
	}
	doc, _ = store.Get(context.Background(), inventoryCollection, "A")
	json.Unmarshal(doc.Body, &item)
	if item.StockLevel != 0 {
		t.Errorf("expected stock clamped at 0, got %d", item.StockLevel)
	}
}

func TestTotalInvariantUnderMutationSequences(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	type step struct {
		op     string
		itemID string
		qty    int
	}
	steps := []step{
		{"add", "A", 0}, {"add", "B", 0}, {"add", "A", 0},
		{"set", "B", 7}, {"remove", "A", 0}, {"add", "A", 0},
		{"set", "A", 2}, {"set", "B", 0}, {"add", "ghost", 0},
		{"add", "B", 0}, {"set", "ghost", 9}, {"remove", "ghost", 0},
	}

	for i, s := range steps {
		var draft domain.Sale
		switch s.op {
		case "add":
			draft = svc.AddLine("op-1", s.itemID)
		case "set":
			draft = svc.SetQuantity("op-1", s.itemID, s.qty)
		case "remove":
			draft = svc.RemoveLine("op-1", s.itemID)
		}

		want := decimal.Zero
		for _, l := range draft.Lines {
			if l.Quantity < 1 {
				t.Fatalf("step %d: line %s has quantity %d", i, l.ItemID, l.Quantity)
			}
			want = want.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
		if !draft.Total.Equal(want) {
			t.Fatalf("step %d: total %s, expected %s", i, draft.Total, want)
		}
	}
}

func TestSetCustomer_UnknownCustomerRejected(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	if _, err := svc.SetCustomer("op-1", "nobody"); !errors.Is(err, ErrCustomerUnknown) {
		t.Errorf("expected ErrCustomerUnknown, got: %v", err)
	}
}

func TestListSales_FiltersByOperator(t *testing.T) {
	svc, _ := newLoadedSaleService(t)

	svc.AddLine("op-1", "A")
	svc.SetCustomer("op-1", "cust-1")
	if _, err := svc.Submit(context.Background(), "op-1"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	sales, err := svc.ListSales(context.Background(), "op-1")
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %d", len(sales))
	}
	if sales[0].OperatorID != "op-1" {
		t.Errorf("expected operator op-1, got %s", sales[0].OperatorID)
	}

	other, err := svc.ListSales(context.Background(), "op-2")
	if err != nil {
		t.Fatalf("ListSales failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("expected no sales for op-2, got %d", len(other))
	}
}
