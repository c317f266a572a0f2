package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

// InventoryService owns the inventory collection: the catalog the sale
// engine snapshots plus the admin-side item maintenance.
type InventoryService struct {
	store port.DocumentStore
}

func NewInventoryService(store port.DocumentStore) *InventoryService {
	return &InventoryService{store: store}
}

func (s *InventoryService) List(ctx context.Context) ([]domain.InventoryItem, error) {
	docs, err := s.store.List(ctx, inventoryCollection)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	return decodeInventory(docs)
}

// InStock returns the items a sale can currently be composed from.
func (s *InventoryService) InStock(ctx context.Context) ([]domain.InventoryItem, error) {
	docs, err := s.store.Query(ctx, inventoryCollection, port.Filter{
		Field: "stock", Op: port.FilterGt, Value: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return decodeInventory(docs)
}

func (s *InventoryService) Create(ctx context.Context, item domain.InventoryItem) (string, error) {
	item.LastUpdated = time.Now()
	id, err := s.store.Insert(ctx, inventoryCollection, item)
	if err != nil {
		return "", fmt.Errorf("create inventory item: %w", err)
	}
	return id, nil
}

func (s *InventoryService) Update(ctx context.Context, id string, partial map[string]any) error {
	partial["lastUpdated"] = time.Now().Format(time.RFC3339)
	if err := s.store.Update(ctx, inventoryCollection, id, partial); err != nil {
		return fmt.Errorf("update inventory item: %w", err)
	}
	return nil
}

func decodeInventory(docs []port.Document) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, len(docs))
	for _, doc := range docs {
		var item domain.InventoryItem
		if err := json.Unmarshal(doc.Body, &item); err != nil {
			return nil, fmt.Errorf("decode inventory item %s: %w", doc.ID, err)
		}
		item.ID = doc.ID
		items = append(items, item)
	}
	return items, nil
}
