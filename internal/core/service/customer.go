package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

type CustomerService struct {
	store port.DocumentStore
}

func NewCustomerService(store port.DocumentStore) *CustomerService {
	return &CustomerService{store: store}
}

func (s *CustomerService) List(ctx context.Context) ([]domain.Customer, error) {
	docs, err := s.store.List(ctx, customersCollection)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return decodeCustomers(docs)
}

// SearchByName does a case-insensitive prefix match over the full list.
// The document collaborator only supports equality and greater-than, so the
// prefix narrowing happens here.
func (s *CustomerService) SearchByName(ctx context.Context, prefix string) ([]domain.Customer, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	prefix = strings.ToLower(prefix)
	matched := make([]domain.Customer, 0, len(all))
	for _, c := range all {
		if strings.HasPrefix(strings.ToLower(c.Name), prefix) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (s *CustomerService) Create(ctx context.Context, c domain.Customer) (string, error) {
	c.CreatedAt = time.Now()
	id, err := s.store.Insert(ctx, customersCollection, c)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return id, nil
}

func (s *CustomerService) Update(ctx context.Context, id string, partial map[string]any) error {
	if err := s.store.Update(ctx, customersCollection, id, partial); err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

func decodeCustomers(docs []port.Document) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		var c domain.Customer
		if err := json.Unmarshal(doc.Body, &c); err != nil {
			return nil, fmt.Errorf("decode customer %s: %w", doc.ID, err)
		}
		c.ID = doc.ID
		customers = append(customers, c)
	}
	return customers, nil
}
