package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

const employeesCollection = "employees"

type EmployeeService struct {
	store port.DocumentStore
}

func NewEmployeeService(store port.DocumentStore) *EmployeeService {
	return &EmployeeService{store: store}
}

func (s *EmployeeService) List(ctx context.Context) ([]domain.Employee, error) {
	docs, err := s.store.List(ctx, employeesCollection)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}

	employees := make([]domain.Employee, 0, len(docs))
	for _, doc := range docs {
		var e domain.Employee
		if err := json.Unmarshal(doc.Body, &e); err != nil {
			return nil, fmt.Errorf("decode employee %s: %w", doc.ID, err)
		}
		e.ID = doc.ID
		employees = append(employees, e.Sanitized())
	}
	return employees, nil
}

// Get returns the employee, or nil if absent.
func (s *EmployeeService) Get(ctx context.Context, id string) (*domain.Employee, error) {
	doc, err := s.store.Get(ctx, employeesCollection, id)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if doc == nil {
		return nil, nil
	}

	var e domain.Employee
	if err := json.Unmarshal(doc.Body, &e); err != nil {
		return nil, fmt.Errorf("decode employee %s: %w", id, err)
	}
	e.ID = doc.ID
	e = e.Sanitized()
	return &e, nil
}

func (s *EmployeeService) Update(ctx context.Context, id string, partial map[string]any) error {
	if err := s.store.Update(ctx, employeesCollection, id, partial); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}
