// seed creates the initial admin employee plus a small demo catalog and
// customer list. Safe to rerun: existing records (matched by email or sku)
// are left alone.
//
// Usage:
//
//	MYSQL_DSN=... JWT_SECRET=... go run ./cmd/seed
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/ibills/backoffice/internal/adapter/identity"
	"github.com/ibills/backoffice/internal/adapter/storage"
	"github.com/ibills/backoffice/internal/config"
	"github.com/ibills/backoffice/internal/core/domain"
	"github.com/ibills/backoffice/internal/port"
)

const (
	adminName     = "Back Office Admin"
	adminEmail    = "admin@ibills.local"
	adminPassword = "changeme-admin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect mysql: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ping mysql: %v\n", err)
		os.Exit(1)
	}

	store := storage.NewMySQLDocumentStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}

	if err := seedAdmin(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	if err := seedCatalog(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed catalog: %v\n", err)
		os.Exit(1)
	}
	if err := seedCustomers(ctx, store); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed customers: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("seed complete")
}

func seedAdmin(ctx context.Context, store port.DocumentStore) error {
	existing, err := store.Query(ctx, "employees", port.Filter{
		Field: "email", Op: port.FilterEq, Value: adminEmail,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		fmt.Printf("admin %s already present\n", adminEmail)
		return nil
	}

	hash, err := identity.HashPassword(adminPassword)
	if err != nil {
		return err
	}

	now := time.Now()
	id, err := store.Insert(ctx, "employees", domain.Employee{
		Name:         adminName,
		Email:        adminEmail,
		IsAdmin:      true,
		IsSales:      true,
		Position:     "Administrator",
		HireDate:     now,
		CreatedAt:    now,
		PasswordHash: string(hash),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created admin %s (%s)\n", adminEmail, id)
	return nil
}

func seedCatalog(ctx context.Context, store port.DocumentStore) error {
	items := []domain.InventoryItem{
		{Name: "Espresso Beans 1kg", SKU: "BEAN-1KG", Category: "Coffee", UnitPrice: decimal.NewFromFloat(18.50), StockLevel: 40, MinStockLevel: 10},
		{Name: "Ceramic Mug", SKU: "MUG-STD", Category: "Merchandise", UnitPrice: decimal.NewFromFloat(9.00), StockLevel: 120, MinStockLevel: 20},
		{Name: "Cold Brew Bottle", SKU: "CB-750", Category: "Coffee", UnitPrice: decimal.NewFromFloat(6.25), StockLevel: 60, MinStockLevel: 12},
		{Name: "Gift Card $25", SKU: "GIFT-25", Category: "Merchandise", UnitPrice: decimal.NewFromFloat(25.00), StockLevel: 200, MinStockLevel: 0},
	}

	for _, item := range items {
		existing, err := store.Query(ctx, "inventory", port.Filter{
			Field: "sku", Op: port.FilterEq, Value: item.SKU,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}

		item.LastUpdated = time.Now()
		if _, err := store.Insert(ctx, "inventory", item); err != nil {
			return err
		}
		fmt.Printf("created item %s\n", item.SKU)
	}
	return nil
}

func seedCustomers(ctx context.Context, store port.DocumentStore) error {
	customers := []domain.Customer{
		{Name: "Hilltop Cafe", Email: "orders@hilltop.example", Phone: "555-0101"},
		{Name: "Riverside Deli", Email: "purchasing@riverside.example", Phone: "555-0102"},
	}

	for _, customer := range customers {
		existing, err := store.Query(ctx, "customers", port.Filter{
			Field: "email", Op: port.FilterEq, Value: customer.Email,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			continue
		}

		customer.CreatedAt = time.Now()
		if _, err := store.Insert(ctx, "customers", customer); err != nil {
			return err
		}
		fmt.Printf("created customer %s\n", customer.Name)
	}
	return nil
}
