package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ibills/backoffice/internal/adapter/handler"
	"github.com/ibills/backoffice/internal/adapter/identity"
	"github.com/ibills/backoffice/internal/adapter/storage"
	"github.com/ibills/backoffice/internal/config"
	"github.com/ibills/backoffice/internal/core/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL (document store)
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}
	log.Info("connected to mysql")

	store := storage.NewMySQLDocumentStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	// Redis (claims/token cache)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	log.Info("connected to redis")

	claimsCache := storage.NewRedisClaimsCache(rdb)
	provider := identity.NewJWTProvider(store, cfg.JWTSecret, cfg.TokenLifespan(), cfg.ClaimsEndpoint)

	// Services
	sessions := service.NewSessionManager(provider, claimsCache, cfg.TokenLifespan(), log)
	sales := service.NewSaleService(store, cfg.QueueSize, log)
	inventory := service.NewInventoryService(store)
	customers := service.NewCustomerService(store)
	employees := service.NewEmployeeService(store)
	reports := service.NewReportService(store)

	// Stock adjustment worker pool
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			adjustLoop(id, sales, log)
		}(i)
	}
	log.Infof("started %d stock workers", cfg.WorkerCount)

	// HTTP server
	h := handler.New(sessions, sales, inventory, customers, employees, reports, log)
	router := gin.New()
	router.Use(gin.Recovery())
	h.Register(router)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	// Close the adjustment queue and wait for workers to drain it
	sales.Close()
	wg.Wait()
	log.Info("workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

func adjustLoop(id int, sales *service.SaleService, log *logrus.Logger) {
	for adj := range sales.Adjustments() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		// Best effort: the sale document is already persisted, failures
		// are logged and never retried.
		if err := sales.ApplyAdjustment(ctx, adj); err != nil {
			log.Errorf("worker %d: stock adjustment for %s failed: %v", id, adj.ItemID, err)
		}

		cancel()
	}
}
