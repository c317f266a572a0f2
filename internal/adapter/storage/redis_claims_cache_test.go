package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ibills/backoffice/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestClaimsRoundtrip(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisClaimsCache(client)
	identity := "test-identity-" + time.Now().Format("20060102150405.000")
	t.Cleanup(func() { cache.InvalidateClaims(ctx, identity) })

	// Absent before set.
	_, ok, err := cache.GetClaims(ctx, identity)
	if err != nil {
		t.Fatalf("GetClaims failed: %v", err)
	}
	if ok {
		t.Fatal("expected miss for fresh identity")
	}

	want := domain.Claims{Administrator: true, Sales: true}
	if err := cache.SetClaims(ctx, identity, want, time.Minute); err != nil {
		t.Fatalf("SetClaims failed: %v", err)
	}

	got, ok, err := cache.GetClaims(ctx, identity)
	if err != nil {
		t.Fatalf("GetClaims failed: %v", err)
	}
	if !ok {
		t.Fatal("expected hit after set")
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	if err := cache.InvalidateClaims(ctx, identity); err != nil {
		t.Fatalf("InvalidateClaims failed: %v", err)
	}
	if _, ok, _ := cache.GetClaims(ctx, identity); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestTokenLifecycle(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisClaimsCache(client)
	tokenID := "test-token-" + time.Now().Format("20060102150405.000")
	t.Cleanup(func() { cache.RevokeToken(ctx, tokenID) })

	if _, active, _ := cache.TokenIdentity(ctx, tokenID); active {
		t.Fatal("expected unknown token to be inactive")
	}

	if err := cache.PutToken(ctx, tokenID, "id-1", time.Minute); err != nil {
		t.Fatalf("PutToken failed: %v", err)
	}

	identity, active, err := cache.TokenIdentity(ctx, tokenID)
	if err != nil {
		t.Fatalf("TokenIdentity failed: %v", err)
	}
	if !active || identity != "id-1" {
		t.Errorf("expected active token for id-1, got active=%v identity=%s", active, identity)
	}

	if err := cache.RevokeToken(ctx, tokenID); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, active, _ := cache.TokenIdentity(ctx, tokenID); active {
		t.Error("expected revoked token to be inactive")
	}
}

func TestTokenExpiry(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisClaimsCache(client)
	tokenID := "test-expiry-" + time.Now().Format("20060102150405.000")

	if err := cache.PutToken(ctx, tokenID, "id-1", 100*time.Millisecond); err != nil {
		t.Fatalf("PutToken failed: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if _, active, _ := cache.TokenIdentity(ctx, tokenID); active {
		t.Error("expected expired token to be inactive")
	}
}
