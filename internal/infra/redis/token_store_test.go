package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTokenStoreMarkAliveRevoke(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewTokenStore(client)

	if err := store.Mark(ctx, "t1", time.Minute); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if !mr.Exists("session:token:t1") {
		t.Fatalf("expected redis key to be set")
	}

	alive, err := store.Alive(ctx, "t1")
	if err != nil || !alive {
		t.Fatalf("expected token alive, got %v (%v)", alive, err)
	}

	if err := store.Revoke(ctx, "t1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	alive, err = store.Alive(ctx, "t1")
	if err != nil || alive {
		t.Fatalf("expected token revoked, got %v (%v)", alive, err)
	}
}

func TestTokenStoreExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewTokenStore(client)

	if err := store.Mark(ctx, "t1", time.Second); err != nil {
		t.Fatalf("mark: %v", err)
	}
	mr.FastForward(2 * time.Second)

	alive, err := store.Alive(ctx, "t1")
	if err != nil || alive {
		t.Fatalf("expected token expired, got %v (%v)", alive, err)
	}
}
