package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryAdminCache(t *testing.T) {
	ctx := context.Background()

	t.Run("miss before set", func(t *testing.T) {
		c := NewMemoryAdminCache(time.Minute)
		_, found, err := c.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if found {
			t.Error("expected a miss")
		}
	})

	t.Run("set then get", func(t *testing.T) {
		c := NewMemoryAdminCache(time.Minute)
		if err := c.Set(ctx, "u1", true); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		isAdmin, found, _ := c.Get(ctx, "u1")
		if !found || !isAdmin {
			t.Errorf("expected cached admin flag, got found=%v isAdmin=%v", found, isAdmin)
		}

		_ = c.Set(ctx, "u2", false)
		isAdmin, found, _ = c.Get(ctx, "u2")
		if !found || isAdmin {
			t.Errorf("false flag must be cached as found, got found=%v isAdmin=%v", found, isAdmin)
		}
	})

	t.Run("entries expire", func(t *testing.T) {
		c := NewMemoryAdminCache(-time.Second) // already expired on insert
		_ = c.Set(ctx, "u1", true)
		_, found, _ := c.Get(ctx, "u1")
		if found {
			t.Error("expired entry must read as a miss")
		}
	})

	t.Run("invalidate removes the entry", func(t *testing.T) {
		c := NewMemoryAdminCache(time.Minute)
		_ = c.Set(ctx, "u1", true)
		if err := c.Invalidate(ctx, "u1"); err != nil {
			t.Fatalf("invalidate failed: %v", err)
		}
		_, found, _ := c.Get(ctx, "u1")
		if found {
			t.Error("invalidated entry must read as a miss")
		}
	})
}
