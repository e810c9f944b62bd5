package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestCacheSetGetDelete(t *testing.T) {
	c, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "published:a1", []byte("2026-01-01T00:00:00Z"), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, ok, err := c.Get(ctx, "published:a1")
	if err != nil || !ok {
		t.Fatalf("expected hit right after Set, ok=%v err=%v", ok, err)
	}
	if string(val) != "2026-01-01T00:00:00Z" {
		t.Errorf("unexpected value %q", val)
	}

	if err := c.Delete(ctx, "published:a1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "published:a1"); ok {
		t.Error("expected miss after Delete")
	}
}
