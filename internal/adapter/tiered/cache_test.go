package tiered_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/answerdesk/internal/adapter/tiered"
)

// memCache is a simple in-memory cache for testing.
type memCache struct {
	data map[string][]byte
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func TestTieredGet(t *testing.T) {
	tests := []struct {
		name       string
		l1, l2     map[string]string
		l2Err      error
		wantFound  bool
		wantVal    string
		wantFilled bool // L1 backfilled
	}{
		{name: "l1 hit", l1: map[string]string{"published:a": "t1"}, wantFound: true, wantVal: "t1"},
		{name: "l2 hit backfills", l2: map[string]string{"published:a": "t2"}, wantFound: true, wantVal: "t2", wantFilled: true},
		{name: "miss"},
		{name: "l2 down is a miss", l2Err: errors.New("nats: timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := newMemCache(), newMemCache()
			for k, v := range tt.l1 {
				l1.data[k] = []byte(v)
			}
			for k, v := range tt.l2 {
				l2.data[k] = []byte(v)
			}
			l2.err = tt.l2Err
			c := tiered.New(l1, l2, 5*time.Minute)

			val, found, err := c.Get(context.Background(), "published:a")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found != tt.wantFound || string(val) != tt.wantVal {
				t.Fatalf("got (%q, %v), want (%q, %v)", val, found, tt.wantVal, tt.wantFound)
			}
			if _, filled := l1.data["published:a"]; tt.wantFilled && !filled {
				t.Fatal("expected L1 backfill")
			}
		})
	}
}

func TestTieredSetAndDeleteBoth(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "published:b", []byte("x"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["published:b"]; !ok {
		t.Fatal("expected key in L1")
	}
	if _, ok := l2.data["published:b"]; !ok {
		t.Fatal("expected key in L2")
	}

	if err := c.Delete(ctx, "published:b"); err != nil {
		t.Fatal(err)
	}
	if len(l1.data)+len(l2.data) != 0 {
		t.Fatal("expected key deleted from both levels")
	}
}

func TestTieredSetL2FailureKeepsL1(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l2.err = errors.New("nats: no responders")
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected L2 error to be reported")
	}
	if _, ok := l1.data["k"]; !ok {
		t.Fatal("expected L1 write to stand")
	}
}

func TestTieredWithoutL2(t *testing.T) {
	l1 := newMemCache()
	c := tiered.New(l1, nil, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "k"); !found {
		t.Fatal("expected hit")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := c.Get(ctx, "k"); found {
		t.Fatal("expected miss after delete")
	}
}

func TestTieredDeleteReachesL1WhenL2Fails(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l1.data["published:c"] = []byte("x")
	l2.err = errors.New("nats: connection closed")
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Delete(context.Background(), "published:c"); err == nil {
		t.Fatal("expected L2 error to be reported")
	}
	if _, ok := l1.data["published:c"]; ok {
		t.Fatal("expected key removed from L1")
	}
}

func TestTieredL1ErrorIsReturned(t *testing.T) {
	l1, l2 := newMemCache(), newMemCache()
	l1.err = errors.New("l1 broken")
	l2.data["k"] = []byte("v")
	c := tiered.New(l1, l2, time.Minute)

	if _, _, err := c.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected L1 error")
	}
}
