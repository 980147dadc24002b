package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
)

type fakeFetcher struct {
	mu      sync.Mutex
	fetches int32
	keys    map[string]*rsa.PublicKey
	err     error
	delay   time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	atomic.AddInt32(&f.fetches, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]*rsa.PublicKey, len(f.keys))
	for kid, key := range f.keys {
		out[kid] = key
	}
	return out, nil
}

func (f *fakeFetcher) setKeys(keys map[string]*rsa.PublicKey) {
	f.mu.Lock()
	f.keys = keys
	f.mu.Unlock()
}

func testRSAKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	return &priv.PublicKey
}

func TestResolveCachesWithinTTL(t *testing.T) {
	key := testRSAKey(t)
	fetcher := &fakeFetcher{keys: map[string]*rsa.PublicKey{"kid-1": key}}
	clk := &clock.Fixed{Current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewJWKSCache(fetcher, clk, 15*time.Minute, nil)

	for i := 0; i < 5; i++ {
		got, err := cache.Resolve(context.Background(), "kid-1")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if got != key {
			t.Fatal("resolved wrong key")
		}
	}
	if n := atomic.LoadInt32(&fetcher.fetches); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}
}

func TestResolveUnknownKidAfterRefresh(t *testing.T) {
	fetcher := &fakeFetcher{keys: map[string]*rsa.PublicKey{"kid-1": testRSAKey(t)}}
	cache := NewJWKSCache(fetcher, nil, 15*time.Minute, nil)

	if _, err := cache.Resolve(context.Background(), "missing"); !errors.Is(err, ErrUnknownKeyID) {
		t.Fatalf("expected ErrUnknownKeyID, got %v", err)
	}
	if n := atomic.LoadInt32(&fetcher.fetches); n != 1 {
		t.Fatalf("expected refresh attempt, got %d fetches", n)
	}
}

func TestResolveCoalescesConcurrentMisses(t *testing.T) {
	key := testRSAKey(t)
	fetcher := &fakeFetcher{
		keys:  map[string]*rsa.PublicKey{"kid-1": key},
		delay: 50 * time.Millisecond,
	}
	cache := NewJWKSCache(fetcher, nil, 15*time.Minute, nil)

	const callers = 32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Resolve(context.Background(), "kid-1"); err != nil {
				t.Errorf("resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&fetcher.fetches); n != 1 {
		t.Fatalf("expected exactly 1 coalesced fetch, got %d", n)
	}
}

func TestResolveServesStaleOnFetchFailure(t *testing.T) {
	key := testRSAKey(t)
	fetcher := &fakeFetcher{keys: map[string]*rsa.PublicKey{"kid-1": key}}
	clk := &clock.Fixed{Current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewJWKSCache(fetcher, clk, 15*time.Minute, nil)

	if _, err := cache.Resolve(context.Background(), "kid-1"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	fetcher.mu.Lock()
	fetcher.err = errors.New("idp down")
	fetcher.mu.Unlock()
	clk.Advance(time.Hour)

	got, err := cache.Resolve(context.Background(), "kid-1")
	if err != nil {
		t.Fatalf("expected stale key to be served, got %v", err)
	}
	if got != key {
		t.Fatal("served wrong stale key")
	}

	// An unknown kid still fails while the provider is down.
	if _, err := cache.Resolve(context.Background(), "kid-2"); !errors.Is(err, ErrUnknownKeyID) {
		t.Fatalf("expected ErrUnknownKeyID, got %v", err)
	}
}

func TestRefreshReplacesSetAtomically(t *testing.T) {
	keyA := testRSAKey(t)
	keyB := testRSAKey(t)
	fetcher := &fakeFetcher{keys: map[string]*rsa.PublicKey{"kid-a": keyA}}
	clk := &clock.Fixed{Current: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewJWKSCache(fetcher, clk, 15*time.Minute, nil)

	if _, err := cache.Resolve(context.Background(), "kid-a"); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// Rotation: kid-a retired, kid-b published.
	fetcher.setKeys(map[string]*rsa.PublicKey{"kid-b": keyB})
	clk.Advance(time.Hour)

	got, err := cache.Resolve(context.Background(), "kid-b")
	if err != nil {
		t.Fatalf("resolve rotated key: %v", err)
	}
	if got != keyB {
		t.Fatal("resolved wrong rotated key")
	}
}
