package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/autogenlabs-dev/tokengate/internal/clock"
)

// JWKSFetcher retrieves the identity provider's published key set.
type JWKSFetcher interface {
	Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// HTTPJWKSFetcher fetches and parses a JWKS document over HTTP.
type HTTPJWKSFetcher struct {
	URL    string
	Client *http.Client
}

type jwksDocument struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (f *HTTPJWKSFetcher) Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc jwksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parse jwks document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, entry := range doc.Keys {
		if entry.Kty != "RSA" || entry.Kid == "" {
			continue
		}
		if entry.Use != "" && entry.Use != "sig" {
			continue
		}
		key, err := parseRSAKey(entry.N, entry.E)
		if err != nil {
			continue
		}
		keys[entry.Kid] = key
	}
	return keys, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

// JWKSCache caches the identity provider's signing keys, refreshing on
// TTL expiry and on a miss for a never-before-seen key id. Concurrent
// misses for the same unknown kid coalesce into one upstream fetch.
type JWKSCache struct {
	fetcher JWKSFetcher
	clock   clock.Clock
	ttl     time.Duration
	log     *zap.Logger

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKSCache(fetcher JWKSFetcher, clk clock.Clock, ttl time.Duration, log *zap.Logger) *JWKSCache {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &JWKSCache{
		fetcher: fetcher,
		clock:   clk,
		ttl:     ttl,
		log:     log.Named("auth.jwks"),
	}
}

// Resolve returns the public key for kid, refreshing the set when the
// kid is unknown or the cached set is stale. A fetch failure only
// affects keys that were not already cached.
func (c *JWKSCache) Resolve(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if kid == "" {
		return nil, ErrUnknownKeyID
	}

	if key, ok := c.lookup(kid, true); ok {
		return key, nil
	}

	// One refresh per kid at a time; concurrent callers share the
	// result instead of stampeding the provider.
	_, err, _ := c.group.Do(kid, func() (any, error) {
		if _, ok := c.lookup(kid, true); ok {
			return nil, nil
		}
		return nil, c.refresh(ctx)
	})
	if err != nil {
		// A stale cached key is still better than rejecting a token
		// signed with a key we have seen before.
		if key, ok := c.lookup(kid, false); ok {
			return key, nil
		}
		c.log.Warn("jwks refresh failed", zap.Error(err))
		return nil, ErrUnknownKeyID
	}

	if key, ok := c.lookup(kid, false); ok {
		return key, nil
	}
	return nil, ErrUnknownKeyID
}

func (c *JWKSCache) lookup(kid string, requireFresh bool) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil {
		return nil, false
	}
	if requireFresh && c.clock.Now().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	key, ok := c.keys[kid]
	return key, ok
}

// refresh replaces the whole key set atomically; readers never see a
// partially updated set.
func (c *JWKSCache) refresh(ctx context.Context) error {
	keys, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.clock.Now()
	c.mu.Unlock()
	c.log.Debug("jwks refreshed", zap.Int("keys", len(keys)))
	return nil
}
