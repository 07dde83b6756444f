package jwtx

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultJWKSMaxAge     = time.Hour
	defaultMinRefreshWait = time.Minute
	maxJWKSBytes          = 1 << 20
)

// RemoteKeySet serves keys from a JWKS URL. Keys are cached for the
// response's Cache-Control max-age (an hour by default) and refetched on
// an unknown kid, at most once per MinRefreshWait.
type RemoteKeySet struct {
	URL    string
	Client *http.Client

	// MinRefreshWait bounds how often an unknown kid may trigger a fetch.
	MinRefreshWait time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time

	keys *KeySet

	mu          sync.Mutex
	expiresAt   time.Time
	lastFetched time.Time
}

// NewRemoteKeySet returns a key set backed by url.
func NewRemoteKeySet(url string, client *http.Client) *RemoteKeySet {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RemoteKeySet{
		URL:            url,
		Client:         client,
		MinRefreshWait: defaultMinRefreshWait,
		keys:           NewKeySet(),
	}
}

// Key implements KeyProvider.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stale := now.After(r.expiresAt)
	if !stale {
		if key, err := r.keys.Key(ctx, kid); err == nil {
			return key, nil
		}
	}

	// Unknown kid on a fresh set: the provider may have rotated, but do
	// not let a flood of bogus kids hammer the JWKS endpoint.
	if !stale && now.Sub(r.lastFetched) < r.MinRefreshWait {
		return nil, ErrUnknownKID
	}

	if err := r.refresh(ctx, now); err != nil {
		// Serve from the previous set while the endpoint is failing.
		if key, kerr := r.keys.Key(ctx, kid); kerr == nil {
			return key, nil
		}
		return nil, err
	}

	key, err := r.keys.Key(ctx, kid)
	if err != nil {
		return nil, ErrUnknownKID
	}
	return key, nil
}

func (r *RemoteKeySet) refresh(ctx context.Context, now time.Time) error {
	r.lastFetched = now

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("jwtx: build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("jwtx: fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jwtx: fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&jwks); err != nil {
		return fmt.Errorf("jwtx: decode jwks: %w", err)
	}
	if err := r.keys.ResetFromJWKS(jwks); err != nil {
		return err
	}

	r.expiresAt = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

func (r *RemoteKeySet) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// maxAge extracts max-age from a Cache-Control header.
func maxAge(cacheControl string) time.Duration {
	for directive := range strings.SplitSeq(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(value)
		if err != nil || secs <= 0 {
			break
		}
		return time.Duration(secs) * time.Second
	}
	return defaultJWKSMaxAge
}

var _ KeyProvider = (*RemoteKeySet)(nil)
var _ KeyProvider = (*KeySet)(nil)
