package authn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ryanvade/infra-demo-lnl/jwks"
	"go.uber.org/zap"
)

// Authenticator turns a bearer token into verified claims.
type Authenticator interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// KeySetFetcher retrieves a key set. *jwks.Client implements it.
type KeySetFetcher interface {
	Fetch(ctx context.Context, uri string) (*jwks.JWKS, error)
}

// Config holds configuration for JWKSAuthenticator
type Config struct {
	// Endpoint is the full JWKS URL of the authority.
	Endpoint string

	// CacheTTL bounds the age of the cached key set. Zero fetches the key
	// set on every verification.
	CacheTTL time.Duration

	// MinRefreshInterval limits refreshes forced by an unknown kid.
	MinRefreshInterval time.Duration

	// FetchTimeout bounds a single key set retrieval.
	FetchTimeout time.Duration
}

// KeySetStatus describes the cached key set.
type KeySetStatus struct {
	Keys      int       `json:"keys"`
	FetchedAt time.Time `json:"fetched_at"`
}

type keySetSnapshot struct {
	set       *jwks.JWKS
	fetchedAt time.Time
}

// refresh is a key set retrieval shared by every caller that needs one
// while it is in flight. The fetch is cancelled once no caller waits on it.
type refresh struct {
	done    chan struct{}
	cancel  context.CancelFunc
	waiters int
	snap    *keySetSnapshot
	err     error
}

// JWKSAuthenticator verifies tokens against a cached copy of the
// authority's key set. Safe for concurrent use.
type JWKSAuthenticator struct {
	fetcher  KeySetFetcher
	verifier *Verifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time

	snapshot atomic.Pointer[keySetSnapshot]

	mu       sync.Mutex
	inflight *refresh
}

// NewJWKSAuthenticator creates a new authenticator
func NewJWKSAuthenticator(fetcher KeySetFetcher, verifier *Verifier, config Config, logger *zap.Logger) *JWKSAuthenticator {
	if config.FetchTimeout == 0 {
		config.FetchTimeout = 5 * time.Second
	}
	return &JWKSAuthenticator{
		fetcher:  fetcher,
		verifier: verifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Seed installs set as the current key set, typically one fetched at startup.
func (a *JWKSAuthenticator) Seed(set *jwks.JWKS) {
	a.snapshot.Store(&keySetSnapshot{set: set, fetchedAt: a.now()})
}

// Status reports the cached key set. ok is false until a key set is held.
func (a *JWKSAuthenticator) Status() (status KeySetStatus, ok bool) {
	snap := a.snapshot.Load()
	if snap == nil {
		return KeySetStatus{}, false
	}
	return KeySetStatus{Keys: len(snap.set.Keys), FetchedAt: snap.fetchedAt}, true
}

// Verify validates token and returns its claims. Cancelling ctx abandons
// any key set retrieval the call is waiting on.
func (a *JWKSAuthenticator) Verify(ctx context.Context, token string) (*Claims, error) {
	snap, fresh, err := a.current(ctx)
	if err != nil {
		return nil, err
	}

	key, err := jwks.SelectKey(token, snap.set)
	if err != nil && !errors.Is(err, jwks.ErrMalformedHeader) && !fresh && a.canForceRefresh(snap) {
		a.logger.Info("unknown signing key, refreshing key set")
		// A failed refresh leaves the key unknown in the set we hold.
		if refreshed, refreshErr := a.refresh(ctx); refreshErr != nil {
			a.logger.Warn("forced key set refresh failed", zap.Error(refreshErr))
		} else {
			key, err = jwks.SelectKey(token, refreshed.set)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownSigningKey, err)
	}

	return a.verifier.Verify(token, key)
}

// current returns a key set no older than the cache TTL. fresh reports
// whether it was retrieved by this call.
func (a *JWKSAuthenticator) current(ctx context.Context) (*keySetSnapshot, bool, error) {
	snap := a.snapshot.Load()
	if snap != nil && a.config.CacheTTL > 0 && a.now().Sub(snap.fetchedAt) < a.config.CacheTTL {
		return snap, false, nil
	}

	next, err := a.refresh(ctx)
	if err != nil {
		if snap != nil && a.config.CacheTTL > 0 && ctx.Err() == nil {
			a.logger.Warn("key set refresh failed, serving stale key set",
				zap.Time("fetched_at", snap.fetchedAt),
				zap.Error(err))
			return snap, false, nil
		}
		return nil, false, err
	}
	return next, true, nil
}

func (a *JWKSAuthenticator) canForceRefresh(snap *keySetSnapshot) bool {
	return a.now().Sub(snap.fetchedAt) >= a.config.MinRefreshInterval
}

// refresh joins the in-flight retrieval or starts one.
func (a *JWKSAuthenticator) refresh(ctx context.Context) (*keySetSnapshot, error) {
	a.mu.Lock()
	r := a.inflight
	if r == nil {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.config.FetchTimeout)
		r = &refresh{done: make(chan struct{}), cancel: cancel}
		a.inflight = r
		go a.run(fetchCtx, r)
	}
	r.waiters++
	a.mu.Unlock()

	select {
	case <-r.done:
		a.release(r)
		return r.snap, r.err
	case <-ctx.Done():
		a.release(r)
		return nil, fmt.Errorf("%w: %w", ErrAuthorityUnavailable, ctx.Err())
	}
}

func (a *JWKSAuthenticator) run(ctx context.Context, r *refresh) {
	defer r.cancel()

	set, err := a.fetcher.Fetch(ctx, a.config.Endpoint)
	if err != nil {
		r.err = fmt.Errorf("%w: %w", ErrAuthorityUnavailable, err)
		a.logger.Error("key set retrieval failed",
			zap.String("endpoint", a.config.Endpoint),
			zap.Error(err))
	} else {
		r.snap = &keySetSnapshot{set: set, fetchedAt: a.now()}
		a.snapshot.Store(r.snap)
	}

	a.mu.Lock()
	if a.inflight == r {
		a.inflight = nil
	}
	a.mu.Unlock()
	close(r.done)
}

// release drops a waiter. The last waiter to leave cancels the fetch and
// detaches it so the next caller starts a new one.
func (a *JWKSAuthenticator) release(r *refresh) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r.waiters--
	if r.waiters > 0 {
		return
	}
	r.cancel()
	if a.inflight == r {
		a.inflight = nil
	}
}
