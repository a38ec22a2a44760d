package resolver

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Loader resolves External references by uuid. Load returns a
// handle-shaped future immediately — the shared cache slot for id — and
// is responsible for populating it, synchronously or on a background
// goroutine, exactly once per id.
type Loader interface {
	Load(id uuid.UUID) *AssetResult
}

// AssetResult is the shared, reference-counted-by-sharing slot holding
// either a loaded Value or the error its load failed with. Every
// consumer resolving the same uuid within a Loader's cache observes the
// same AssetResult and therefore the same outcome.
type AssetResult struct {
	once  sync.Once
	ready chan struct{}
	value Value
	err   error
}

// NewAssetResult constructs an empty slot. Loader implementations call
// this for each new uuid and fulfill it exactly once.
func NewAssetResult() *AssetResult {
	return &AssetResult{ready: make(chan struct{})}
}

// Fulfill completes the slot with v or err. Only the first call has any
// effect; later calls are no-ops, matching the single-writer contract.
func (r *AssetResult) Fulfill(v Value, err error) {
	r.once.Do(func() {
		r.value = v
		r.err = err
		close(r.ready)
	})
}

// Wait blocks until the slot is fulfilled or ctx is done. It does not
// stop whatever goroutine is populating the slot — only the wait itself
// is abandoned.
func (r *AssetResult) Wait(ctx context.Context) (Value, error) {
	select {
	case <-r.ready:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Value returns the slot's outcome without blocking. Callers must only
// use this once they know the slot is fulfilled (Decode guarantees this
// for every External node it hands to Build).
func (r *AssetResult) Value() (Value, error) {
	<-r.ready
	return r.value, r.err
}

// CachingLoader is a reference Loader: it memoizes one AssetResult per
// uuid and populates each on its own goroutine via fetch, independent of
// any caller's context, so a canceled Decode never aborts an in-flight
// fetch — only abandons waiting on it.
type CachingLoader struct {
	mu      sync.Mutex
	results map[uuid.UUID]*AssetResult
	fetch   func(id uuid.UUID) (Value, error)
}

// NewCachingLoader constructs a CachingLoader that resolves misses via fetch.
func NewCachingLoader(fetch func(uuid.UUID) (Value, error)) *CachingLoader {
	return &CachingLoader{
		results: make(map[uuid.UUID]*AssetResult),
		fetch:   fetch,
	}
}

func (l *CachingLoader) Load(id uuid.UUID) *AssetResult {
	l.mu.Lock()
	if existing, ok := l.results[id]; ok {
		l.mu.Unlock()
		return existing
	}

	result := NewAssetResult()
	l.results[id] = result
	l.mu.Unlock()

	go func() {
		v, err := l.fetch(id)
		result.Fulfill(v, err)
	}()

	return result
}
