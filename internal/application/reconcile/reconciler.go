// Package reconcile keeps a device's local copy of each record family in step
// with the authority.
//
// Reads are always served from local state. Pulls merge authority data over
// local data; pushes apply locally first and are forwarded in the background.
// A pull never overwrites state that a push changed after the pull started.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-bank-sync/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultForwardTimeout = 5 * time.Second
	DefaultInterval       = 10 * time.Second
)

// LocalCache is the device's durable store. Get reports false when nothing is stored.
type LocalCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Family describes one record family: how to reach the authority for it and
// how local and remote copies combine. T is the record, P a mutation of it.
//
// Merge and Apply must return fresh values and never mutate their inputs;
// Current hands the stored value out without copying.
type Family[T any, P any] struct {
	Name     string
	CacheKey string
	Interval time.Duration

	Default func() T
	// Empty reports whether a local value holds nothing worth seeding the authority with.
	Empty func(T) bool

	// Fetch returns present=false when the authority holds nothing for this family.
	Fetch   func(ctx context.Context) (T, bool, error)
	Upload  func(ctx context.Context, local T) error
	Forward func(ctx context.Context, p P) error

	Merge func(local, remote T) T
	Apply func(current T, p P) T
}

type Reconciler[T any, P any] struct {
	fam            Family[T, P]
	cache          LocalCache
	forwardTimeout time.Duration

	mu       sync.RWMutex
	current  T
	version  uint64 // bumped by every applied push
	inflight int    // pushes whose forward has not returned
	// lastForward closes when the most recently queued forward returns.
	// Each forward waits on its predecessor so the authority sees pushes in
	// the order they were applied.
	lastForward chan struct{}

	pulls    singleflight.Group
	forwards sync.WaitGroup
}

func New[T any, P any](fam Family[T, P], cache LocalCache, forwardTimeout time.Duration) *Reconciler[T, P] {
	if forwardTimeout <= 0 {
		forwardTimeout = DefaultForwardTimeout
	}
	return &Reconciler[T, P]{
		fam:            fam,
		cache:          cache,
		forwardTimeout: forwardTimeout,
		current:        fam.Default(),
	}
}

func (r *Reconciler[T, P]) Name() string { return r.fam.Name }

// Current returns the local value. Callers must not mutate it.
func (r *Reconciler[T, P]) Current() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Load seeds local state from the cache, or from the family default when the
// cache is empty or unreadable.
func (r *Reconciler[T, P]) Load(ctx context.Context) error {
	var cached T
	ok, err := r.cache.Get(ctx, r.fam.CacheKey, &cached)
	if err != nil {
		slog.Warn("local cache unreadable, starting from defaults", "family", r.fam.Name, "err", err)
		return err
	}
	if !ok {
		return nil
	}
	r.mu.Lock()
	r.current = cached
	r.mu.Unlock()
	return nil
}

// SyncPull fetches the authority's copy and merges it over local state.
// Concurrent calls share one fetch. On failure local state is returned unchanged
// alongside an error wrapping domain.ErrSyncUnavailable.
func (r *Reconciler[T, P]) SyncPull(ctx context.Context) (T, error) {
	v, err, _ := r.pulls.Do(r.fam.Name, func() (any, error) {
		return r.pull(ctx)
	})
	if v == nil {
		return r.Current(), err
	}
	return v.(T), err
}

func (r *Reconciler[T, P]) pull(ctx context.Context) (T, error) {
	r.mu.RLock()
	startVersion := r.version
	r.mu.RUnlock()

	remote, present, err := r.fam.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrSyncUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrSyncUnavailable, err)
		}
		slog.Warn("sync pull failed, keeping local state", "family", r.fam.Name, "err", err)
		return r.Current(), fmt.Errorf("pull %s: %w", r.fam.Name, err)
	}

	if !present {
		local := r.Current()
		if r.fam.Empty(local) {
			return local, nil
		}
		if err := r.fam.Upload(ctx, local); err != nil {
			slog.Warn("seeding authority from local cache failed", "family", r.fam.Name, "err", err)
			return local, fmt.Errorf("seed %s: %w", r.fam.Name, err)
		}
		slog.Info("authority was empty, seeded from local cache", "family", r.fam.Name)
		return local, nil
	}

	r.mu.Lock()
	if r.version != startVersion || r.inflight > 0 {
		cur := r.current
		r.mu.Unlock()
		slog.Debug("discarding pull that raced a push", "family", r.fam.Name)
		return cur, nil
	}
	merged := r.fam.Merge(r.current, remote)
	r.current = merged
	r.mu.Unlock()

	r.persist(ctx, merged)
	return merged, nil
}

// SyncPush applies p locally, persists the result and forwards p to the
// authority in the background. Forwards for a family are sent one at a time in
// apply order. A failed forward is logged and not retried.
func (r *Reconciler[T, P]) SyncPush(ctx context.Context, p P) T {
	done := make(chan struct{})
	r.mu.Lock()
	next := r.fam.Apply(r.current, p)
	r.current = next
	r.version++
	r.inflight++
	prev := r.lastForward
	r.lastForward = done
	r.mu.Unlock()

	r.persist(ctx, next)

	base := context.WithoutCancel(ctx)
	r.forwards.Add(1)
	go func() {
		defer r.forwards.Done()
		defer close(done)
		defer func() {
			r.mu.Lock()
			r.inflight--
			r.mu.Unlock()
		}()
		if prev != nil {
			<-prev
		}
		fctx, cancel := context.WithTimeout(base, r.forwardTimeout)
		defer cancel()
		if err := r.fam.Forward(fctx, p); err != nil {
			slog.Warn("sync push not forwarded, authority is behind this device",
				"family", r.fam.Name, "err", err)
		}
	}()
	return next
}

// WaitForwards blocks until every background forward has returned.
func (r *Reconciler[T, P]) WaitForwards() {
	r.forwards.Wait()
}

func (r *Reconciler[T, P]) persist(ctx context.Context, v T) {
	if err := r.cache.Set(ctx, r.fam.CacheKey, v); err != nil {
		slog.Warn("local cache write failed", "family", r.fam.Name, "err", err)
	}
}

// Run pulls once immediately and then on every tick until ctx is done.
// Pull failures are logged by SyncPull; Run itself only stops on cancellation.
func (r *Reconciler[T, P]) Run(ctx context.Context) error {
	_, _ = r.SyncPull(ctx)
	interval := r.fam.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.WaitForwards()
			return nil
		case <-ticker.C:
			_, _ = r.SyncPull(ctx)
		}
	}
}
