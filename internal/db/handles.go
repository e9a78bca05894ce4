package db

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/skairunner/lunabot/internal/errors"
)

// Handles caches one open Handle per tenant for the life of the process.
// Construction of an uncached key happens at most once even under
// concurrent first access.
type Handles struct {
	opts Options

	mu      sync.RWMutex
	handles map[Key]*Handle
	closed  bool
	group   singleflight.Group

	open func(ctx context.Context, key Key) (*Handle, error)
}

// NewHandles returns an empty cache that opens handles with opts.
func NewHandles(opts Options) *Handles {
	hs := &Handles{
		opts:    opts.withDefaults(),
		handles: make(map[Key]*Handle),
	}
	hs.open = func(ctx context.Context, key Key) (*Handle, error) {
		return Open(ctx, hs.opts, key)
	}
	return hs
}

// Get returns the cached handle for (kind, id), opening and migrating it on
// first use. Failed opens are not cached. Concurrent callers for the same
// uncached key share one open; a caller whose ctx ends stops waiting, but the
// open carries on for the others and is cached when it succeeds.
func (hs *Handles) Get(ctx context.Context, kind Kind, id int64) (*Handle, error) {
	key := Key{Kind: kind, ID: id}
	if h, ok, err := hs.lookup(key); ok || err != nil {
		return h, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	openCtx := context.WithoutCancel(ctx)
	ch := hs.group.DoChan(key.String(), func() (any, error) {
		// Another flight may have stored the handle after our first lookup.
		if h, ok, err := hs.lookup(key); ok || err != nil {
			return h, err
		}
		h, err := hs.open(openCtx, key)
		if err != nil {
			return nil, err
		}
		hs.mu.Lock()
		defer hs.mu.Unlock()
		if hs.closed {
			_ = h.Close()
			return nil, errClosed(key)
		}
		hs.handles[key] = h
		return h, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	}
}

func (hs *Handles) lookup(key Key) (*Handle, bool, error) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	if hs.closed {
		return nil, false, errClosed(key)
	}
	h, ok := hs.handles[key]
	return h, ok, nil
}

func errClosed(key Key) error {
	return apperrors.WithMetadata(apperrors.CodeStorageUnavailable, "handle cache is closed", key.metadata())
}

// Keys returns the keys of all open handles, sorted by kind then id.
func (hs *Handles) Keys() []Key {
	hs.mu.RLock()
	keys := make([]Key, 0, len(hs.handles))
	for k := range hs.handles {
		keys = append(keys, k)
	}
	hs.mu.RUnlock()
	slices.SortFunc(keys, func(a, b Key) int {
		if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return keys
}

// Close closes and forgets every cached handle. Later calls to Get fail, and
// an open still in flight closes its handle instead of caching it.
func (hs *Handles) Close() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.closed = true
	var errs []error
	for k, h := range hs.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", k, err))
		}
		delete(hs.handles, k)
	}
	return errors.Join(errs...)
}
