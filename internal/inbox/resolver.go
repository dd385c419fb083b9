package inbox

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/directory"
	"github.com/fathima-sithara/inbox-service/internal/metrics"
	"github.com/fathima-sithara/inbox-service/internal/models"
)

// resolveEntry is one key's lifecycle: Pending (done open) then either
// Resolved (meta set) or NotFound (notFound set). Transient lookup
// failures remove the entry so a later reference retries.
type resolveEntry struct {
	done     chan struct{}
	meta     *models.PartnerMetadata
	notFound bool
	err      error
}

// Resolver memoizes partner-metadata lookups for the lifetime of one
// subscription. Concurrent callers for the same unresolved id share a
// single directory call.
type Resolver struct {
	mu      sync.Mutex
	dir     directory.Directory
	log     *zap.SugaredLogger
	entries map[string]*resolveEntry

	// onResolved, when set, fires after a lookup lands (including
	// not-found) so the subscriber can republish with real metadata.
	onResolved func(partnerID string)
}

func NewResolver(dir directory.Directory, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		dir:     dir,
		log:     log,
		entries: make(map[string]*resolveEntry),
	}
}

// Resolve returns the partner's metadata, performing at most one
// directory lookup per id no matter how many callers race. A nil
// result with nil error means the partner record does not exist;
// callers fall back to placeholder display for it.
func (r *Resolver) Resolve(ctx context.Context, partnerID string) (*models.PartnerMetadata, error) {
	r.mu.Lock()
	if e, ok := r.entries[partnerID]; ok {
		r.mu.Unlock()
		select {
		case <-e.done:
			return e.meta, e.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e := &resolveEntry{done: make(chan struct{})}
	r.entries[partnerID] = e
	r.mu.Unlock()

	meta, err := r.dir.Lookup(ctx, partnerID)
	switch {
	case err == nil:
		e.meta = meta
		metrics.DirectoryLookups.WithLabelValues("hit").Inc()
	case errors.Is(err, directory.ErrNotFound):
		// terminal sentinel, never retried this session
		e.notFound = true
		metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
	default:
		e.err = err
		metrics.DirectoryLookups.WithLabelValues("error").Inc()
		r.log.Warnw("partner lookup failed", "partner_id", partnerID, "err", err)
		r.mu.Lock()
		delete(r.entries, partnerID) // transient: next reference retries
		r.mu.Unlock()
	}
	close(e.done)

	if e.err == nil && r.onResolved != nil {
		r.onResolved(partnerID)
	}
	return e.meta, e.err
}

// Ensure kicks off a resolution for partnerID if none is cached or in
// flight. Fire and forget; failures are logged inside Resolve.
func (r *Resolver) Ensure(ctx context.Context, partnerID string) {
	r.mu.Lock()
	_, ok := r.entries[partnerID]
	r.mu.Unlock()
	if ok {
		return
	}
	go func() { _, _ = r.Resolve(ctx, partnerID) }()
}

// Cached returns the resolved metadata for partnerID without
// blocking, or nil when the id is unresolved, pending, or not found.
func (r *Resolver) Cached(partnerID string) *models.PartnerMetadata {
	r.mu.Lock()
	e, ok := r.entries[partnerID]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return e.meta
	default:
		return nil
	}
}

// Reset discards every cached and in-flight entry. In-flight lookups
// complete into the discarded map without effect.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*resolveEntry)
}
