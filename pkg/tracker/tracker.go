// Package tracker implements the framework-agnostic half of the
// transaction tracker: two sets of "store/file_id" paths, one drained on
// commit and one drained on rollback, kept consistent as Attachment Field
// values are assigned and deleted within a unit of work. An ORM-specific
// adapter (see pkg/tracker/gormtracker) is responsible for calling Swap/
// Delete at the right points in its own lifecycle and invoking
// AfterCommit/AfterRollback at transaction boundaries.
package tracker

import (
	"context"
	"sync"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/attachment"
	"github.com/depotgo/depot/pkg/driver"
)

// Resolver looks a store up by name, exactly as implemented by
// *registry.Registry. Declared locally so this package doesn't depend on
// pkg/registry, keeping the tracker usable against any store lookup.
type Resolver interface {
	Get(name string) (driver.FileStorage, error)
}

// Tracker holds the pending-delete bookkeeping for one unit of work. It is
// not safe to share across concurrent transactions; callers create one per
// transaction (or per request) and discard it once both drains have run.
type Tracker struct {
	mu                     sync.Mutex
	pendingDeletes         map[string]struct{}
	pendingRollbackDeletes map[string]struct{}
	resolver               Resolver
}

// New creates an empty Tracker resolving stores through resolver.
func New(resolver Resolver) *Tracker {
	return &Tracker{
		pendingDeletes:         make(map[string]struct{}),
		pendingRollbackDeletes: make(map[string]struct{}),
		resolver:               resolver,
	}
}

// Add records that, should this unit of work be rolled back, af's files
// should be deleted (they were never visible to a committed state), and
// undoes any pending commit-time delete already queued for those same
// paths (an add for a path cancels a delete of that same path, matching
// the source's difference_update-then-update ordering).
func (t *Tracker) Add(af *attachment.AttachedFile) {
	if af == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, path := range af.Files {
		delete(t.pendingDeletes, path)
		t.pendingRollbackDeletes[path] = struct{}{}
	}
}

// Delete records that af's files should be deleted on commit, and cancels
// any pending rollback-time delete already queued for those same paths.
func (t *Tracker) Delete(af *attachment.AttachedFile) {
	if af == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, path := range af.Files {
		delete(t.pendingRollbackDeletes, path)
		t.pendingDeletes[path] = struct{}{}
	}
}

// Swap is the hook an Attachment Field calls on assignment: the row's
// previous value is scheduled for deletion if the unit of work commits,
// and the newly assigned value is scheduled for deletion if it rolls back.
func (t *Tracker) Swap(old, new *attachment.AttachedFile) {
	t.Delete(old)
	t.Add(new)
}

// Clear discards all pending deletes without running them. Used when a
// unit of work is abandoned in a way that notifies neither commit nor
// rollback (e.g. a session reset) — matching the source's documented
// limitation that such files become unreachable leaks.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingDeletes = make(map[string]struct{})
	t.pendingRollbackDeletes = make(map[string]struct{})
}

// AfterCommit drains pending_deletes, issuing a delete against the
// resolved store for each path. Every path is attempted even if earlier
// ones fail; failures are logged and returned, never panicked on, since
// delete is idempotent and a partial drain is always safe to retry or
// ignore.
func (t *Tracker) AfterCommit(ctx context.Context) []error {
	t.mu.Lock()
	paths := drain(t.pendingDeletes)
	t.pendingDeletes = make(map[string]struct{})
	t.mu.Unlock()
	return t.drainPaths(ctx, paths)
}

// AfterRollback drains pending_rollback_deletes the same way AfterCommit
// drains pending_deletes.
func (t *Tracker) AfterRollback(ctx context.Context) []error {
	t.mu.Lock()
	paths := drain(t.pendingRollbackDeletes)
	t.pendingRollbackDeletes = make(map[string]struct{})
	t.mu.Unlock()
	return t.drainPaths(ctx, paths)
}

// PendingDeletes and PendingRollbackDeletes expose a snapshot of the
// queued paths, mainly for tests and operator inspection.
func (t *Tracker) PendingDeletes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return drain(t.pendingDeletes)
}

func (t *Tracker) PendingRollbackDeletes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return drain(t.pendingRollbackDeletes)
}

func drain(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for path := range set {
		out = append(out, path)
	}
	return out
}

func (t *Tracker) drainPaths(ctx context.Context, paths []string) []error {
	var errs []error
	for _, path := range paths {
		storeName, fileID, ok := splitPath(path)
		if !ok {
			logger.WarnCtx(ctx, "tracker: malformed pending path, skipping", logger.Key(path))
			continue
		}

		store, err := t.resolver.Get(storeName)
		if err != nil {
			logger.ErrorCtx(ctx, "tracker: store not found for pending delete", logger.StoreName(storeName), logger.Err(err))
			errs = append(errs, err)
			continue
		}

		if err := store.Delete(ctx, fileID); err != nil {
			logger.ErrorCtx(ctx, "tracker: delete failed", logger.StoreName(storeName), logger.FileID(fileID), logger.Err(err))
			errs = append(errs, err)
		}
	}
	return errs
}

func splitPath(path string) (storeName, fileID string, ok bool) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			return path[:i], path[i+1:], true
		}
	}
	return "", "", false
}
