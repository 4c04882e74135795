package gormtracker

import (
	"context"

	"gorm.io/gorm"

	"github.com/depotgo/depot/pkg/attachment"
	"github.com/depotgo/depot/pkg/tracker"
)

// Session is the GORM-facing half of the Attachment Field contract: it
// turns field assignment and row deletion into tracker.Swap/Delete calls,
// then drains the tracker's two queues when the surrounding transaction
// finishes, the same way the source's DepotExtension.before_flush and
// after_flush do for Ming's unit of work.
type Session struct {
	tracker  *tracker.Tracker
	registry tracker.Resolver
}

// NewSession creates a Session backed by resolver (typically a
// *registry.Registry) for a single transaction or request.
func NewSession(resolver tracker.Resolver) *Session {
	return &Session{
		tracker:  tracker.New(resolver),
		registry: resolver,
	}
}

// Set creates a new blob in storeName and assigns it to field, scheduling
// the field's previous value (if any) for deletion on commit and the new
// value for deletion on rollback. filters run against the new content
// before it is frozen into field.
func (s *Session) Set(ctx context.Context, field *Column, storeName string, content any, filename, contentType string, filters ...attachment.Filter) error {
	store, err := s.registry.Get(storeName)
	if err != nil {
		return err
	}

	newAf, err := attachment.New(ctx, store, storeName, content, filename, contentType)
	if err != nil {
		return err
	}
	if err := newAf.ApplyFilters(filters...); err != nil {
		return err
	}

	var oldAf *attachment.AttachedFile
	if field.set {
		old := field.AttachedFile
		oldAf = &old
	}

	s.tracker.Swap(oldAf, newAf)
	*field = Column{AttachedFile: *newAf, set: true}
	return nil
}

// MarkDeleted schedules field's current value for deletion on commit, as
// happens when the row owning it is deleted. A no-op if field is unset.
func (s *Session) MarkDeleted(field *Column) {
	if !field.set {
		return
	}
	af := field.AttachedFile
	s.tracker.Delete(&af)
}

// Tracker exposes the underlying tracker for direct use (tests, manual
// AfterCommit/AfterRollback calls).
func (s *Session) Tracker() *tracker.Tracker { return s.tracker }

// Commit runs fn inside a GORM transaction, then drains the tracker's
// commit-time or rollback-time queue depending on whether fn (and the
// transaction) succeeded. Delete failures during the drain are logged by
// the tracker and returned for visibility but never override a
// transaction that already committed successfully: the row-level write
// already happened, and delete is safe to retry later.
func (s *Session) Commit(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) ([]error, error) {
	txErr := db.WithContext(ctx).Transaction(fn)
	if txErr != nil {
		return s.tracker.AfterRollback(ctx), txErr
	}
	return s.tracker.AfterCommit(ctx), nil
}
