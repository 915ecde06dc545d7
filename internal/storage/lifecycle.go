package storage

import (
	"context"
	"log/slog"

	"modmixx/internal/observability"
)

// Cleaner deletes superseded stored files, exactly once per replacement and
// never for a key still referenced by the current record state. All deletions
// are best effort: a record mutation must not fail because cleanup of an
// orphaned blob failed.
type Cleaner struct {
	store  ObjectStore
	logger *slog.Logger
}

// NewCleaner returns a Cleaner over the given store.
func NewCleaner(store ObjectStore, logger *slog.Logger) *Cleaner {
	return &Cleaner{store: store, logger: logger}
}

// CleanupReplaced deletes the previously stored file after a replacement or
// explicit clearing. prev is the snapshot taken BEFORE the owner-record write;
// next is the reference the record now holds. Callers must invoke this only
// after the new state is durably persisted: deleting first would leave the
// record pointing at a missing blob if the save fails.
func (c *Cleaner) CleanupReplaced(ctx context.Context, prev, next string) {
	if prev == "" || prev == next {
		return
	}
	c.delete(ctx, prev)
}

// DeleteAll removes every given key, used when the owning record has been
// deleted. Empty keys are skipped.
func (c *Cleaner) DeleteAll(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		c.delete(ctx, key)
	}
}

func (c *Cleaner) delete(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		observability.StorageCleanupFailures.Inc()
		c.logger.WarnContext(ctx, "failed to delete superseded file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
