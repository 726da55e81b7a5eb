package indexing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// ChangeLog reads the history of entity changes.
type ChangeLog interface {
	// FindHistory returns the entries of kind recorded in [start, end).
	// A zero end means no upper bound.
	FindHistory(ctx context.Context, kind domain.EntityKind, start, end time.Time) ([]domain.ChangeLogEntry, error)
}

// ChangeCollector reduces a change-log window to the effective last
// operation of every entity.
type ChangeCollector struct {
	log ChangeLog
}

// NewChangeCollector creates a collector over the given change log.
func NewChangeCollector(log ChangeLog) *ChangeCollector {
	return &ChangeCollector{log: log}
}

// Collect returns one change per entity id (compared case-insensitively)
// carrying the operation of its latest entry in the window. When two entries
// share a timestamp the one that appears later in the log wins. Changes are
// returned in the order their ids were first seen.
func (c *ChangeCollector) Collect(ctx context.Context, kind domain.EntityKind, start, end time.Time) ([]domain.Change, error) {
	entries, err := c.log.FindHistory(ctx, kind, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log: %w", err)
	}
	return LatestChanges(entries), nil
}

// LatestChanges applies last-write-wins to a sequence of entries.
func LatestChanges(entries []domain.ChangeLogEntry) []domain.Change {
	type latest struct {
		change domain.Change
		at     time.Time
	}

	order := make([]string, 0, len(entries))
	byID := make(map[string]*latest, len(entries))
	for _, e := range entries {
		key := strings.ToLower(e.ObjectID)
		cur, ok := byID[key]
		if !ok {
			order = append(order, key)
			byID[key] = &latest{change: domain.Change{ObjectID: e.ObjectID, Operation: e.Operation}, at: e.ModifiedAt}
			continue
		}
		if !e.ModifiedAt.Before(cur.at) {
			cur.change = domain.Change{ObjectID: e.ObjectID, Operation: e.Operation}
			cur.at = e.ModifiedAt
		}
	}

	changes := make([]domain.Change, 0, len(order))
	for _, key := range order {
		changes = append(changes, byID[key].change)
	}
	return changes
}

// SplitChanges separates changes into ids to remove and ids to (re)index.
func SplitChanges(changes []domain.Change) (removed, indexed []string) {
	for _, ch := range changes {
		if ch.Operation == domain.EntryDeleted {
			removed = append(removed, ch.ObjectID)
		} else {
			indexed = append(indexed, ch.ObjectID)
		}
	}
	return removed, indexed
}
