package indexing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func entry(id string, op domain.EntryState, minutes int) domain.ChangeLogEntry {
	return domain.ChangeLogEntry{
		ObjectType: domain.KindProduct,
		ObjectID:   id,
		Operation:  op,
		ModifiedAt: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

// fakeChangeLog serves fixed entries and records the requested window.
type fakeChangeLog struct {
	entries    []domain.ChangeLogEntry
	err        error
	start, end time.Time
	calls      int
}

func (l *fakeChangeLog) FindHistory(_ context.Context, _ domain.EntityKind, start, end time.Time) ([]domain.ChangeLogEntry, error) {
	l.calls++
	l.start, l.end = start, end
	return l.entries, l.err
}

func TestLatestChanges(t *testing.T) {
	tests := []struct {
		name    string
		entries []domain.ChangeLogEntry
		want    []domain.Change
	}{
		{
			name:    "empty",
			entries: nil,
			want:    []domain.Change{},
		},
		{
			name: "latest timestamp wins",
			entries: []domain.ChangeLogEntry{
				entry("a", domain.EntryCreated, 1),
				entry("b", domain.EntryCreated, 2),
				entry("a", domain.EntryDeleted, 3),
			},
			want: []domain.Change{
				{ObjectID: "a", Operation: domain.EntryDeleted},
				{ObjectID: "b", Operation: domain.EntryCreated},
			},
		},
		{
			name: "out of order entries",
			entries: []domain.ChangeLogEntry{
				entry("a", domain.EntryModified, 5),
				entry("a", domain.EntryDeleted, 2),
			},
			want: []domain.Change{{ObjectID: "a", Operation: domain.EntryModified}},
		},
		{
			name: "ties go to the later entry",
			entries: []domain.ChangeLogEntry{
				entry("a", domain.EntryDeleted, 1),
				entry("a", domain.EntryCreated, 1),
			},
			want: []domain.Change{{ObjectID: "a", Operation: domain.EntryCreated}},
		},
		{
			name: "ids compare case-insensitively",
			entries: []domain.ChangeLogEntry{
				entry("Prod-1", domain.EntryCreated, 1),
				entry("PROD-1", domain.EntryDeleted, 2),
			},
			want: []domain.Change{{ObjectID: "PROD-1", Operation: domain.EntryDeleted}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatestChanges(tt.entries)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d changes, got %d: %v", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Change %d: expected %+v, got %+v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestChangeCollector_Collect(t *testing.T) {
	log := &fakeChangeLog{entries: []domain.ChangeLogEntry{
		entry("a", domain.EntryCreated, 1),
		entry("a", domain.EntryModified, 2),
	}}
	c := NewChangeCollector(log)

	start, end := t0, t0.Add(time.Hour)
	changes, err := c.Collect(context.Background(), domain.KindProduct, start, end)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(changes) != 1 || changes[0].Operation != domain.EntryModified {
		t.Errorf("Expected one Modified change, got %v", changes)
	}
	if !log.start.Equal(start) || !log.end.Equal(end) {
		t.Errorf("Expected window [%v, %v), got [%v, %v)", start, end, log.start, log.end)
	}
}

func TestChangeCollector_Error(t *testing.T) {
	boom := errors.New("boom")
	c := NewChangeCollector(&fakeChangeLog{err: boom})

	_, err := c.Collect(context.Background(), domain.KindProduct, t0, t0.Add(time.Hour))
	if !errors.Is(err, boom) {
		t.Errorf("Expected change log error to propagate, got %v", err)
	}
}

func TestSplitChanges(t *testing.T) {
	removed, indexed := SplitChanges([]domain.Change{
		{ObjectID: "a", Operation: domain.EntryCreated},
		{ObjectID: "b", Operation: domain.EntryDeleted},
		{ObjectID: "c", Operation: domain.EntryModified},
	})

	if len(removed) != 1 || removed[0] != "b" {
		t.Errorf("Expected [b] removed, got %v", removed)
	}
	if len(indexed) != 2 || indexed[0] != "a" || indexed[1] != "c" {
		t.Errorf("Expected [a c] indexed, got %v", indexed)
	}
}
