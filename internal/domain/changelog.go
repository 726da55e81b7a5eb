package domain

import "time"

// EntryState is the kind of change recorded in the change log.
type EntryState string

const (
	EntryCreated  EntryState = "Created"
	EntryModified EntryState = "Modified"
	EntryDeleted  EntryState = "Deleted"
)

// ChangeLogEntry records one change to an entity.
// Several entries may exist per object within a window; only the latest is authoritative.
type ChangeLogEntry struct {
	ObjectType EntityKind `json:"object_type"`
	ObjectID   string     `json:"object_id"`
	Operation  EntryState `json:"operation"`
	ModifiedAt time.Time  `json:"modified_at"`
}

// Change is the effective last operation of one entity within a window.
type Change struct {
	ObjectID  string
	Operation EntryState
}
