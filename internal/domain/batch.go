package domain

import "context"

// IndexBatch stages index changes of one caller. Nothing staged is visible
// until Commit; Close discards whatever was not committed.
type IndexBatch interface {
	Index(ctx context.Context, documentType string, doc *IndexDocument) error

	// Remove deletes documents whose keyField equals id.
	Remove(ctx context.Context, documentType, keyField, id string) error

	Commit(ctx context.Context) error
	Close() error
}
