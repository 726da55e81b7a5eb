package domain

import "fmt"

// OperationType is the index operation applied to every key of a partition.
type OperationType string

const (
	OperationIndex  OperationType = "Index"
	OperationRemove OperationType = "Remove"
)

// Valid reports whether the operation is one the index builder knows.
func (o OperationType) Valid() bool {
	return o == OperationIndex || o == OperationRemove
}

// Partition is a bounded batch of entity ids tagged with a single operation.
type Partition struct {
	Operation OperationType `json:"operation"`
	Keys      []string      `json:"keys"`
}

// Validate fails fast on partitions the builder cannot process.
func (p *Partition) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: partition is nil", ErrInvalidArgument)
	}
	if !p.Operation.Valid() {
		return fmt.Errorf("%w: partition operation %q", ErrInvalidArgument, p.Operation)
	}
	return nil
}
