package indexing

import (
	"fmt"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

// MaxPartitionSize is the default number of keys per partition.
const MaxPartitionSize = 100

// Partition splits ids into consecutive chunks of at most size keys, all
// tagged with op. The order of ids is preserved and every id lands in exactly
// one partition. A non-positive size falls back to MaxPartitionSize.
func Partition(op domain.OperationType, ids []string, size int) ([]domain.Partition, error) {
	if !op.Valid() {
		return nil, fmt.Errorf("%w: operation %q", domain.ErrInvalidArgument, op)
	}
	if size <= 0 {
		size = MaxPartitionSize
	}

	partitions := make([]domain.Partition, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		keys := make([]string, end-start)
		copy(keys, ids[start:end])
		partitions = append(partitions, domain.Partition{Operation: op, Keys: keys})
	}
	return partitions, nil
}
