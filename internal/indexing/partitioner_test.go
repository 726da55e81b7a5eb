package indexing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sha1n/mcp-catalog-search/internal/domain"
)

func makeIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%03d", i)
	}
	return ids
}

func TestPartition_Sizes(t *testing.T) {
	tests := []struct {
		n, size int
		want    int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{250, 0, 3},
		{100, -1, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			ids := makeIDs(tt.n)
			partitions, err := Partition(domain.OperationIndex, ids, tt.size)
			if err != nil {
				t.Fatalf("Partition failed: %v", err)
			}
			if len(partitions) != tt.want {
				t.Fatalf("Expected %d partitions, got %d", tt.want, len(partitions))
			}

			limit := tt.size
			if limit <= 0 {
				limit = MaxPartitionSize
			}
			var joined []string
			for i, p := range partitions {
				if p.Operation != domain.OperationIndex {
					t.Errorf("Partition %d: expected operation Index, got %s", i, p.Operation)
				}
				if len(p.Keys) == 0 || len(p.Keys) > limit {
					t.Errorf("Partition %d: unexpected size %d", i, len(p.Keys))
				}
				joined = append(joined, p.Keys...)
			}
			if len(joined) != len(ids) {
				t.Fatalf("Expected %d keys in total, got %d", len(ids), len(joined))
			}
			for i := range ids {
				if joined[i] != ids[i] {
					t.Errorf("Key %d: expected %s, got %s", i, ids[i], joined[i])
				}
			}
		})
	}
}

func TestPartition_CopiesKeys(t *testing.T) {
	ids := makeIDs(3)
	partitions, err := Partition(domain.OperationRemove, ids, 2)
	if err != nil {
		t.Fatalf("Partition failed: %v", err)
	}

	ids[0] = "changed"
	if partitions[0].Keys[0] != "id-000" {
		t.Errorf("Expected partition to own its keys, got %s", partitions[0].Keys[0])
	}
}

func TestPartition_InvalidOperation(t *testing.T) {
	for _, op := range []domain.OperationType{"", "Upsert"} {
		_, err := Partition(op, makeIDs(3), 10)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument for %q, got %v", op, err)
		}
	}
}
