package vectorstore

import (
	"errors"
	"testing"
)

func TestIsValidTableName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"Valid standard", "research_papers", true},
		{"Valid with underscore", "my_collection", true},
		{"Valid with numbers", "collection123", true},
		{"Valid short", "a", true},
		{"Valid max length", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_", true}, // 63 chars
		{"Invalid start with number", "1collection", false},
		{"Invalid special chars", "collection-name", false},
		{"Invalid space", "collection name", false},
		{"Invalid SQL injection", "users; DROP TABLE embeddings", false},
		{"Invalid empty", "", false},
		{"Invalid too long", "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789__", false}, // 64 chars
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isValidTableName(tt.input); got != tt.expected {
				t.Errorf("isValidTableName(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewPGVectorStoreRejectsBadName(t *testing.T) {
	if _, err := NewPGVectorStore(nil, "bad-name"); err == nil {
		t.Error("NewPGVectorStore() error = nil, want error for invalid table name")
	}
}

func TestBatchRanges(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		expected [][2]int
	}{
		{"Empty", 0, nil},
		{"Single partial batch", 500, [][2]int{{0, 500}}},
		{"Exact batch", 1000, [][2]int{{0, 1000}}},
		{"Split with remainder", 2500, [][2]int{{0, 1000}, {1000, 2000}, {2000, 2500}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := batchRanges(tt.n, safeBatchSize)
			if len(got) != len(tt.expected) {
				t.Fatalf("batchRanges(%d) = %v, want %v", tt.n, got, tt.expected)
			}
			covered := 0
			for i, r := range got {
				if r != tt.expected[i] {
					t.Errorf("range[%d] = %v, want %v", i, r, tt.expected[i])
				}
				if r[1]-r[0] > safeBatchSize {
					t.Errorf("range[%d] exceeds safe batch size", i)
				}
				if r[0] != covered {
					t.Errorf("range[%d] not contiguous: starts at %d, want %d", i, r[0], covered)
				}
				covered = r[1]
			}
			if covered != tt.n {
				t.Errorf("ranges cover %d items, want %d", covered, tt.n)
			}
		})
	}
}

func TestBatchErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &BatchError{Start: 1000, End: 2000, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(BatchError, cause) = false, want true")
	}
	msg := err.Error()
	if msg != "failed to add chunks 1000-2000: connection reset" {
		t.Errorf("Error() = %q", msg)
	}
}
