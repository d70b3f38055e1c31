package pdf

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.pdf"))
	touch(t, filepath.Join(root, "B.PDF"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.pdf"))
	touch(t, filepath.Join(root, "sub", "deeper", "d.pdf"))
	touch(t, filepath.Join(root, "sub", "deeper", "further", "e.pdf"))

	tests := []struct {
		name     string
		maxDepth int
		want     []string
	}{
		{"Depth 0 stays at root", 0, []string{"B.PDF", "a.pdf"}},
		{"Depth 1 includes one subfolder level", 1, []string{"B.PDF", "a.pdf", "sub/c.pdf"}},
		{"Depth 2 includes two levels", 2, []string{"B.PDF", "a.pdf", "sub/c.pdf", "sub/deeper/d.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scan(root, tt.maxDepth)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Scan() = %v, want %d files", got, len(tt.want))
			}
			for i, rel := range tt.want {
				want := filepath.Join(root, filepath.FromSlash(rel))
				if got[i] != want {
					t.Errorf("Scan()[%d] = %s, want %s", i, got[i], want)
				}
			}
		})
	}
}

func TestScanMissingFolder(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "absent"), 2); err == nil {
		t.Error("Scan() error = nil, want error for missing folder")
	}
}

func TestScanFileAsRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.pdf")
	touch(t, file)
	if _, err := Scan(file, 2); err == nil {
		t.Error("Scan() error = nil, want error when root is a file")
	}
}
