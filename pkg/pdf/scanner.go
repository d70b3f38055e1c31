// Package pdf scans a library folder for research-paper PDFs and extracts
// their text and citation metadata.
package pdf

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scan walks root collecting PDF files up to maxDepth subfolder levels
// (reference-manager exports nest attachments one folder deep). Unreadable
// directories are logged and skipped.
func Scan(root string, maxDepth int) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to access pdf folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pdf folder %s is not a directory", root)
	}

	var paths []string
	scanDir(root, 0, maxDepth, &paths)
	sort.Strings(paths)
	return paths, nil
}

func scanDir(dir string, depth, maxDepth int, out *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("Skipping unreadable directory", "dir", dir, "error", err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if depth < maxDepth {
				scanDir(path, depth+1, maxDepth, out)
			}
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			*out = append(*out, path)
		}
	}
}
