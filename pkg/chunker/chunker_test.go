package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func TestChunkDocument(t *testing.T) {
	c := New(100, 20)

	// Four paragraphs, well over one chunk's worth of text.
	text := strings.Join([]string{
		"[Page 1]\nThe first paragraph introduces the research problem in some detail.",
		"The second paragraph describes the methodology used in this study.",
		"[Page 2]\nThe third paragraph presents the main experimental results.",
		"The fourth paragraph concludes and outlines future work directions.",
	}, "\n\n")

	base := Metadata{
		DocID:   "doc_abc123",
		Title:   "A Study of Things",
		Authors: "Doe, Jane",
		Year:    2021,
	}

	chunks, err := c.ChunkDocument(text, base)
	if err != nil {
		t.Fatalf("ChunkDocument() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunk count = %d, want at least 2", len(chunks))
	}

	for i, chunk := range chunks {
		md := chunk.Metadata
		if chunk.ID != fmt.Sprintf("doc_abc123_%d", i) {
			t.Errorf("chunk[%d].ID = %s, want doc_abc123_%d", i, chunk.ID, i)
		}
		if md.ChunkIndex != i {
			t.Errorf("chunk[%d].ChunkIndex = %d", i, md.ChunkIndex)
		}
		if md.TotalChunks != len(chunks) {
			t.Errorf("chunk[%d].TotalChunks = %d, want %d", i, md.TotalChunks, len(chunks))
		}
		if md.Title != "A Study of Things" || md.Authors != "Doe, Jane" || md.Year != 2021 {
			t.Errorf("chunk[%d] lost document metadata: %+v", i, md)
		}
		if strings.TrimSpace(chunk.Content) == "" {
			t.Errorf("chunk[%d] has empty content", i)
		}
	}
}

func TestChunkDocumentPropagatesEnrichment(t *testing.T) {
	c := New(1000, 200)
	base := Metadata{DocID: "doc_x", Summary: "A short summary.", Gap: "The gap."}

	chunks, err := c.ChunkDocument("Some document text that fits in one chunk.", base)
	if err != nil {
		t.Fatalf("ChunkDocument() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("chunk count = %d, want 1", len(chunks))
	}
	if chunks[0].Metadata.Summary != "A short summary." || chunks[0].Metadata.Gap != "The gap." {
		t.Errorf("enrichment not propagated: %+v", chunks[0].Metadata)
	}
}

func TestExtractPageNumber(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"Marker present", "[Page 7]\nSome content here", 7},
		{"First marker wins", "[Page 3] text [Page 9]", 3},
		{"No marker", "plain content without markers", 0},
		{"Empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPageNumber(tt.text); got != tt.expected {
				t.Errorf("extractPageNumber(%q) = %d, want %d", tt.text, got, tt.expected)
			}
		})
	}
}

func TestMetadataClean(t *testing.T) {
	m := Metadata{Year: -5, PageNumber: -1}
	m.Clean()

	if m.Title != "Unknown" || m.Authors != "Unknown" || m.Filename != "Unknown" || m.SourcePath != "Unknown" {
		t.Errorf("empty string fields not defaulted: %+v", m)
	}
	if m.Year != 0 || m.PageNumber != 0 {
		t.Errorf("negative numeric fields not cleared: year=%d page=%d", m.Year, m.PageNumber)
	}

	set := Metadata{Title: "Kept", Authors: "Kept", Filename: "k.pdf", SourcePath: "/k.pdf", Year: 1999}
	set.Clean()
	if set.Title != "Kept" || set.Year != 1999 {
		t.Errorf("Clean() overwrote populated fields: %+v", set)
	}
}
