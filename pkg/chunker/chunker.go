package chunker

import (
	"fmt"
	"regexp"

	"github.com/tmc/langchaingo/textsplitter"
)

// Metadata carries the citation and enrichment fields attached to every chunk.
// Values are copied from the owning document so downstream stages never need a
// document lookup. String fields are never empty and numeric fields never
// negative once Clean has run.
type Metadata struct {
	DocID       string `json:"doc_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Title       string `json:"title"`
	Authors     string `json:"authors"`
	Year        int    `json:"year"`
	Filename    string `json:"filename"`
	SourcePath  string `json:"source_path"`
	PageNumber  int    `json:"page_number"`

	// LLM-derived enrichment, best effort. Empty strings mean "not generated".
	Summary     string `json:"summary,omitempty"`
	Gap         string `json:"gap,omitempty"`
	Methodology string `json:"methodology,omitempty"`
	Results     string `json:"results,omitempty"`
	Discussion  string `json:"discussion,omitempty"`
	Conclusion  string `json:"conclusion,omitempty"`
}

// Clean substitutes neutral defaults so the storage layer never sees its
// null sentinel in citation fields.
func (m *Metadata) Clean() {
	if m.Title == "" {
		m.Title = "Unknown"
	}
	if m.Authors == "" {
		m.Authors = "Unknown"
	}
	if m.Filename == "" {
		m.Filename = "Unknown"
	}
	if m.SourcePath == "" {
		m.SourcePath = "Unknown"
	}
	if m.Year < 0 {
		m.Year = 0
	}
	if m.PageNumber < 0 {
		m.PageNumber = 0
	}
}

// Chunk is the atomic unit stored and retrieved. ID is globally unique as
// {doc_id}_{chunk_index}.
type Chunk struct {
	ID       string
	Content  string
	Metadata Metadata
}

// Chunker splits document text into overlapping chunks.
type Chunker struct {
	splitter textsplitter.TextSplitter
}

// Separator priority order: paragraph break, line break, sentence boundary,
// whitespace. Chunk ordering follows source text order.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// New creates a chunker with the given size and overlap (characters).
func New(chunkSize, chunkOverlap int) *Chunker {
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(defaultSeparators),
	)
	return &Chunker{splitter: ts}
}

var pageMarkerRe = regexp.MustCompile(`\[Page (\d+)\]`)

// ChunkDocument splits text into ordered chunks, each carrying a full copy of
// the document metadata. The base metadata's enrichment fields (if any)
// propagate to every chunk.
func (c *Chunker) ChunkDocument(text string, base Metadata) ([]Chunk, error) {
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]Chunk, 0, len(parts))
	for i, content := range parts {
		md := base
		md.ChunkIndex = i
		md.TotalChunks = len(parts)
		md.PageNumber = extractPageNumber(content)
		md.Clean()

		chunks = append(chunks, Chunk{
			ID:       fmt.Sprintf("%s_%d", md.DocID, i),
			Content:  content,
			Metadata: md,
		})
	}
	return chunks, nil
}

// extractPageNumber pulls the page marker the PDF parser injects into the
// text. Returns 0 when the chunk contains no marker.
func extractPageNumber(text string) int {
	match := pageMarkerRe.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	var page int
	fmt.Sscanf(match[1], "%d", &page)
	return page
}
