package pdf

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	pdfreader "github.com/ledongthuc/pdf"
)

// Document is a parsed PDF with extracted text and citation metadata.
type Document struct {
	Path     string
	Filename string
	Text     string
	Title    string
	Authors  string
	Year     int
	NumPages int
}

// Parse extracts text and metadata from a PDF file. Page text is prefixed
// with a [Page N] marker so chunks can be correlated back to pages.
func Parse(path string) (*Document, error) {
	f, reader, err := pdfreader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf %s: %w", path, err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	var parts []string
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the whole document.
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, fmt.Sprintf("[Page %d]\n%s", i, text))
		}
	}

	text := strings.Join(parts, "\n\n")
	doc := &Document{
		Path:     path,
		Filename: filepath.Base(path),
		Text:     text,
		NumPages: numPages,
	}

	doc.Title = ExtractTitle(text, strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename)))
	doc.Authors = ExtractAuthors(text)
	doc.Year = ExtractYear(text)
	return doc, nil
}

var numberLineRe = regexp.MustCompile(`^\d+$`)

// ExtractTitle guesses the paper title from the first page. The first
// substantial line is usually the title; falls back to the given string.
func ExtractTitle(text, fallback string) string {
	if text == "" {
		return fallback
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < 10 {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "page ") || strings.HasPrefix(lower, "[page") ||
			strings.HasPrefix(lower, "abstract") || strings.HasPrefix(lower, "introduction") {
			continue
		}
		if numberLineRe.MatchString(line) {
			continue
		}
		if len(line) > 15 && len(line) < 300 {
			return line
		}
	}
	return fallback
}

// ExtractAuthors guesses the author line: multiple capitalized names joined
// by commas or "and" near the top of the first page.
func ExtractAuthors(text string) string {
	if text == "" {
		return "Unknown"
	}

	lines := strings.Split(text, "\n")
	if len(lines) > 30 {
		lines = lines[:30]
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.Contains(strings.ToLower(line), " and ") && strings.Count(line, ",") < 1 {
			continue
		}
		words := strings.Fields(line)
		if len(words) == 0 || len(line) >= 500 {
			continue
		}
		capitalized := 0
		for _, w := range words {
			if w != "" && w[0] >= 'A' && w[0] <= 'Z' {
				capitalized++
			}
		}
		if capitalized*2 > len(words) {
			return line
		}
	}
	return "Unknown"
}

var yearRe = regexp.MustCompile(`\b(19[89]\d|20[0-2]\d)\b`)

// ExtractYear finds the most recent plausible publication year in the first
// page of text. Returns 0 when none is found.
func ExtractYear(text string) int {
	if text == "" {
		return 0
	}
	if len(text) > 3000 {
		text = text[:3000]
	}

	best := 0
	for _, match := range yearRe.FindAllString(text, -1) {
		year, err := strconv.Atoi(match)
		if err == nil && year > best {
			best = year
		}
	}
	return best
}
