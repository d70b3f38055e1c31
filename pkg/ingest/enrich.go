package ingest

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Somekindofa/research-paper-rag/pkg/chunker"
	"github.com/Somekindofa/research-paper-rag/pkg/pdf"
)

const enrichPromptTemplate = `You are analyzing a research paper. Based on the excerpt below, extract the following fields and respond with a single JSON object, nothing else:

{
  "summary": "2-3 sentence summary of the paper",
  "gap": "the research gap the paper addresses",
  "methodology": "the methodology used",
  "results": "the key results",
  "discussion": "the main discussion points",
  "conclusion": "the conclusion"
}

If a field cannot be determined from the excerpt, use an empty string.

Title: %TITLE%

Excerpt:
%EXCERPT%`

const (
	enrichExcerptLimit = 4000
	enrichTemperature  = 0.2
	enrichMaxTokens    = 1024
)

type enrichment struct {
	Summary     string `json:"summary"`
	Gap         string `json:"gap"`
	Methodology string `json:"methodology"`
	Results     string `json:"results"`
	Discussion  string `json:"discussion"`
	Conclusion  string `json:"conclusion"`
}

// enrich asks the LLM for structural metadata and folds it into base.
// Enrichment is best effort: any failure leaves base untouched.
func (ix *Indexer) enrich(ctx context.Context, doc *pdf.Document, base *chunker.Metadata) {
	if ix.LLM == nil {
		return
	}

	excerpt := doc.Text
	if len(excerpt) > enrichExcerptLimit {
		excerpt = excerpt[:enrichExcerptLimit]
	}
	prompt := strings.NewReplacer(
		"%TITLE%", doc.Title,
		"%EXCERPT%", excerpt,
	).Replace(enrichPromptTemplate)

	raw, err := ix.LLM.Generate(ctx, ix.EnrichModel, prompt, enrichTemperature, enrichMaxTokens)
	if err != nil {
		ix.Logger.Warn("Metadata enrichment failed", "file", doc.Filename, "error", err)
		return
	}

	var e enrichment
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &e); err != nil {
		ix.Logger.Warn("Could not parse enrichment response", "file", doc.Filename, "error", err)
		return
	}

	base.Summary = e.Summary
	base.Gap = e.Gap
	base.Methodology = e.Methodology
	base.Results = e.Results
	base.Discussion = e.Discussion
	base.Conclusion = e.Conclusion
}

// extractJSONObject returns the first brace-balanced object in s. Models often
// wrap JSON in code fences or prose, so we cut down to the outermost braces.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
