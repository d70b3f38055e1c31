package pipeline

// Prompt templates for the pipeline's LLM calls. Kept as constants so they
// version with the code.

const hydePromptTemplate = `You are writing a passage for an academic research paper.
Write a single, plausible paragraph that would appear in a paper answering the question below.
Write in formal academic prose. Do not mention that it is hypothetical, do not add headings or citations.

Question: %s

Paragraph:`

const synthesisPromptTemplate = `You are a research assistant answering a question using excerpts from research papers.
Base your answer strictly on the numbered sources below. Reference sources inline using their bracketed numbers, e.g. [1] or [2][3].
If the sources do not contain enough information, say so explicitly.

Question: %s

Sources:
%s

Answer:`

// Each surviving chunk becomes one numbered context block.
const sourceBlockTemplate = `[%d] %s (%s, %s)%s
%s`

const simpleSystemPrompt = `You are a helpful research assistant. Provide concise and accurate responses.`

const simplePromptTemplate = simpleSystemPrompt + `

Question: %s

Answer:`

const noSourcesAnswer = "No sources in the library met the requested relevance threshold for this question. " +
	"Try lowering the threshold, rephrasing the question, or indexing more papers."

const emptyLibraryAnswer = "I couldn't find relevant information to answer your question. " +
	"The document library appears to be empty — index some PDFs first."
