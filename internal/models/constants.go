package models

const (
	// NoRelevantInformation is returned verbatim when retrieval finds
	// nothing confident enough to ground an answer. It is produced
	// locally, without an LLM call.
	NoRelevantInformation = "No relevant information found in the documents."

	ContextSeparator = "\n\n---\n\n"
)

var (
	GroundedSystemPrompt = `You are a helpful assistant that answers questions based on provided document excerpts.

Rules:
1. Answer ONLY using information from the provided context
2. Cite the source filename for every statement (e.g., "According to Report.pdf, ...")
3. If the context doesn't contain enough information, say so
4. Be concise and direct`

	GroundedUserPromptTemplate = `Context from documents:

%s

---

Question: %s

Please answer the question using only the information provided above. Cite the filename for each statement.`
)
