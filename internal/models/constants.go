package models

const (
	// ContextSeparator joins retrieved chunk texts in the prompt's
	// context block.
	ContextSeparator = "\n---\n"

	// NoContextAnswer is returned when retrieval finds nothing; an
	// empty collection is a valid state, not an error.
	NoContextAnswer = "No relevant context was found in the indexed documents to answer this question."
)

var (
	RAGPromptTemplate = `You are an AI assistant that answers questions based on the provided context.

Use the following pieces of context to answer the question at the end. Each piece is numbered [Source N] so you can refer back to it.

If you can find relevant information in the context, provide a comprehensive answer. If you cannot find the answer in the context, say "I don't have enough information in the provided documents to answer this question."

Context:
%s

Question: %s

Answer:`
)
