package models

const (
	// SelectedTextSource labels caller-supplied context that bypasses retrieval.
	SelectedTextSource = "Selected Text"
	// SelectedTextScore is the fixed score given to caller-supplied context.
	SelectedTextScore = 1.0

	NotFoundAnswer = "I couldn't find relevant information in the textbook to answer your question."

	ContextSeparator = "\n\n"
	PartLabelFormat  = "%s (Part %d)"
)

var (
	SystemPrompt = `You are a helpful assistant for a Physical AI & Humanoid Robotics textbook.
Answer questions based on the provided context from the textbook.
If the answer is not in the context, say so clearly.
Be concise and technical but easy to understand.`

	UserPromptTemplate = `Context from textbook:
%s

Question: %s

Please provide a clear and accurate answer based on the context above.`

	ContextBlockTemplate = "Source: %s\n%s"
)
