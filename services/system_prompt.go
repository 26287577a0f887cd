package services

import "fmt"

// groundedPrompt instructs the model to answer strictly from the retrieved
// context. The model must say so when the context has no answer instead of
// inventing one.
func groundedPrompt(question, context string) string {
	return fmt.Sprintf(`You are a helpful AI assistant. Answer the user's question based solely on the context provided below. If the context does not contain an answer, state that and do not try to make one up.

Context:
---
%s
---

Question: %s`, context, question)
}

// noContextPrompt is the stated policy for an empty retrieval: tell the user
// no matching documents were found, then answer from general knowledge. The
// resulting answer carries an empty source set.
func noContextPrompt(question string) string {
	return fmt.Sprintf(`You are a helpful assistant. No relevant documents were found in the user's document store for this question. Inform the user that sufficient information was not found in their documents to give a precise answer, then attempt to answer based on your general knowledge.

Question: %s`, question)
}
