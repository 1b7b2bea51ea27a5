package models

const (
	// NoDocumentsMessage is returned when a subject has no vector collection yet.
	NoDocumentsMessage = "No documents found for this subject. Please upload documents first"

	// NoInformationMessage doubles as the canned answer for empty retrieval and
	// as the exact fallback sentence the generator is instructed to emit.
	NoInformationMessage = "No information found in the subject documents."

	// LLMNotConfiguredMessage is returned when no inference API key is set.
	LLMNotConfiguredMessage = "LLM not configured. Please set the inference API key."
)

var (
	GroundedPromptTemplate = `You are a helpful assistant answering questions based strictly on the provided documents.

Context:
%s

Question: %s

Instructions:
1. Answer the question using ONLY the information from the Context above.
2. If the answer is not in the Context, say "No information found in the subject documents."
3. Do not use outside knowledge.
4. If the user input is only a greeting, greet back politely and ask how you can help.

Answer:`
)
