// Package llm provides the chat clients behind the reasoning boundary.
package llm

// LLM is a minimal chat interface over a language model provider.
type LLM interface {
	Chat(prompt string) (string, error)
	Model() string
}
