// Package provider defines the text-in/text-out contract for external AI
// services and the concrete clients behind it. The synthesis engine depends
// only on the Provider interface, so providers are swappable configuration,
// not code changes.
package provider

import "context"

// Engine names recorded on audit entries. "local" covers both the Ollama
// provider and the deterministic fallback categorizer.
const (
	NameOpenAI = "openai"
	NameGemini = "gemini"
	NameVision = "vision"
	NameLocal  = "local"
)

// Provider is a single AI backend invoked with a prompt and returning raw
// response text. Implementations must respect ctx cancellation; the caller
// applies per-call timeouts.
type Provider interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}
