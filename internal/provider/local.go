package provider

import (
	"context"

	"github.com/kithhq/kith/internal/ollama"
)

// Chatter is the subset of the Ollama client the local provider needs.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []ollama.Message, jsonOutput bool) (string, error)
}

// Local runs categorization on a local Ollama model.
type Local struct {
	client Chatter
	model  string
}

// NewLocal creates a Local provider using the given Ollama client and model.
func NewLocal(client Chatter, model string) *Local {
	return &Local{client: client, model: model}
}

func (p *Local) Name() string { return NameLocal }

// Generate sends the prompt to the local model, requesting JSON output so
// the response parses without prose stripping.
func (p *Local) Generate(ctx context.Context, prompt string) (string, error) {
	return p.client.Chat(ctx, p.model, []ollama.Message{{Role: "user", Content: prompt}}, true)
}
