package retrieval

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kithhq/kith/internal/ollama"
)

// maxChunkRunes caps the size of a single embedded chunk.
const maxChunkRunes = 800

// OllamaEmbedder embeds text with a local Ollama model.
type OllamaEmbedder struct {
	client *ollama.Client
	model  string
}

func NewOllamaEmbedder(client *ollama.Client, model string) *OllamaEmbedder {
	return &OllamaEmbedder{client: client, model: model}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.model, text)
}

// EmbedAll embeds chunks concurrently, preserving input order. Any single
// failure fails the batch so the caller can retry the whole note.
func (e *OllamaEmbedder) EmbedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	out := make([][]float32, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, chunk := range chunks {
		g.Go(func() error {
			v, err := e.Embed(ctx, chunk)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitChunks breaks note text into embeddable pieces on paragraph
// boundaries, merging short paragraphs and splitting oversized ones.
func SplitChunks(text string) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len([]rune(para)) > maxChunkRunes {
			runes := []rune(para)
			cut := maxChunkRunes
			// Prefer breaking at a sentence end inside the window.
			if idx := strings.LastIndex(string(runes[:cut]), ". "); idx > maxChunkRunes/2 {
				cut = len([]rune(string(runes[:cut])[:idx+1]))
			}
			flush()
			chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
			para = strings.TrimSpace(string(runes[cut:]))
		}
		if current.Len()+len(para) > maxChunkRunes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}
