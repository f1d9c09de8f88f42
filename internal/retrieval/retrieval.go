// Package retrieval assembles the context bundle fed into synthesis: the
// contact's current facts plus note chunks semantically similar to the
// incoming note. Vector search failures degrade silently to recency.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/kithhq/kith/internal/storage"
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunk is one retrieved piece of note history.
type Chunk struct {
	RawNoteID string  `json:"raw_note_id"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// ContextBundle is everything retrieval contributes to a synthesis request.
type ContextBundle struct {
	Facts   map[string][]string `json:"facts"`
	History []Chunk             `json:"history"`
}

// HistoryText flattens the retrieved chunks for prompt building.
func (b ContextBundle) HistoryText() []string {
	out := make([]string, len(b.History))
	for i, c := range b.History {
		out[i] = c.Text
	}
	return out
}

// Retriever runs contact-scoped similarity search over embedded notes.
type Retriever struct {
	store    *storage.Store
	embedder Embedder
	topK     int
	logger   *slog.Logger
}

// NewRetriever creates a retriever returning at most topK history chunks.
func NewRetriever(store *storage.Store, embedder Embedder, topK int, logger *slog.Logger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{store: store, embedder: embedder, topK: topK, logger: logger}
}

// Retrieve builds the context bundle for a note about a contact. The facts
// snapshot always loads; history falls back to the most recent raw notes
// when embedding or vector search is unavailable.
func (r *Retriever) Retrieve(ctx context.Context, contactID, note string) (ContextBundle, error) {
	facts, err := r.store.FactsByCategory(contactID)
	if err != nil {
		return ContextBundle{}, fmt.Errorf("loading facts: %w", err)
	}
	bundle := ContextBundle{Facts: facts}

	history, err := r.similar(ctx, contactID, note)
	if err != nil {
		r.logger.Warn("vector retrieval unavailable, falling back to recent notes",
			"contact_id", contactID, "error", err)
		history, err = r.recent(contactID)
		if err != nil {
			return ContextBundle{}, err
		}
	}
	bundle.History = history
	return bundle, nil
}

func (r *Retriever) similar(ctx context.Context, contactID, note string) ([]Chunk, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	query, err := r.embedder.Embed(ctx, note)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	vectors, err := r.store.VectorsForContact(contactID)
	if err != nil {
		return nil, err
	}

	// Brute force over the contact's chunks. Contacts have at most a few
	// thousand note chunks, so this stays well under a millisecond.
	chunks := make([]Chunk, 0, len(vectors))
	for _, v := range vectors {
		score := cosine(query, v.Embedding)
		if score <= 0 {
			continue
		}
		chunks = append(chunks, Chunk{RawNoteID: v.RawNoteID, Text: v.TextChunk, Score: score})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > r.topK {
		chunks = chunks[:r.topK]
	}
	return chunks, nil
}

// recent is the degraded path: the contact's K most recent raw notes, no
// similarity scores.
func (r *Retriever) recent(contactID string) ([]Chunk, error) {
	notes, err := r.store.ListRawNotes(contactID, r.topK)
	if err != nil {
		return nil, fmt.Errorf("loading recent notes: %w", err)
	}
	chunks := make([]Chunk, 0, len(notes))
	for _, n := range notes {
		chunks = append(chunks, Chunk{RawNoteID: n.ID, Text: n.Content})
	}
	return chunks, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
