// Package synthesis turns free-text notes into structured, categorized
// fact proposals by walking an ordered chain of AI providers, with a
// deterministic keyword categorizer as the terminal fallback.
package synthesis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kithhq/kith/internal/category"
	"github.com/kithhq/kith/internal/provider"
)

const defaultCallTimeout = 45 * time.Second

// Update is a group of proposed facts under one canonical category.
type Update struct {
	Category category.Category `json:"category"`
	Facts    []string          `json:"facts"`
}

// Proposal is the synthesis result presented for human review. Nothing in
// it has been persisted.
type Proposal struct {
	Narrative  string   `json:"narrative"`
	Confidence float64  `json:"confidence"`
	Reasoning  []string `json:"reasoning,omitempty"`
	Updates    []Update `json:"updates"`
	// Engine names the provider that produced the proposal.
	Engine string `json:"engine"`
	// Degraded is set when every provider failed and the keyword
	// fallback produced the categorization.
	Degraded bool `json:"degraded"`
}

// Engine runs the provider chain.
type Engine struct {
	chain   []provider.Provider
	parser  ResponseParser
	timeout time.Duration
	logger  *slog.Logger
}

// NewEngine creates an engine over the given provider chain. The chain may
// be empty, in which case every request degrades to the keyword fallback.
func NewEngine(chain []provider.Provider, logger *slog.Logger) *Engine {
	return &Engine{
		chain:   chain,
		parser:  LenientParser{},
		timeout: defaultCallTimeout,
		logger:  logger,
	}
}

// SetCallTimeout overrides the per-provider call timeout.
func (e *Engine) SetCallTimeout(d time.Duration) { e.timeout = d }

// Synthesize produces a proposal for the request. Provider errors and
// unparseable responses advance the chain; the call only fails when the
// context is done. A request that exhausts the chain still yields a
// usable, degraded proposal.
func (e *Engine) Synthesize(ctx context.Context, req Request) (Proposal, error) {
	prompt := buildPrompt(req)

	for _, p := range e.chain {
		if err := ctx.Err(); err != nil {
			return Proposal{}, err
		}

		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		raw, err := p.Generate(callCtx, prompt)
		cancel()
		if err != nil {
			e.logger.Warn("provider call failed", "engine", p.Name(), "error", err)
			continue
		}

		parsed, err := e.parser.Parse(raw)
		if err != nil {
			e.logger.Warn("provider response unparseable", "engine", p.Name(), "error", err)
			continue
		}

		return e.assemble(parsed, p.Name()), nil
	}

	if err := ctx.Err(); err != nil {
		return Proposal{}, err
	}
	e.logger.Warn("all providers exhausted, using keyword fallback")
	return Fallback(req.Note), nil
}

// assemble coerces provider categories onto the canonical enumeration and
// merges updates that land on the same category. Facts are never dropped
// because of an unrecognized category name.
func (e *Engine) assemble(parsed ParsedResponse, engine string) Proposal {
	var order []category.Category
	grouped := make(map[category.Category][]string)
	seen := make(map[category.Category]map[string]bool)

	for _, u := range parsed.Updates {
		c := category.Canonical(u.Category)
		if _, ok := grouped[c]; !ok {
			order = append(order, c)
			seen[c] = make(map[string]bool)
		}
		for _, d := range u.Details {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			key := strings.ToLower(d)
			if seen[c][key] {
				continue
			}
			seen[c][key] = true
			grouped[c] = append(grouped[c], d)
		}
	}

	updates := make([]Update, 0, len(order))
	for _, c := range order {
		if len(grouped[c]) == 0 {
			continue
		}
		updates = append(updates, Update{Category: c, Facts: grouped[c]})
	}

	return Proposal{
		Narrative:  parsed.Narrative,
		Confidence: clampConfidence(parsed.Confidence),
		Reasoning:  parsed.Reasoning,
		Updates:    updates,
		Engine:     engine,
	}
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 1:
		return 1
	case v > 10:
		return 10
	default:
		return v
	}
}

// Fallback categorizes the note with keyword heuristics alone. It is pure:
// the same note always yields the same proposal.
func Fallback(note string) Proposal {
	var order []category.Category
	grouped := make(map[category.Category][]string)

	for _, s := range splitStatements(note) {
		c := category.Infer(s)
		if _, ok := grouped[c]; !ok {
			order = append(order, c)
		}
		grouped[c] = append(grouped[c], s)
	}

	updates := make([]Update, 0, len(order))
	for _, c := range order {
		updates = append(updates, Update{Category: c, Facts: grouped[c]})
	}

	return Proposal{
		Narrative:  "Keyword-based categorization; no AI provider was available.",
		Confidence: 1,
		Updates:    updates,
		Engine:     provider.NameLocal,
		Degraded:   true,
	}
}

// splitStatements breaks a note into candidate facts on line and sentence
// boundaries.
func splitStatements(note string) []string {
	var out []string
	for _, line := range strings.Split(note, "\n") {
		for _, s := range strings.Split(line, ". ") {
			s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "."))
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
