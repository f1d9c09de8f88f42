package synthesis

import (
	"encoding/json"
	"errors"
	"strings"
)

// ParsedResponse is the provider payload after JSON extraction, before
// category coercion.
type ParsedResponse struct {
	Narrative  string
	Confidence float64
	Reasoning  []string
	Updates    []RawUpdate
}

// RawUpdate carries a category name exactly as the provider spelled it.
type RawUpdate struct {
	Category string   `json:"category"`
	Details  []string `json:"details"`
}

// ResponseParser turns raw provider text into a structured response.
type ResponseParser interface {
	Parse(raw string) (ParsedResponse, error)
}

// LenientParser tolerates the ways models wrap JSON in prose: markdown
// fences, leading chatter, trailing sign-offs. It extracts the outermost
// object and decodes that.
type LenientParser struct{}

type rawResponse struct {
	SynthesizedNarrative string       `json:"synthesized_narrative"`
	ConfidenceScore      float64      `json:"confidence_score"`
	ReasoningChain       []string     `json:"reasoning_chain"`
	CategorizedUpdates   *[]RawUpdate `json:"categorized_updates"`
}

var errNoJSON = errors.New("no JSON object in response")

func (LenientParser) Parse(raw string) (ParsedResponse, error) {
	text := strings.TrimSpace(raw)

	// Strip a markdown fence if the whole payload sits inside one.
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = text[idx+3:]
		text = strings.TrimPrefix(text, "json")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ParsedResponse{}, errNoJSON
	}

	var decoded rawResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &decoded); err != nil {
		return ParsedResponse{}, err
	}
	if decoded.CategorizedUpdates == nil {
		return ParsedResponse{}, errors.New("response missing categorized_updates")
	}

	return ParsedResponse{
		Narrative:  strings.TrimSpace(decoded.SynthesizedNarrative),
		Confidence: decoded.ConfidenceScore,
		Reasoning:  decoded.ReasoningChain,
		Updates:    *decoded.CategorizedUpdates,
	}, nil
}
