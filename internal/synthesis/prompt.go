package synthesis

import (
	"fmt"
	"strings"

	"github.com/kithhq/kith/internal/category"
)

// Request is everything the engine needs to synthesize one note.
type Request struct {
	Note        string
	ContactName string
	// Facts is the contact's current record, keyed by category token.
	Facts map[string][]string
	// History holds retrieved note chunks relevant to this note.
	History []string
}

// buildPrompt renders the synthesis instruction. The response contract is
// strict JSON so the lenient parser has something to anchor on even when a
// model pads the answer with prose.
func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You maintain a structured record of facts about people. ")
	b.WriteString("Analyze the new note below and extract every discrete fact it contains.\n\n")

	name := req.ContactName
	if name == "" {
		name = "this contact"
	}
	fmt.Fprintf(&b, "Contact: %s\n\n", name)

	if len(req.Facts) > 0 {
		b.WriteString("Current record:\n")
		for _, c := range category.Order {
			facts := req.Facts[string(c)]
			if len(facts) == 0 {
				continue
			}
			fmt.Fprintf(&b, "  %s:\n", c)
			for _, f := range facts {
				fmt.Fprintf(&b, "    - %s\n", f)
			}
		}
		b.WriteString("\n")
	}

	if len(req.History) > 0 {
		b.WriteString("Relevant earlier notes:\n")
		for _, h := range req.History {
			fmt.Fprintf(&b, "  - %s\n", h)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "New note:\n%s\n\n", strings.TrimSpace(req.Note))

	b.WriteString("Respond with ONLY a JSON object, no other text, in exactly this shape:\n")
	b.WriteString(`{
  "synthesized_narrative": "one-paragraph summary of what the note adds",
  "confidence_score": 8,
  "reasoning_chain": ["step one", "step two"],
  "categorized_updates": [
    {"category": "professional_info", "details": ["Works at Acme Corp"]}
  ]
}
`)
	b.WriteString("\nconfidence_score is an integer from 1 (guessing) to 10 (certain).\n")
	b.WriteString("category MUST be one of: ")
	tokens := make([]string, len(category.Order))
	for i, c := range category.Order {
		tokens[i] = string(c)
	}
	b.WriteString(strings.Join(tokens, ", "))
	b.WriteString(".\nEach detail is one self-contained fact. Do not repeat facts already in the record.\n")

	return b.String()
}
