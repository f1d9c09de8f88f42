// Package category defines the closed set of fact categories and the
// coercion rules applied to category names arriving from AI providers.
package category

import (
	"regexp"
	"strings"
)

// Category is one label from the fixed enumeration classifying a fact
// about a contact.
type Category string

const (
	PersonalDetails     Category = "personal_details"
	Preferences         Category = "preferences"
	ProfessionalInfo    Category = "professional_info"
	RelationshipContext Category = "relationship_context"
	CommunicationStyle  Category = "communication_style"
	ImportantEvents     Category = "important_events"
	Goals               Category = "goals"
	HealthWellness      Category = "health_wellness"
	LocationTravel      Category = "location_travel"
	Actionable          Category = "actionable"
	FinancialSituation  Category = "financial_situation"
	Miscellaneous       Category = "miscellaneous"
)

// Order is the display order used by prompts and exports.
var Order = []Category{
	PersonalDetails,
	Preferences,
	ProfessionalInfo,
	RelationshipContext,
	CommunicationStyle,
	ImportantEvents,
	Goals,
	HealthWellness,
	LocationTravel,
	Actionable,
	FinancialSituation,
	Miscellaneous,
}

var valid = func() map[Category]bool {
	m := make(map[Category]bool, len(Order))
	for _, c := range Order {
		m[c] = true
	}
	return m
}()

// synonyms maps common provider spellings onto canonical categories.
var synonyms = map[string]Category{
	"personal":      PersonalDetails,
	"personal_info": PersonalDetails,
	"identity":      PersonalDetails,
	"family":        RelationshipContext,
	"relationships": RelationshipContext,
	"social":        RelationshipContext,
	"work":          ProfessionalInfo,
	"job":           ProfessionalInfo,
	"career":        ProfessionalInfo,
	"professional":  ProfessionalInfo,
	"hobbies":       Preferences,
	"interests":     Preferences,
	"likes":         Preferences,
	"health":        HealthWellness,
	"wellbeing":     HealthWellness,
	"wellness":      HealthWellness,
	"medical":       HealthWellness,
	"travel":        LocationTravel,
	"location":      LocationTravel,
	"events":        ImportantEvents,
	"dates":         ImportantEvents,
	"communication": CommunicationStyle,
	"finances":      FinancialSituation,
	"money":         FinancialSituation,
	"tasks":         Actionable,
	"follow_up":     Actionable,
	"todo":          Actionable,
	"other":         Miscellaneous,
	"others":        Miscellaneous,
	"misc":          Miscellaneous,
}

// Valid reports whether c is a member of the recognized enumeration.
func Valid(c Category) bool {
	return valid[c]
}

// Canonical coerces an arbitrary category string from a provider response
// into the recognized enumeration. Unrecognized names map to Miscellaneous;
// facts are never dropped on account of their category.
func Canonical(name string) Category {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer(" ", "_", "-", "_", "/", "_").Replace(normalized)

	if c := Category(normalized); valid[c] {
		return c
	}
	if c, ok := synonyms[normalized]; ok {
		return c
	}
	return Miscellaneous
}

var (
	emailRe = regexp.MustCompile(`\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	urlRe   = regexp.MustCompile(`\bhttps?://\S+`)
)

// keywordMap drives Infer. Ordering matters: earlier entries win.
var keywordMap = []struct {
	cat      Category
	keywords []string
}{
	{Actionable, []string{"follow up", "follow-up", "need to", "remind", "schedule", "todo", "due "}},
	{HealthWellness, []string{"allergic", "allergy", "health", "sick", "doctor", "injury", "diet", "sleep"}},
	{ProfessionalInfo, []string{"works at", "working at", "job", "career", "promoted", "company", "startup", "engineer", "manager", "studied", "university"}},
	{Goals, []string{"wants to", "goal", "plans to", "aspire", "dream"}},
	{FinancialSituation, []string{"salary", "money", "invest", "mortgage", "debt"}},
	{LocationTravel, []string{"moved to", "lives in", "travel", "trip to", "flight", "visiting"}},
	{ImportantEvents, []string{"birthday", "anniversary", "wedding", "graduat", "funeral"}},
	{Preferences, []string{"likes", "loves", "enjoys", "prefers", "hates", "favorite", "favourite", "hobby"}},
	{RelationshipContext, []string{"met at", "met through", "introduced", "friend of", "married to", "partner", "brother", "sister", "mother", "father"}},
	{CommunicationStyle, []string{"prefers texting", "prefers email", "responds", "communicat", "texts back"}},
}

// Infer assigns a category to a free-text fact using keyword heuristics.
// It backs the deterministic fallback categorizer used when no AI provider
// produced a result.
func Infer(text string) Category {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return Miscellaneous
	}

	// Contact details like emails and links are personal details.
	if emailRe.MatchString(t) || urlRe.MatchString(t) {
		return PersonalDetails
	}

	for _, entry := range keywordMap {
		for _, kw := range entry.keywords {
			if strings.Contains(t, kw) {
				return entry.cat
			}
		}
	}
	return Miscellaneous
}
