package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Contact is a person the user keeps notes about.
type Contact struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Tier           int       `json:"tier"` // 1 inner circle, 2 regular, 3 periphery
	TelegramHandle string    `json:"telegram_handle,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RawNote is one immutable unit of unstructured input about a contact.
// Rows are never updated after insertion; they form the evidentiary trail
// behind every categorized fact.
type RawNote struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Content   string    `json:"content"`
	Source    string    `json:"source"` // manual, voice, telegram, file, category_edit
	CreatedAt time.Time `json:"created_at"`
}

// Fact is a single categorized statement about a contact, linked to the
// raw note it was extracted from.
type Fact struct {
	ID         string    `json:"id"`
	ContactID  string    `json:"contact_id"`
	RawNoteID  string    `json:"raw_note_id,omitempty"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditEntry records one synthesis or edit event for a contact. Append-only;
// rows go away only when the owning contact is deleted.
type AuditEntry struct {
	ID        string    `json:"id"`
	ContactID string    `json:"contact_id"`
	Engine    string    `json:"engine"` // openai, gemini, vision, local
	Source    string    `json:"source"`
	RawInput  string    `json:"raw_input,omitempty"`
	Payload   string    `json:"payload"` // JSON: before/after snapshots or categorized_updates
	CreatedAt time.Time `json:"created_at"`
}

// AuditPayload is the structured form of AuditEntry.Payload.
type AuditPayload struct {
	Before             map[string][]string `json:"before,omitempty"`
	After              map[string][]string `json:"after,omitempty"`
	CategorizedUpdates []CategorizedUpdate `json:"categorized_updates,omitempty"`
}

// CategorizedUpdate is one category's worth of proposed or applied facts.
type CategorizedUpdate struct {
	Category string   `json:"category"`
	Details  []string `json:"details"`
}

// Tag is a user-defined label attachable to contacts.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Relationship is a directed, labelled edge between two contacts.
type Relationship struct {
	ID              string `json:"id"`
	SourceContactID string `json:"source_contact_id"`
	TargetContactID string `json:"target_contact_id"`
	Label           string `json:"label,omitempty"`
}

// Job is one unit of background work (note embedding).
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
