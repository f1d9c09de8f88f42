// Package merge is the only write path from a synthesis proposal into the
// contact record. Nothing upstream of it persists anything.
package merge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kithhq/kith/internal/category"
	"github.com/kithhq/kith/internal/storage"
	"github.com/kithhq/kith/internal/synthesis"
)

// Mode selects how approved facts combine with the existing record.
type Mode string

const (
	// ModeAdditive appends the approved facts and keeps everything
	// already on record.
	ModeAdditive Mode = "additive"
	// ModeReplace clears the contact's facts and writes the approved set
	// as the new record.
	ModeReplace Mode = "replace"
)

// JobEmbedNote is the background job type that embeds a committed note.
const JobEmbedNote = "embed_note"

// EmbedNotePayload is the JSON payload of a JobEmbedNote job.
type EmbedNotePayload struct {
	ContactID string `json:"contact_id"`
	RawNoteID string `json:"raw_note_id"`
}

var (
	ErrEmptyNote   = errors.New("note content is empty")
	ErrInvalidMode = errors.New("mode must be additive or replace")
	ErrNoUpdates   = errors.New("proposal carries no updates")
)

// Commit is one reviewed proposal ready to be written.
type Commit struct {
	ContactID string
	Note      string
	// Source records where the note came from: manual, voice, telegram,
	// file, or category_edit.
	Source  string
	Updates []synthesis.Update
	Engine  string
	Mode    Mode
	// Confidence is the proposal-level score recorded on each fact.
	// Zero means unreported and stores as 1.0.
	Confidence float64
}

// Result reports what a commit changed.
type Result struct {
	RawNoteID string              `json:"raw_note_id"`
	AuditID   string              `json:"audit_id"`
	Before    map[string][]string `json:"before"`
	After     map[string][]string `json:"after"`
}

// Writer validates reviewed proposals and commits them atomically.
type Writer struct {
	store  *storage.Store
	logger *slog.Logger
}

func NewWriter(store *storage.Store, logger *slog.Logger) *Writer {
	return &Writer{store: store, logger: logger}
}

// Write persists one reviewed commit: raw note, facts, and audit entry in a
// single transaction, then enqueues embedding of the new note. A failed
// enqueue is logged but does not undo the commit.
func (w *Writer) Write(ctx context.Context, c Commit) (Result, error) {
	if strings.TrimSpace(c.Note) == "" {
		return Result{}, ErrEmptyNote
	}
	switch c.Mode {
	case ModeAdditive, ModeReplace:
	case "":
		c.Mode = ModeAdditive
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	if c.Mode == ModeAdditive && len(c.Updates) == 0 {
		return Result{}, ErrNoUpdates
	}
	if c.Source == "" {
		c.Source = "manual"
	}
	if c.Engine == "" {
		c.Engine = "local"
	}

	noteID := uuid.NewString()
	facts, err := buildFacts(c.ContactID, noteID, c.Confidence, c.Updates)
	if err != nil {
		return Result{}, err
	}

	res, err := w.store.CommitSynthesis(ctx, storage.CommitParams{
		Note: storage.RawNote{
			ID:        noteID,
			ContactID: c.ContactID,
			Content:   c.Note,
			Source:    c.Source,
		},
		Facts:   facts,
		Engine:  c.Engine,
		AuditID: uuid.NewString(),
		Replace: c.Mode == ModeReplace,
	})
	if err != nil {
		return Result{}, err
	}

	w.enqueueEmbed(c.ContactID, noteID)

	w.logger.Info("synthesis committed",
		"contact_id", c.ContactID,
		"raw_note_id", noteID,
		"engine", c.Engine,
		"mode", c.Mode,
		"facts", len(facts),
	)

	return Result{
		RawNoteID: noteID,
		AuditID:   res.Audit.ID,
		Before:    res.Before,
		After:     res.After,
	}, nil
}

// buildFacts flattens proposal updates into fact rows, coercing categories
// one last time so nothing unrecognized reaches storage.
func buildFacts(contactID, noteID string, confidence float64, updates []synthesis.Update) ([]storage.Fact, error) {
	var facts []storage.Fact
	for _, u := range updates {
		c := u.Category
		if !category.Valid(c) {
			c = category.Canonical(string(c))
		}
		for _, content := range u.Facts {
			content = strings.TrimSpace(content)
			if content == "" {
				continue
			}
			facts = append(facts, storage.Fact{
				ID:         uuid.NewString(),
				ContactID:  contactID,
				RawNoteID:  noteID,
				Category:   string(c),
				Content:    content,
				Confidence: confidence,
			})
		}
	}
	return facts, nil
}

func (w *Writer) enqueueEmbed(contactID, noteID string) {
	payload, err := json.Marshal(EmbedNotePayload{ContactID: contactID, RawNoteID: noteID})
	if err != nil {
		w.logger.Warn("marshaling embed payload", "error", err)
		return
	}
	err = w.store.EnqueueJob(storage.Job{
		ID:          uuid.NewString(),
		Type:        JobEmbedNote,
		PayloadJSON: string(payload),
	})
	if err != nil {
		w.logger.Warn("enqueueing embed job", "raw_note_id", noteID, "error", err)
	}
}
