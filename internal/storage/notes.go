package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ListRawNotes returns a contact's raw notes, newest first.
func (s *Store) ListRawNotes(contactID string, limit int) ([]RawNote, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, content, source, created_at
		FROM raw_notes WHERE contact_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RawNote
	for rows.Next() {
		var n RawNote
		var createdAt string
		if err := rows.Scan(&n.ID, &n.ContactID, &n.Content, &n.Source, &createdAt); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, rows.Err()
}

// GetRawNote returns a single raw note by ID.
func (s *Store) GetRawNote(id string) (RawNote, error) {
	var n RawNote
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, contact_id, content, source, created_at
		FROM raw_notes WHERE id = ?`, id,
	).Scan(&n.ID, &n.ContactID, &n.Content, &n.Source, &createdAt)
	if err == sql.ErrNoRows {
		return RawNote{}, ErrNotFound
	}
	if err != nil {
		return RawNote{}, err
	}
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return RawNote{}, err
	}
	return n, nil
}

// ListFacts returns a contact's facts ordered by category, oldest first
// within a category.
func (s *Store) ListFacts(contactID string) ([]Fact, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, COALESCE(raw_note_id, ''), category, content, confidence, created_at
		FROM categorized_facts WHERE contact_id = ?
		ORDER BY category ASC, created_at ASC, rowid ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Fact
	for rows.Next() {
		var f Fact
		var createdAt string
		if err := rows.Scan(&f.ID, &f.ContactID, &f.RawNoteID, &f.Category, &f.Content, &f.Confidence, &createdAt); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// FactsByCategory groups a contact's fact contents by category name.
func (s *Store) FactsByCategory(contactID string) (map[string][]string, error) {
	facts, err := s.ListFacts(contactID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]string)
	for _, f := range facts {
		grouped[f.Category] = append(grouped[f.Category], f.Content)
	}
	return grouped, nil
}

// UpdateFactContent replaces a fact's text, preserving its category and
// contact linkage.
func (s *Store) UpdateFactContent(id, content string) error {
	res, err := s.db.Exec(`UPDATE categorized_facts SET content = ? WHERE id = ?`, content, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFact removes a single fact. Explicit user action only.
func (s *Store) DeleteFact(id string) error {
	res, err := s.db.Exec(`DELETE FROM categorized_facts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CommitParams describes one atomic synthesis commit: a raw note, the facts
// extracted from it, and the audit entry tying them together.
type CommitParams struct {
	Note    RawNote // ID, ContactID, Content, Source set by the caller
	Facts   []Fact  // ID, Category, Content, Confidence set by the caller
	Engine  string
	AuditID string
	Replace bool // replace-in-place: clear the contact's facts before inserting
}

// CommitResult reports the before/after fact snapshots of a commit.
type CommitResult struct {
	Before map[string][]string
	After  map[string][]string
	Audit  AuditEntry
}

// CommitSynthesis persists a raw note, its categorized facts, and an audit
// entry in a single transaction. Either everything is committed or nothing
// is; no partial audit state survives a failure.
func (s *Store) CommitSynthesis(ctx context.Context, p CommitParams) (CommitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts WHERE id = ?`, p.Note.ContactID).Scan(&exists); err != nil {
		return CommitResult{}, fmt.Errorf("checking contact: %w", err)
	}
	if exists == 0 {
		return CommitResult{}, ErrNotFound
	}

	before, err := snapshotFacts(ctx, tx, p.Note.ContactID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("snapshotting before state: %w", err)
	}

	now := time.Now().UTC()
	createdAt := now.Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO raw_notes (id, contact_id, content, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Note.ID, p.Note.ContactID, p.Note.Content, p.Note.Source, createdAt,
	); err != nil {
		return CommitResult{}, fmt.Errorf("inserting raw note: %w", err)
	}

	if p.Replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categorized_facts WHERE contact_id = ?`, p.Note.ContactID); err != nil {
			return CommitResult{}, fmt.Errorf("clearing facts for replace: %w", err)
		}
	}

	for _, f := range p.Facts {
		confidence := f.Confidence
		if confidence == 0 {
			confidence = 1.0
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO categorized_facts (id, contact_id, raw_note_id, category, content, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID, p.Note.ContactID, p.Note.ID, f.Category, f.Content, confidence, createdAt,
		); err != nil {
			return CommitResult{}, fmt.Errorf("inserting fact %q: %w", f.Content, err)
		}
	}

	after, err := snapshotFacts(ctx, tx, p.Note.ContactID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("snapshotting after state: %w", err)
	}

	payload, err := json.Marshal(AuditPayload{Before: before, After: after})
	if err != nil {
		return CommitResult{}, fmt.Errorf("marshaling audit payload: %w", err)
	}

	audit := AuditEntry{
		ID:        p.AuditID,
		ContactID: p.Note.ContactID,
		Engine:    p.Engine,
		Source:    p.Note.Source,
		RawInput:  p.Note.Content,
		Payload:   string(payload),
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, contact_id, engine, source, raw_input, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		audit.ID, audit.ContactID, audit.Engine, audit.Source, audit.RawInput, audit.Payload, createdAt,
	); err != nil {
		return CommitResult{}, fmt.Errorf("inserting audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return CommitResult{}, fmt.Errorf("committing synthesis: %w", err)
	}

	return CommitResult{Before: before, After: after, Audit: audit}, nil
}

// snapshotFacts reads the contact's facts grouped by category within tx.
func snapshotFacts(ctx context.Context, tx *sql.Tx, contactID string) (map[string][]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT category, content FROM categorized_facts
		WHERE contact_id = ? ORDER BY category ASC, created_at ASC, rowid ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := make(map[string][]string)
	for rows.Next() {
		var category, content string
		if err := rows.Scan(&category, &content); err != nil {
			return nil, err
		}
		snapshot[category] = append(snapshot[category], content)
	}
	return snapshot, rows.Err()
}

// ListAuditEntries returns a contact's audit trail, newest first. Entries
// appear in commit order within equal timestamps.
func (s *Store) ListAuditEntries(contactID string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, contact_id, engine, source, raw_input, payload, created_at
		FROM audit_log WHERE contact_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.ContactID, &e.Engine, &e.Source, &e.RawInput, &e.Payload, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
