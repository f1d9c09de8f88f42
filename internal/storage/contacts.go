package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// CreateContact inserts a new contact. Tier defaults to 2 when out of range.
func (s *Store) CreateContact(c Contact) error {
	if c.Tier < 1 || c.Tier > 3 {
		c.Tier = 2
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(`
		INSERT INTO contacts (id, name, tier, telegram_handle, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Tier, c.TelegramHandle, now, now,
	)
	return err
}

func scanContact(row *sql.Row) (Contact, error) {
	var c Contact
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.Name, &c.Tier, &c.TelegramHandle, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Contact{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Contact{}, err
	}
	return c, nil
}

// GetContact returns a single contact by ID.
func (s *Store) GetContact(id string) (Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, name, tier, telegram_handle, created_at, updated_at
		FROM contacts WHERE id = ?`, id)
	return scanContact(row)
}

// GetContactByTelegramHandle looks a contact up by its telegram handle.
// Used by the trusted transcript-import path.
func (s *Store) GetContactByTelegramHandle(handle string) (Contact, error) {
	row := s.db.QueryRow(`
		SELECT id, name, tier, telegram_handle, created_at, updated_at
		FROM contacts WHERE telegram_handle = ?`, handle)
	return scanContact(row)
}

// ListContacts returns contacts ordered by name.
func (s *Store) ListContacts(limit, offset int) ([]Contact, error) {
	rows, err := s.db.Query(`
		SELECT id, name, tier, telegram_handle, created_at, updated_at
		FROM contacts ORDER BY name ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Contact
	for rows.Next() {
		var c Contact
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Tier, &c.TelegramHandle, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpdateContact patches name, tier, and telegram handle. Tier defaults to 2
// when out of range, same as on create.
func (s *Store) UpdateContact(c Contact) error {
	if c.Tier < 1 || c.Tier > 3 {
		c.Tier = 2
	}
	res, err := s.db.Exec(`
		UPDATE contacts SET name = ?, tier = ?, telegram_handle = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, c.Tier, c.TelegramHandle, time.Now().UTC().Format(time.RFC3339), c.ID,
	)
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

// DeleteContact removes a contact. Notes, facts, audit entries, tag links,
// relationships, and vectors cascade via foreign keys.
func (s *Store) DeleteContact(id string) error {
	res, err := s.db.Exec(`DELETE FROM contacts WHERE id = ?`, id)
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

// --- Tags ---

func (s *Store) CreateTag(t Tag) error {
	_, err := s.db.Exec(`INSERT INTO tags (id, name, color) VALUES (?, ?, ?)`, t.ID, t.Name, t.Color)
	return err
}

func (s *Store) ListTags() ([]Tag, error) {
	rows, err := s.db.Query(`SELECT id, name, color FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

func (s *Store) DeleteTag(id string) error {
	res, err := s.db.Exec(`DELETE FROM tags WHERE id = ?`, id)
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

// TagContact attaches a tag to a contact. Idempotent.
func (s *Store) TagContact(contactID, tagID string) error {
	_, err := s.db.Exec(`
		INSERT INTO contact_tags (contact_id, tag_id) VALUES (?, ?)
		ON CONFLICT(contact_id, tag_id) DO NOTHING`, contactID, tagID)
	return err
}

func (s *Store) UntagContact(contactID, tagID string) error {
	_, err := s.db.Exec(`DELETE FROM contact_tags WHERE contact_id = ? AND tag_id = ?`, contactID, tagID)
	return err
}

// TagsForContact returns the tags attached to a contact, ordered by name.
func (s *Store) TagsForContact(contactID string) ([]Tag, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.name, t.color FROM tags t
		JOIN contact_tags ct ON ct.tag_id = t.id
		WHERE ct.contact_id = ? ORDER BY t.name ASC`, contactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// --- Relationships ---

// SaveRelationship upserts a directed edge between two contacts.
func (s *Store) SaveRelationship(r Relationship) error {
	_, err := s.db.Exec(`
		INSERT INTO contact_relationships (id, source_contact_id, target_contact_id, label)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_contact_id, target_contact_id) DO UPDATE SET label = excluded.label`,
		r.ID, r.SourceContactID, r.TargetContactID, r.Label)
	return err
}

func (s *Store) DeleteRelationship(id string) error {
	res, err := s.db.Exec(`DELETE FROM contact_relationships WHERE id = ?`, id)
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

// ListRelationships returns all relationship edges.
func (s *Store) ListRelationships() ([]Relationship, error) {
	rows, err := s.db.Query(`
		SELECT id, source_contact_id, target_contact_id, label
		FROM contact_relationships`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.ID, &r.SourceContactID, &r.TargetContactID, &r.Label); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchContacts matches contacts whose name, facts, or raw notes contain
// the query string (case-insensitive LIKE).
func (s *Store) SearchContacts(query string, limit int) ([]Contact, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT DISTINCT c.id, c.name, c.tier, c.telegram_handle, c.created_at, c.updated_at
		FROM contacts c
		LEFT JOIN categorized_facts f ON f.contact_id = c.id
		LEFT JOIN raw_notes n ON n.contact_id = c.id
		WHERE c.name LIKE ? OR f.content LIKE ? OR n.content LIKE ?
		ORDER BY c.name ASC LIMIT ?`,
		pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Contact
	for rows.Next() {
		var c Contact
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Tier, &c.TelegramHandle, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
