package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// NoteVector is one embedded chunk of a raw note.
type NoteVector struct {
	ID        string
	ContactID string
	RawNoteID string
	TextChunk string
	Embedding []float32
	CreatedAt time.Time
}

// encodeVector packs an embedding into a little-endian float32 blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// SaveNoteVector stores one embedded chunk.
func (s *Store) SaveNoteVector(v NoteVector) error {
	_, err := s.db.Exec(
		`INSERT INTO note_vectors (id, contact_id, raw_note_id, text_chunk, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.ContactID, v.RawNoteID, v.TextChunk, encodeVector(v.Embedding),
		v.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving note vector: %w", err)
	}
	return nil
}

// VectorsForContact loads every embedded chunk belonging to a contact.
func (s *Store) VectorsForContact(contactID string) ([]NoteVector, error) {
	rows, err := s.db.Query(
		`SELECT id, raw_note_id, text_chunk, embedding, created_at
		 FROM note_vectors WHERE contact_id = ?`, contactID)
	if err != nil {
		return nil, fmt.Errorf("loading note vectors: %w", err)
	}
	defer rows.Close()

	var out []NoteVector
	for rows.Next() {
		v := NoteVector{ContactID: contactID}
		var blob []byte
		var created string
		if err := rows.Scan(&v.ID, &v.RawNoteID, &v.TextChunk, &blob, &created); err != nil {
			return nil, fmt.Errorf("scanning note vector: %w", err)
		}
		if v.Embedding, err = decodeVector(blob); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// DeleteVectorsForNote removes all chunks embedded from one raw note, so a
// re-embed never duplicates them.
func (s *Store) DeleteVectorsForNote(rawNoteID string) error {
	_, err := s.db.Exec(`DELETE FROM note_vectors WHERE raw_note_id = ?`, rawNoteID)
	if err != nil {
		return fmt.Errorf("deleting note vectors: %w", err)
	}
	return nil
}
