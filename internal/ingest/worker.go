// Package ingest runs the background worker that embeds committed notes
// into the vector index.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/retrieval"
	"github.com/kithhq/kith/internal/storage"
)

const defaultPollInterval = 5 * time.Second

// Embedder batches chunk embeddings for one note.
type Embedder interface {
	EmbedAll(ctx context.Context, chunks []string) ([][]float32, error)
}

// Worker polls the job queue and embeds raw notes chunk by chunk.
type Worker struct {
	store    *storage.Store
	embedder Embedder
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(store *storage.Store, embedder Embedder, logger *slog.Logger) *Worker {
	return &Worker{
		store:    store,
		embedder: embedder,
		interval: defaultPollInterval,
		logger:   logger,
	}
}

// SetPollInterval overrides how often the worker checks for due jobs.
func (w *Worker) SetPollInterval(d time.Duration) { w.interval = d }

// Run drains due jobs, then sleeps until the next poll. It returns when the
// context is canceled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("embed worker started", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.Drain(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("embed worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Drain processes every currently due embed job.
func (w *Worker) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.processOne(ctx)
		if err != nil {
			w.logger.Error("processing embed job", "error", err)
			return
		}
		if !processed {
			return
		}
	}
}

func (w *Worker) processOne(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(merge.JobEmbedNote)
	if err != nil {
		return false, fmt.Errorf("claiming embed job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.embed(ctx, job.PayloadJSON); err != nil {
		w.logger.Warn("embedding note failed", "job_id", job.ID, "attempt", job.Attempts+1, "error", err)
		if ferr := w.store.FailJob(job.ID, err.Error()); ferr != nil {
			return true, fmt.Errorf("recording embed job failure: %w", ferr)
		}
		return true, nil
	}
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing embed job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) embed(ctx context.Context, payloadJSON string) error {
	var payload merge.EmbedNotePayload
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	note, err := w.store.GetRawNote(payload.RawNoteID)
	if errors.Is(err, storage.ErrNotFound) {
		// The note was deleted before the job ran; nothing to embed.
		return nil
	}
	if err != nil {
		return err
	}

	chunks := retrieval.SplitChunks(note.Content)
	if len(chunks) == 0 {
		return nil
	}

	vectors, err := w.embedder.EmbedAll(ctx, chunks)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	// Replace any chunks from an earlier attempt at this note.
	if err := w.store.DeleteVectorsForNote(note.ID); err != nil {
		return err
	}
	now := time.Now().UTC()
	for i, chunk := range chunks {
		err := w.store.SaveNoteVector(storage.NoteVector{
			ID:        uuid.NewString(),
			ContactID: payload.ContactID,
			RawNoteID: note.ID,
			TextChunk: chunk,
			Embedding: vectors[i],
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
	}

	w.logger.Debug("note embedded", "raw_note_id", note.ID, "chunks", len(chunks))
	return nil
}
