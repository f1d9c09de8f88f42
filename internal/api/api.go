// Package api exposes the HTTP surface: contact management, note
// synthesis with its human review gate, and the import paths.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/retrieval"
	"github.com/kithhq/kith/internal/storage"
	"github.com/kithhq/kith/internal/synthesis"
)

// Deps carries everything the handlers close over.
type Deps struct {
	Store     *storage.Store
	Engine    *synthesis.Engine
	Retriever *retrieval.Retriever
	Writer    *merge.Writer

	// APIToken guards the API; empty disables auth.
	APIToken string
	// ImportToken authorizes the trusted transcript import path.
	ImportToken string

	Logger *slog.Logger
}

// Router builds the HTTP handler.
func Router(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(d))

	// Transcript import authenticates with its own shared token so
	// automation never holds the API token.
	r.With(importAuth(d.ImportToken)).Post("/api/transcripts", handleTranscript(d))

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(d.APIToken))

		r.Post("/synthesize", handleSynthesize(d))
		r.Post("/synthesize/commit", handleCommit(d))

		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", handleListContacts(d))
			r.Post("/", handleCreateContact(d))
			r.Route("/{contactID}", func(r chi.Router) {
				r.Get("/", handleGetContact(d))
				r.Put("/", handleUpdateContact(d))
				r.Delete("/", handleDeleteContact(d))
				r.Get("/facts", handleListFacts(d))
				r.Put("/categories", handleReplaceCategories(d))
				r.Get("/notes", handleListNotes(d))
				r.Get("/audit-log", handleAuditLog(d))
				r.Post("/files", handleFileUpload(d))
				r.Post("/tags/{tagID}", handleTagContact(d))
				r.Delete("/tags/{tagID}", handleUntagContact(d))
			})
		})

		r.Put("/facts/{factID}", handleUpdateFact(d))
		r.Delete("/facts/{factID}", handleDeleteFact(d))

		r.Get("/tags", handleListTags(d))
		r.Post("/tags", handleCreateTag(d))
		r.Delete("/tags/{tagID}", handleDeleteTag(d))

		r.Post("/relationships", handleCreateRelationship(d))
		r.Delete("/relationships/{relationshipID}", handleDeleteRelationship(d))
		r.Get("/graph", handleGraph(d))

		r.Get("/search", handleSearch(d))
		r.Get("/export/csv", handleExportCSV(d))
		r.Post("/import/csv", handleImportCSV(d))
	})

	return r
}

func handleHealth(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondStoreError maps storage errors onto HTTP statuses.
func respondStoreError(w http.ResponseWriter, d Deps, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	d.Logger.Error("request failed", "error", err)
	httpError(w, http.StatusInternalServerError, "internal error")
}

// decodeJSON rejects bodies over 1 MB and unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
