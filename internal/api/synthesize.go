package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kithhq/kith/internal/category"
	"github.com/kithhq/kith/internal/extract"
	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/storage"
	"github.com/kithhq/kith/internal/synthesis"
)

// handleSynthesize runs the analysis half of the pipeline and returns the
// proposal. It writes nothing; persisting is a separate, explicit call.
func handleSynthesize(d Deps) http.HandlerFunc {
	type request struct {
		ContactID string `json:"contact_id"`
		Note      string `json:"note"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Note) == "" {
			httpError(w, http.StatusBadRequest, "note is required")
			return
		}

		contact, err := d.Store.GetContact(req.ContactID)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		proposal, bundle, err := synthesize(d, r, contact, req.Note)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"contact_id": contact.ID,
			"note":       req.Note,
			"proposal":   proposal,
			"context":    bundle,
		})
	}
}

func synthesize(d Deps, r *http.Request, contact storage.Contact, note string) (synthesis.Proposal, any, error) {
	bundle, err := d.Retriever.Retrieve(r.Context(), contact.ID, note)
	if err != nil {
		return synthesis.Proposal{}, nil, err
	}
	proposal, err := d.Engine.Synthesize(r.Context(), synthesis.Request{
		Note:        note,
		ContactName: contact.Name,
		Facts:       bundle.Facts,
		History:     bundle.HistoryText(),
	})
	if err != nil {
		return synthesis.Proposal{}, nil, err
	}
	return proposal, bundle, nil
}

// handleCommit persists a reviewed proposal. The updates arrive from the
// client exactly as the reviewer approved them, edits included.
func handleCommit(d Deps) http.HandlerFunc {
	type request struct {
		ContactID  string             `json:"contact_id"`
		Note       string             `json:"note"`
		Source     string             `json:"source"`
		Engine     string             `json:"engine"`
		Mode       string             `json:"mode"`
		Confidence float64            `json:"confidence"`
		Updates    []synthesis.Update `json:"updates"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		result, err := d.Writer.Write(r.Context(), merge.Commit{
			ContactID:  req.ContactID,
			Note:       req.Note,
			Source:     req.Source,
			Engine:     req.Engine,
			Mode:       merge.Mode(req.Mode),
			Confidence: req.Confidence,
			Updates:    req.Updates,
		})
		if err != nil {
			respondMergeError(w, d, err)
			return
		}
		respondJSON(w, http.StatusCreated, result)
	}
}

// handleTranscript is the trusted automation path: resolve the contact,
// synthesize, and commit in one call with no review step. Only callers
// holding the import token reach it.
func handleTranscript(d Deps) http.HandlerFunc {
	type request struct {
		ContactID      string `json:"contact_id"`
		TelegramHandle string `json:"telegram_handle"`
		Content        string `json:"content"`
		Source         string `json:"source"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			httpError(w, http.StatusBadRequest, "content is required")
			return
		}

		var contact storage.Contact
		var err error
		switch {
		case req.ContactID != "":
			contact, err = d.Store.GetContact(req.ContactID)
		case req.TelegramHandle != "":
			contact, err = d.Store.GetContactByTelegramHandle(strings.TrimPrefix(req.TelegramHandle, "@"))
		default:
			httpError(w, http.StatusBadRequest, "contact_id or telegram_handle is required")
			return
		}
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		proposal, _, err := synthesize(d, r, contact, req.Content)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		source := req.Source
		if source == "" {
			source = "telegram"
		}
		result, err := d.Writer.Write(r.Context(), merge.Commit{
			ContactID:  contact.ID,
			Note:       req.Content,
			Source:     source,
			Engine:     proposal.Engine,
			Mode:       merge.ModeAdditive,
			Confidence: proposal.Confidence,
			Updates:    proposal.Updates,
		})
		if errors.Is(err, merge.ErrNoUpdates) {
			// Nothing extractable; report the proposal without a commit.
			respondJSON(w, http.StatusOK, map[string]any{"proposal": proposal, "committed": false})
			return
		}
		if err != nil {
			respondMergeError(w, d, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]any{
			"proposal":  proposal,
			"committed": true,
			"result":    result,
		})
	}
}

// handleReplaceCategories rewrites the contact's fact record in place. The
// edit flows through the same transactional commit as synthesis, so the
// audit log captures before and after.
func handleReplaceCategories(d Deps) http.HandlerFunc {
	type request struct {
		Categories map[string][]string `json:"categories"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "contactID")
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Categories == nil {
			httpError(w, http.StatusBadRequest, "categories is required")
			return
		}

		updates := make([]synthesis.Update, 0, len(req.Categories))
		for name, facts := range req.Categories {
			updates = append(updates, synthesis.Update{
				Category: category.Canonical(name),
				Facts:    facts,
			})
		}

		result, err := d.Writer.Write(r.Context(), merge.Commit{
			ContactID: id,
			Note:      "Manual category edit",
			Source:    "category_edit",
			Engine:    "local",
			Mode:      merge.ModeReplace,
			Updates:   updates,
		})
		if err != nil {
			respondMergeError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// handleFileUpload extracts text from an uploaded document and runs it
// through synthesis. Like handleSynthesize it commits nothing; the caller
// reviews the proposal first.
func handleFileUpload(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contact, err := d.Store.GetContact(chi.URLParam(r, "contactID"))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()

		text, err := extract.Text(header.Filename, file)
		if err != nil {
			if errors.Is(err, extract.ErrUnsupportedType) {
				httpError(w, http.StatusUnsupportedMediaType, err.Error())
				return
			}
			httpError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		proposal, _, err := synthesize(d, r, contact, text)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"contact_id": contact.ID,
			"filename":   header.Filename,
			"text":       text,
			"proposal":   proposal,
		})
	}
}

func respondMergeError(w http.ResponseWriter, d Deps, err error) {
	switch {
	case errors.Is(err, merge.ErrEmptyNote),
		errors.Is(err, merge.ErrInvalidMode),
		errors.Is(err, merge.ErrNoUpdates):
		httpError(w, http.StatusBadRequest, err.Error())
	default:
		respondStoreError(w, d, err)
	}
}
