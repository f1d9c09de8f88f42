package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kithhq/kith/internal/storage"
)

func handleCreateContact(d Deps) http.HandlerFunc {
	type request struct {
		Name           string `json:"name"`
		Tier           int    `json:"tier"`
		TelegramHandle string `json:"telegram_handle"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "name is required")
			return
		}

		c := storage.Contact{
			ID:             uuid.NewString(),
			Name:           strings.TrimSpace(req.Name),
			Tier:           req.Tier,
			TelegramHandle: strings.TrimPrefix(req.TelegramHandle, "@"),
		}
		if err := d.Store.CreateContact(c); err != nil {
			respondStoreError(w, d, err)
			return
		}
		created, err := d.Store.GetContact(c.ID)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusCreated, created)
	}
}

func handleGetContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := d.Store.GetContact(chi.URLParam(r, "contactID"))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		tags, err := d.Store.TagsForContact(c.ID)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"contact": c,
			"tags":    tags,
		})
	}
}

func handleListContacts(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 100)
		offset := queryInt(r, "offset", 0)
		contacts, err := d.Store.ListContacts(limit, offset)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
	}
}

func handleUpdateContact(d Deps) http.HandlerFunc {
	type request struct {
		Name           string `json:"name"`
		Tier           int    `json:"tier"`
		TelegramHandle string `json:"telegram_handle"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "contactID")
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}

		c, err := d.Store.GetContact(id)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		if strings.TrimSpace(req.Name) != "" {
			c.Name = strings.TrimSpace(req.Name)
		}
		if req.Tier != 0 {
			c.Tier = req.Tier
		}
		if req.TelegramHandle != "" {
			c.TelegramHandle = strings.TrimPrefix(req.TelegramHandle, "@")
		}
		if err := d.Store.UpdateContact(c); err != nil {
			respondStoreError(w, d, err)
			return
		}
		updated, err := d.Store.GetContact(id)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, updated)
	}
}

func handleDeleteContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DeleteContact(chi.URLParam(r, "contactID")); err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListFacts(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "contactID")
		if _, err := d.Store.GetContact(id); err != nil {
			respondStoreError(w, d, err)
			return
		}
		if r.URL.Query().Get("grouped") == "true" {
			grouped, err := d.Store.FactsByCategory(id)
			if err != nil {
				respondStoreError(w, d, err)
				return
			}
			respondJSON(w, http.StatusOK, map[string]any{"categories": grouped})
			return
		}
		facts, err := d.Store.ListFacts(id)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"facts": facts})
	}
}

func handleUpdateFact(d Deps) http.HandlerFunc {
	type request struct {
		Content string `json:"content"`
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
		if err := d.Store.UpdateFactContent(chi.URLParam(r, "factID"), strings.TrimSpace(req.Content)); err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteFact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DeleteFact(chi.URLParam(r, "factID")); err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListNotes(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "contactID")
		if _, err := d.Store.GetContact(id); err != nil {
			respondStoreError(w, d, err)
			return
		}
		notes, err := d.Store.ListRawNotes(id, queryInt(r, "limit", 50))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"notes": notes})
	}
}

func handleAuditLog(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "contactID")
		if _, err := d.Store.GetContact(id); err != nil {
			respondStoreError(w, d, err)
			return
		}
		entries, err := d.Store.ListAuditEntries(id, queryInt(r, "limit", 50))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"entries": entries})
	}
}

func handleListTags(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := d.Store.ListTags()
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"tags": tags})
	}
}

func handleCreateTag(d Deps) http.HandlerFunc {
	type request struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			httpError(w, http.StatusBadRequest, "name is required")
			return
		}
		t := storage.Tag{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name), Color: req.Color}
		if err := d.Store.CreateTag(t); err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusCreated, t)
	}
}

func handleDeleteTag(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DeleteTag(chi.URLParam(r, "tagID")); err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleTagContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Store.TagContact(chi.URLParam(r, "contactID"), chi.URLParam(r, "tagID"))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUntagContact(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Store.UntagContact(chi.URLParam(r, "contactID"), chi.URLParam(r, "tagID"))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCreateRelationship(d Deps) http.HandlerFunc {
	type request struct {
		SourceContactID string `json:"source_contact_id"`
		TargetContactID string `json:"target_contact_id"`
		Label           string `json:"label"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.SourceContactID == "" || req.TargetContactID == "" {
			httpError(w, http.StatusBadRequest, "source_contact_id and target_contact_id are required")
			return
		}
		if req.SourceContactID == req.TargetContactID {
			httpError(w, http.StatusBadRequest, "a contact cannot relate to itself")
			return
		}
		for _, id := range []string{req.SourceContactID, req.TargetContactID} {
			if _, err := d.Store.GetContact(id); err != nil {
				respondStoreError(w, d, err)
				return
			}
		}

		rel := storage.Relationship{
			ID:              uuid.NewString(),
			SourceContactID: req.SourceContactID,
			TargetContactID: req.TargetContactID,
			Label:           req.Label,
		}
		if err := d.Store.SaveRelationship(rel); err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusCreated, rel)
	}
}

func handleDeleteRelationship(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Store.DeleteRelationship(chi.URLParam(r, "relationshipID")); err != nil {
			respondStoreError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleGraph returns the full relationship graph: every contact as a node,
// every relationship as a directed edge.
func handleGraph(d Deps) http.HandlerFunc {
	type node struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Tier int    `json:"tier"`
	}
	type edge struct {
		Source string `json:"source"`
		Target string `json:"target"`
		Label  string `json:"label,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := d.Store.ListContacts(10000, 0)
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		rels, err := d.Store.ListRelationships()
		if err != nil {
			respondStoreError(w, d, err)
			return
		}

		nodes := make([]node, 0, len(contacts))
		for _, c := range contacts {
			nodes = append(nodes, node{ID: c.ID, Name: c.Name, Tier: c.Tier})
		}
		edges := make([]edge, 0, len(rels))
		for _, rel := range rels {
			edges = append(edges, edge{Source: rel.SourceContactID, Target: rel.TargetContactID, Label: rel.Label})
		}
		respondJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "edges": edges})
	}
}

func handleSearch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "q is required")
			return
		}
		contacts, err := d.Store.SearchContacts(q, queryInt(r, "limit", 25))
		if err != nil {
			respondStoreError(w, d, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
