package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/kithhq/kith/internal/merge"
	"github.com/kithhq/kith/internal/provider"
	"github.com/kithhq/kith/internal/retrieval"
	"github.com/kithhq/kith/internal/storage"
	"github.com/kithhq/kith/internal/synthesis"
)

// johnResponse is what the stub provider answers for the end-to-end note.
const johnResponse = `{
	"synthesized_narrative": "John has a peanut allergy and works at Acme Corp.",
	"confidence_score": 9,
	"reasoning_chain": ["both facts are stated directly"],
	"categorized_updates": [
		{"category": "health_wellness", "details": ["Allergic to peanuts"]},
		{"category": "professional_info", "details": ["Works at Acme Corp"]}
	]
}`

type stubProvider struct {
	out string
}

func (s stubProvider) Name() string { return provider.NameOpenAI }

func (s stubProvider) Generate(context.Context, string) (string, error) { return s.out, nil }

type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type testServer struct {
	deps  Deps
	store *storage.Store
	srv   *httptest.Server
}

func newTestServer(t *testing.T, providerOut string, configure func(*Deps)) *testServer {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := Deps{
		Store:     store,
		Engine:    synthesis.NewEngine([]provider.Provider{stubProvider{out: providerOut}}, logger),
		Retriever: retrieval.NewRetriever(store, stubEmbedder{}, 5, logger),
		Writer:    merge.NewWriter(store, logger),
		Logger:    logger,
	}
	if configure != nil {
		configure(&d)
	}

	srv := httptest.NewServer(Router(d))
	t.Cleanup(srv.Close)
	return &testServer{deps: d, store: store, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func (ts *testServer) createContact(t *testing.T, name string) string {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/api/contacts", map[string]any{"name": name}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating contact: %d %s", resp.StatusCode, body)
	}
	var c storage.Contact
	if err := json.Unmarshal(body, &c); err != nil {
		t.Fatalf("decoding contact: %v", err)
	}
	return c.ID
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	resp, _ := ts.do(t, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestBearerAuth(t *testing.T) {
	ts := newTestServer(t, johnResponse, func(d *Deps) { d.APIToken = "s3cret" })

	resp, _ := ts.do(t, http.MethodGet, "/api/contacts", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/contacts", nil, map[string]string{"Authorization": "Bearer wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/contacts", nil, map[string]string{"Authorization": "Bearer s3cret"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status = %d", resp.StatusCode)
	}

	// Health stays open.
	resp, _ = ts.do(t, http.MethodGet, "/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health with auth on: status = %d", resp.StatusCode)
	}
}

func TestContactCRUD(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, body := ts.do(t, http.MethodGet, "/api/contacts/"+id, nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "John") {
		t.Errorf("get: %d %s", resp.StatusCode, body)
	}

	resp, _ = ts.do(t, http.MethodPut, "/api/contacts/"+id, map[string]any{"name": "John Doe", "tier": 1}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update: status = %d", resp.StatusCode)
	}

	// Out-of-range tiers fall back to 2 on update, same as on create.
	resp, body = ts.do(t, http.MethodPut, "/api/contacts/"+id, map[string]any{"tier": 7}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update: status = %d", resp.StatusCode)
	}
	if c, err := ts.store.GetContact(id); err != nil || c.Tier != 2 {
		t.Errorf("tier = %d after out-of-range update, want 2 (err %v)", c.Tier, err)
	}

	resp, _ = ts.do(t, http.MethodDelete, "/api/contacts/"+id, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/contacts/"+id, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/contacts/"+uuid.NewString(), nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown id: status = %d", resp.StatusCode)
	}
}

// TestSynthesizeIsReadOnly pins the review gate: analyzing a note must not
// write anything until the commit call.
func TestSynthesizeIsReadOnly(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, body := ts.do(t, http.MethodPost, "/api/synthesize",
		map[string]any{"contact_id": id, "note": "John mentioned he's allergic to peanuts and works at Acme Corp"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("synthesize: %d %s", resp.StatusCode, body)
	}

	var out struct {
		Proposal synthesis.Proposal `json:"proposal"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Proposal.Updates) != 2 || out.Proposal.Engine != provider.NameOpenAI {
		t.Errorf("proposal = %+v", out.Proposal)
	}

	notes, err := ts.store.ListRawNotes(id, 10)
	if err != nil {
		t.Fatalf("listing notes: %v", err)
	}
	facts, _ := ts.store.ListFacts(id)
	audit, _ := ts.store.ListAuditEntries(id, 10)
	if len(notes)+len(facts)+len(audit) != 0 {
		t.Errorf("synthesize persisted state: notes=%d facts=%d audit=%d", len(notes), len(facts), len(audit))
	}
}

func TestSynthesizeThenCommit(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")
	note := "John mentioned he's allergic to peanuts and works at Acme Corp"

	resp, body := ts.do(t, http.MethodPost, "/api/synthesize",
		map[string]any{"contact_id": id, "note": note}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("synthesize: %d %s", resp.StatusCode, body)
	}
	var proposed struct {
		Proposal synthesis.Proposal `json:"proposal"`
	}
	if err := json.Unmarshal(body, &proposed); err != nil {
		t.Fatalf("decoding: %v", err)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/synthesize/commit", map[string]any{
		"contact_id": id,
		"note":       note,
		"engine":     proposed.Proposal.Engine,
		"updates":    proposed.Proposal.Updates,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("commit: %d %s", resp.StatusCode, body)
	}

	facts, err := ts.store.FactsByCategory(id)
	if err != nil {
		t.Fatalf("loading facts: %v", err)
	}
	if got := facts["health_wellness"]; len(got) != 1 || got[0] != "Allergic to peanuts" {
		t.Errorf("health facts = %v", facts)
	}
	if got := facts["professional_info"]; len(got) != 1 || got[0] != "Works at Acme Corp" {
		t.Errorf("professional facts = %v", facts)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/contacts/"+id+"/audit-log", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit log: %d", resp.StatusCode)
	}
	var audit struct {
		Entries []storage.AuditEntry `json:"entries"`
	}
	if err := json.Unmarshal(body, &audit); err != nil {
		t.Fatalf("decoding audit: %v", err)
	}
	if len(audit.Entries) != 1 || audit.Entries[0].Engine != provider.NameOpenAI {
		t.Errorf("audit = %+v", audit.Entries)
	}
}

func TestCommitValidation(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, _ := ts.do(t, http.MethodPost, "/api/synthesize/commit",
		map[string]any{"contact_id": id, "note": "n", "mode": "upsert",
			"updates": []map[string]any{{"category": "goals", "facts": []string{"x"}}}}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode: status = %d", resp.StatusCode)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/synthesize/commit",
		map[string]any{"contact_id": uuid.NewString(), "note": "n",
			"updates": []map[string]any{{"category": "goals", "facts": []string{"x"}}}}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown contact: status = %d", resp.StatusCode)
	}
}

func TestTranscriptImport(t *testing.T) {
	ts := newTestServer(t, johnResponse, func(d *Deps) { d.ImportToken = "import-secret" })
	id := ts.createContact(t, "John")

	resp, _ := ts.do(t, http.MethodPost, "/api/transcripts",
		map[string]any{"contact_id": id, "content": "transcript text"}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodPost, "/api/transcripts",
		map[string]any{"contact_id": id, "content": "transcript text"},
		map[string]string{"X-Import-Token": "import-secret"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import: %d %s", resp.StatusCode, body)
	}

	// Trusted path commits without review.
	notes, _ := ts.store.ListRawNotes(id, 10)
	if len(notes) != 1 || notes[0].Source != "telegram" {
		t.Errorf("notes = %+v", notes)
	}
	facts, _ := ts.store.ListFacts(id)
	if len(facts) != 2 {
		t.Errorf("facts = %+v", facts)
	}
}

func TestTranscriptImportUnconfigured(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	resp, _ := ts.do(t, http.MethodPost, "/api/transcripts",
		map[string]any{"contact_id": "x", "content": "y"},
		map[string]string{"X-Import-Token": "anything"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 when no import token is configured", resp.StatusCode)
	}
}

func TestTranscriptImportByHandle(t *testing.T) {
	ts := newTestServer(t, johnResponse, func(d *Deps) { d.ImportToken = "tok" })

	resp, body := ts.do(t, http.MethodPost, "/api/contacts",
		map[string]any{"name": "John", "telegram_handle": "@johnd"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating contact: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/transcripts",
		map[string]any{"telegram_handle": "@johnd", "content": "chat log"},
		map[string]string{"X-Import-Token": "tok"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("import by handle: %d %s", resp.StatusCode, body)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/transcripts",
		map[string]any{"telegram_handle": "@nobody", "content": "chat log"},
		map[string]string{"X-Import-Token": "tok"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown handle: status = %d", resp.StatusCode)
	}
}

func TestReplaceCategories(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	// Seed through a normal commit first.
	resp, _ := ts.do(t, http.MethodPost, "/api/synthesize/commit", map[string]any{
		"contact_id": id, "note": "seed",
		"updates": []map[string]any{{"category": "preferences", "facts": []string{"Likes coffee"}}},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seeding: status = %d", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodPut, "/api/contacts/"+id+"/categories", map[string]any{
		"categories": map[string][]string{"preferences": {"Likes tea"}},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replace: %d %s", resp.StatusCode, body)
	}

	var result merge.Result
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if got := result.Before["preferences"]; len(got) != 1 || got[0] != "Likes coffee" {
		t.Errorf("before = %v", result.Before)
	}
	if got := result.After["preferences"]; len(got) != 1 || got[0] != "Likes tea" {
		t.Errorf("after = %v", result.After)
	}

	facts, _ := ts.store.FactsByCategory(id)
	if got := facts["preferences"]; len(got) != 1 || got[0] != "Likes tea" {
		t.Errorf("facts = %v", facts)
	}
	// The edit leaves a raw note marking the rewrite.
	notes, _ := ts.store.ListRawNotes(id, 10)
	if len(notes) != 2 || notes[0].Source != "category_edit" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestFileUploadProposesWithoutCommit(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "meeting-notes.txt")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	io.WriteString(fw, "John is allergic to peanuts.\nHe works at Acme Corp.")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/contacts/"+id+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload: %d %s", resp.StatusCode, body)
	}

	var out struct {
		Text     string             `json:"text"`
		Proposal synthesis.Proposal `json:"proposal"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !strings.Contains(out.Text, "Acme Corp") || len(out.Proposal.Updates) != 2 {
		t.Errorf("out = %+v", out)
	}

	notes, _ := ts.store.ListRawNotes(id, 10)
	if len(notes) != 0 {
		t.Errorf("upload committed %d notes; review gate bypassed", len(notes))
	}
}

func TestSearchAndGraph(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	johnID := ts.createContact(t, "John")
	maryID := ts.createContact(t, "Mary")

	resp, _ := ts.do(t, http.MethodPost, "/api/relationships", map[string]any{
		"source_contact_id": johnID, "target_contact_id": maryID, "label": "married to",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("relationship: status = %d", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodGet, "/api/search?q=Mary", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), maryID) {
		t.Errorf("search: %d %s", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/graph", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("graph: status = %d", resp.StatusCode)
	}
	var graph struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	if err := json.Unmarshal(body, &graph); err != nil {
		t.Fatalf("decoding graph: %v", err)
	}
	if len(graph.Nodes) != 2 || len(graph.Edges) != 1 {
		t.Errorf("graph = %d nodes, %d edges", len(graph.Nodes), len(graph.Edges))
	}
	if graph.Edges[0]["label"] != "married to" {
		t.Errorf("edge = %v", graph.Edges[0])
	}
}

func TestTags(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, body := ts.do(t, http.MethodPost, "/api/tags", map[string]any{"name": "climbing", "color": "#00aa00"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create tag: %d %s", resp.StatusCode, body)
	}
	var tag storage.Tag
	if err := json.Unmarshal(body, &tag); err != nil {
		t.Fatalf("decoding tag: %v", err)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/contacts/"+id+"/tags/"+tag.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("tagging: status = %d", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/contacts/"+id, nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "climbing") {
		t.Errorf("contact tags: %d %s", resp.StatusCode, body)
	}

	resp, _ = ts.do(t, http.MethodDelete, "/api/contacts/"+id+"/tags/"+tag.ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("untagging: status = %d", resp.StatusCode)
	}
}

func TestCSVExportImport(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, _ := ts.do(t, http.MethodPost, "/api/synthesize/commit", map[string]any{
		"contact_id": id, "note": "n",
		"updates": []map[string]any{{"category": "preferences", "facts": []string{"Likes coffee"}}},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seeding: status = %d", resp.StatusCode)
	}

	resp, body := ts.do(t, http.MethodGet, "/api/export/csv", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export: status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	out := string(body)
	if !strings.Contains(out, "John") || !strings.Contains(out, "Likes coffee") {
		t.Errorf("export = %q", out)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "contacts.csv")
	io.WriteString(fw, "name,tier,telegram_handle\nMary,1,maryk\n,2,\nPete,0,\n")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/import/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	data, _ := io.ReadAll(r2.Body)
	r2.Body.Close()
	if r2.StatusCode != http.StatusOK {
		t.Fatalf("import: %d %s", r2.StatusCode, data)
	}
	var result map[string]int
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if result["created"] != 2 || result["skipped"] != 1 {
		t.Errorf("result = %v", result)
	}

	if _, err := ts.store.GetContactByTelegramHandle("maryk"); err != nil {
		t.Errorf("imported contact missing: %v", err)
	}
}

func TestCSVImportRejectsMalformedRow(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "contacts.csv")
	io.WriteString(fw, "name,tier\nAnn,1\n\"broken,2\n")
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/import/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d %s, want 400 for an unterminated quote", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "line 3") {
		t.Errorf("body = %s, want the offending line number", body)
	}
}

func TestFactEditAndDelete(t *testing.T) {
	ts := newTestServer(t, johnResponse, nil)
	id := ts.createContact(t, "John")

	resp, _ := ts.do(t, http.MethodPost, "/api/synthesize/commit", map[string]any{
		"contact_id": id, "note": "n",
		"updates": []map[string]any{{"category": "goals", "facts": []string{"Learn piano"}}},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seeding: status = %d", resp.StatusCode)
	}
	facts, _ := ts.store.ListFacts(id)
	if len(facts) != 1 {
		t.Fatalf("facts = %+v", facts)
	}

	resp, _ = ts.do(t, http.MethodPut, "/api/facts/"+facts[0].ID, map[string]any{"content": "Learn jazz piano"}, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("edit: status = %d", resp.StatusCode)
	}
	facts, _ = ts.store.ListFacts(id)
	if facts[0].Content != "Learn jazz piano" {
		t.Errorf("content = %q", facts[0].Content)
	}

	resp, _ = ts.do(t, http.MethodDelete, "/api/facts/"+facts[0].ID, nil, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d", resp.StatusCode)
	}
	resp, _ = ts.do(t, http.MethodDelete, "/api/facts/"+facts[0].ID, nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("double delete: status = %d", resp.StatusCode)
	}
}
