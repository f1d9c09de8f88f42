package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreateContact(t *testing.T, s *Store, id, name string) {
	t.Helper()
	if err := s.CreateContact(Contact{ID: id, Name: name, Tier: 2}); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
}

func TestContactCRUD(t *testing.T) {
	s := openTestStore(t)

	mustCreateContact(t, s, "c1", "John Smith")

	c, err := s.GetContact("c1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Name != "John Smith" || c.Tier != 2 {
		t.Errorf("got %+v, want name John Smith, tier 2", c)
	}

	c.Tier = 1
	c.TelegramHandle = "@jsmith"
	if err := s.UpdateContact(c); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}

	got, err := s.GetContactByTelegramHandle("@jsmith")
	if err != nil {
		t.Fatalf("GetContactByTelegramHandle: %v", err)
	}
	if got.ID != "c1" {
		t.Errorf("handle lookup returned %q, want c1", got.ID)
	}

	if err := s.DeleteContact("c1"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}
	if _, err := s.GetContact("c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetContact after delete: err = %v, want ErrNotFound", err)
	}
}

func TestContactTierDefaulting(t *testing.T) {
	s := openTestStore(t)
	if err := s.CreateContact(Contact{ID: "c1", Name: "Ann", Tier: 9}); err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	c, err := s.GetContact("c1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Tier != 2 {
		t.Errorf("tier = %d, want default 2", c.Tier)
	}

	c.Tier = 7
	if err := s.UpdateContact(c); err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	c, err = s.GetContact("c1")
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if c.Tier != 2 {
		t.Errorf("tier = %d after update, want default 2", c.Tier)
	}
}

func commit(t *testing.T, s *Store, p CommitParams) CommitResult {
	t.Helper()
	res, err := s.CommitSynthesis(context.Background(), p)
	if err != nil {
		t.Fatalf("CommitSynthesis: %v", err)
	}
	return res
}

func TestCommitSynthesis_AuditRoundTrip(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "John Smith")

	res := commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c1", Content: "met John at a conference", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "relationship_context", Content: "met at a conference"}},
		Engine:  "openai",
		AuditID: "a1",
	})

	if len(res.Before) != 0 {
		t.Errorf("before snapshot = %v, want empty", res.Before)
	}
	want := []string{"met at a conference"}
	if got := res.After["relationship_context"]; len(got) != 1 || got[0] != want[0] {
		t.Errorf("after snapshot = %v, want %v", res.After, want)
	}

	entries, err := s.ListAuditEntries("c1", 10)
	if err != nil {
		t.Fatalf("ListAuditEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d audit entries, want 1", len(entries))
	}
	if entries[0].Engine != "openai" {
		t.Errorf("engine = %q, want openai", entries[0].Engine)
	}
	if entries[0].RawInput != "met John at a conference" {
		t.Errorf("raw input = %q", entries[0].RawInput)
	}

	var payload AuditPayload
	if err := json.Unmarshal([]byte(entries[0].Payload), &payload); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if len(payload.Before["relationship_context"]) != 0 {
		t.Errorf("payload before = %v, want empty for category", payload.Before)
	}
	if got := payload.After["relationship_context"]; len(got) != 1 || got[0] != "met at a conference" {
		t.Errorf("payload after = %v", payload.After)
	}
}

func TestCommitSynthesis_AdditiveMergeKeepsExistingFacts(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")

	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c1", Content: "likes coffee", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "preferences", Content: "likes coffee"}},
		Engine:  "openai",
		AuditID: "a1",
	})
	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n2", ContactID: "c1", Content: "likes tea", Source: "manual"},
		Facts:   []Fact{{ID: "f2", Category: "preferences", Content: "likes tea"}},
		Engine:  "openai",
		AuditID: "a2",
	})

	grouped, err := s.FactsByCategory("c1")
	if err != nil {
		t.Fatalf("FactsByCategory: %v", err)
	}
	prefs := grouped["preferences"]
	if len(prefs) != 2 {
		t.Fatalf("preferences = %v, want both facts present", prefs)
	}
	if prefs[0] != "likes coffee" || prefs[1] != "likes tea" {
		t.Errorf("preferences = %v, want [likes coffee, likes tea]", prefs)
	}
}

func TestCommitSynthesis_ReplaceMode(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")

	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c1", Content: "likes coffee", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "preferences", Content: "likes coffee"}},
		Engine:  "openai",
		AuditID: "a1",
	})
	res := commit(t, s, CommitParams{
		Note:    RawNote{ID: "n2", ContactID: "c1", Content: "Edited 1 category via UI", Source: "category_edit"},
		Facts:   []Fact{{ID: "f2", Category: "preferences", Content: "likes tea"}},
		Engine:  "local",
		AuditID: "a2",
		Replace: true,
	})

	if got := res.Before["preferences"]; len(got) != 1 || got[0] != "likes coffee" {
		t.Errorf("before = %v, want [likes coffee]", res.Before)
	}
	grouped, err := s.FactsByCategory("c1")
	if err != nil {
		t.Fatalf("FactsByCategory: %v", err)
	}
	if got := grouped["preferences"]; len(got) != 1 || got[0] != "likes tea" {
		t.Errorf("after replace, preferences = %v, want [likes tea]", got)
	}
}

func TestCommitSynthesis_UnknownContactLeavesNoState(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CommitSynthesis(context.Background(), CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "ghost", Content: "note", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "preferences", Content: "x"}},
		Engine:  "openai",
		AuditID: "a1",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	var notes, facts, audits int
	s.db.QueryRow(`SELECT COUNT(*) FROM raw_notes`).Scan(&notes)
	s.db.QueryRow(`SELECT COUNT(*) FROM categorized_facts`).Scan(&facts)
	s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&audits)
	if notes != 0 || facts != 0 || audits != 0 {
		t.Errorf("partial state after failed commit: notes=%d facts=%d audits=%d", notes, facts, audits)
	}
}

func TestCommitSynthesis_DuplicateFactIDRollsBack(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")

	// Second fact reuses the first fact's primary key; the whole commit must
	// roll back, including the raw note inserted before the failure.
	_, err := s.CommitSynthesis(context.Background(), CommitParams{
		Note: RawNote{ID: "n1", ContactID: "c1", Content: "note", Source: "manual"},
		Facts: []Fact{
			{ID: "f1", Category: "preferences", Content: "likes coffee"},
			{ID: "f1", Category: "goals", Content: "wants to run a marathon"},
		},
		Engine:  "openai",
		AuditID: "a1",
	})
	if err == nil {
		t.Fatal("expected commit to fail on duplicate fact ID")
	}

	var notes, facts, audits int
	s.db.QueryRow(`SELECT COUNT(*) FROM raw_notes`).Scan(&notes)
	s.db.QueryRow(`SELECT COUNT(*) FROM categorized_facts`).Scan(&facts)
	s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&audits)
	if notes != 0 || facts != 0 || audits != 0 {
		t.Errorf("partial state after failed commit: notes=%d facts=%d audits=%d", notes, facts, audits)
	}
}

func TestDeleteContactCascades(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")
	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c1", Content: "likes coffee", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "preferences", Content: "likes coffee"}},
		Engine:  "openai",
		AuditID: "a1",
	})

	if err := s.DeleteContact("c1"); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}

	var notes, facts, audits int
	s.db.QueryRow(`SELECT COUNT(*) FROM raw_notes`).Scan(&notes)
	s.db.QueryRow(`SELECT COUNT(*) FROM categorized_facts`).Scan(&facts)
	s.db.QueryRow(`SELECT COUNT(*) FROM audit_log`).Scan(&audits)
	if notes != 0 || facts != 0 || audits != 0 {
		t.Errorf("cascade delete left rows: notes=%d facts=%d audits=%d", notes, facts, audits)
	}
}

func TestFactEditAndDelete(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")
	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c1", Content: "likes coffee", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "preferences", Content: "likes coffee"}},
		Engine:  "openai",
		AuditID: "a1",
	})

	if err := s.UpdateFactContent("f1", "likes espresso"); err != nil {
		t.Fatalf("UpdateFactContent: %v", err)
	}
	facts, err := s.ListFacts("c1")
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if facts[0].Content != "likes espresso" || facts[0].Category != "preferences" {
		t.Errorf("edited fact = %+v, want new content, same category", facts[0])
	}

	if err := s.DeleteFact("f1"); err != nil {
		t.Fatalf("DeleteFact: %v", err)
	}
	if err := s.DeleteFact("f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestSearchContacts(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "John Smith")
	mustCreateContact(t, s, "c2", "Ann Jones")
	commit(t, s, CommitParams{
		Note:    RawNote{ID: "n1", ContactID: "c2", Content: "works at Acme Corp", Source: "manual"},
		Facts:   []Fact{{ID: "f1", Category: "professional_info", Content: "works at Acme Corp"}},
		Engine:  "openai",
		AuditID: "a1",
	})

	byName, err := s.SearchContacts("smith", 10)
	if err != nil {
		t.Fatalf("SearchContacts: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "c1" {
		t.Errorf("search by name = %v, want [c1]", byName)
	}

	byFact, err := s.SearchContacts("Acme", 10)
	if err != nil {
		t.Fatalf("SearchContacts: %v", err)
	}
	if len(byFact) != 1 || byFact[0].ID != "c2" {
		t.Errorf("search by fact = %v, want [c2]", byFact)
	}
}

func TestTagsAndRelationships(t *testing.T) {
	s := openTestStore(t)
	mustCreateContact(t, s, "c1", "Ann")
	mustCreateContact(t, s, "c2", "Ben")

	if err := s.CreateTag(Tag{ID: "t1", Name: "climbing", Color: "#ff0000"}); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}
	if err := s.TagContact("c1", "t1"); err != nil {
		t.Fatalf("TagContact: %v", err)
	}
	// Attaching twice is a no-op.
	if err := s.TagContact("c1", "t1"); err != nil {
		t.Fatalf("TagContact twice: %v", err)
	}
	tags, err := s.TagsForContact("c1")
	if err != nil {
		t.Fatalf("TagsForContact: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "climbing" {
		t.Errorf("tags = %v", tags)
	}

	if err := s.SaveRelationship(Relationship{ID: "r1", SourceContactID: "c1", TargetContactID: "c2", Label: "colleague"}); err != nil {
		t.Fatalf("SaveRelationship: %v", err)
	}
	// Upsert replaces the label for the same edge.
	if err := s.SaveRelationship(Relationship{ID: "r1", SourceContactID: "c1", TargetContactID: "c2", Label: "friend"}); err != nil {
		t.Fatalf("SaveRelationship upsert: %v", err)
	}
	rels, err := s.ListRelationships()
	if err != nil {
		t.Fatalf("ListRelationships: %v", err)
	}
	if len(rels) != 1 || rels[0].Label != "friend" {
		t.Errorf("relationships = %v", rels)
	}
}

func TestJobQueue(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnqueueJob(Job{ID: "j1", Type: "embed_note", PayloadJSON: `{"raw_note_id":"n1"}`}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob("embed_note")
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "j1" || job.Status != "running" {
		t.Fatalf("claimed job = %+v, want running j1", job)
	}

	// No second claimable job.
	again, err := s.ClaimNextJob("embed_note")
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("claimed %+v, want nil", again)
	}

	if err := s.FailJob("j1", "engine down"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	// Backoff means the retried job is not immediately claimable.
	retry, err := s.ClaimNextJob("embed_note")
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if retry != nil {
		t.Errorf("claimed %+v before backoff elapsed, want nil", retry)
	}
}
