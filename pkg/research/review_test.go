package research

import (
	"context"
	"fmt"
	"testing"
)

func TestReviewDraft(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		err        error
		wantRevise bool
		wantNotes  string
	}{
		{"Explicit None accepts", "None", nil, false, ""},
		{"Lowercase none accepts", "none", nil, false, ""},
		{"Empty accepts", "  ", nil, false, ""},
		{"Notes trigger revision", "Add citations to paragraph two.", nil, true, "Add citations to paragraph two."},
		{"Provider failure accepts", "", fmt.Errorf("rate limited"), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{response: tt.response, err: tt.err}
			notes, revise := ReviewDraft(context.Background(), model, &CostTracker{}, "draft", DefaultGuidelines, discardLogger())
			if revise != tt.wantRevise || notes != tt.wantNotes {
				t.Errorf("ReviewDraft = (%q, %v), want (%q, %v)", notes, revise, tt.wantNotes, tt.wantRevise)
			}
		})
	}
}

func TestReviseDraft(t *testing.T) {
	t.Run("Well-formed revision", func(t *testing.T) {
		model := &fakeModel{response: `{"draft": "better text", "revision_notes": "added citations"}`}
		revised, notes, err := ReviseDraft(context.Background(), model, &CostTracker{}, "draft", "add citations", discardLogger())
		if err != nil {
			t.Fatalf("ReviseDraft error = %v", err)
		}
		if revised != "better text" || notes != "added citations" {
			t.Errorf("ReviseDraft = (%q, %q)", revised, notes)
		}
	})

	t.Run("Fenced revision repaired", func(t *testing.T) {
		model := &fakeModel{response: "```json\n{\"draft\": \"better\", \"revision_notes\": \"n\"}\n```"}
		revised, _, err := ReviseDraft(context.Background(), model, &CostTracker{}, "draft", "notes", discardLogger())
		if err != nil || revised != "better" {
			t.Errorf("ReviseDraft = (%q, %v)", revised, err)
		}
	})

	t.Run("Unrepairable output errors so caller keeps draft", func(t *testing.T) {
		model := &fakeModel{response: "I could not revise this."}
		if _, _, err := ReviseDraft(context.Background(), model, &CostTracker{}, "draft", "notes", discardLogger()); err == nil {
			t.Error("ReviseDraft did not surface the malformed output")
		}
	})
}

func TestChoosePersona(t *testing.T) {
	t.Run("Valid classification", func(t *testing.T) {
		model := &fakeModel{response: `{"server": "💰 Finance Agent", "agent_role_prompt": "You are a finance expert."}`}
		p := ChoosePersona(context.Background(), model, &CostTracker{}, "solar tariffs", discardLogger())
		if p.Name != "💰 Finance Agent" {
			t.Errorf("persona = %+v", p)
		}
	})

	t.Run("Garbage degrades to default", func(t *testing.T) {
		model := &fakeModel{response: "no json here"}
		p := ChoosePersona(context.Background(), model, &CostTracker{}, "solar tariffs", discardLogger())
		if p != DefaultPersona() {
			t.Errorf("persona = %+v, want default", p)
		}
	})

	t.Run("Provider failure degrades to default", func(t *testing.T) {
		model := &fakeModel{err: fmt.Errorf("unavailable")}
		p := ChoosePersona(context.Background(), model, &CostTracker{}, "solar tariffs", discardLogger())
		if p != DefaultPersona() {
			t.Errorf("persona = %+v, want default", p)
		}
	})
}
