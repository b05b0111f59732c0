package keyword

import (
	"context"
	"testing"

	"github.com/harunnryd/sprachbot/pkg/adapters/nlu"
)

func TestRecognize(t *testing.T) {
	r := New(Config{})
	cases := []struct {
		text     string
		intent   string
		category string
	}{
		{"Ja", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"ja, das stimmt.", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"Nein!", nlu.IntentConfirmation, nlu.EntityReject},
		{"Das stimmt nicht", nlu.IntentConfirmation, nlu.EntityReject},
		{"nicht korrekt", nlu.IntentConfirmation, nlu.EntityReject},
		{"stimmt nicht", nlu.IntentConfirmation, nlu.EntityReject},
		{"Das ist falsch", nlu.IntentConfirmation, nlu.EntityReject},
		{"nicht falsch", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"Nein, nicht ganz", nlu.IntentConfirmation, nlu.EntityReject},
		{"Nein, nicht so", nlu.IntentConfirmation, nlu.EntityReject},
		{"Nein, keine Ahnung", nlu.IntentConfirmation, nlu.EntityReject},
		{"Ja, kein Problem", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"Richtig, keine Fehler", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"Stimmt so nicht ganz", nlu.IntentConfirmation, nlu.EntityReject},
		{"Das stimmt so nicht", nlu.IntentConfirmation, nlu.EntityReject},
		{"Korrekt, aber nicht", nlu.IntentConfirmation, nlu.EntityReject},
		{"Stimmt, das ist nicht falsch", nlu.IntentConfirmation, nlu.EntityConfirm},
		{"Jakob", nlu.IntentEnterInformation, ""},
		{"Richter", nlu.IntentEnterInformation, ""},
		{"Janina Neinhaus", nlu.IntentEnterInformation, ""},
		{"Unter den Linden 5", nlu.IntentEnterInformation, ""},
		{"", nlu.IntentEnterInformation, ""},
	}
	for _, tc := range cases {
		res, err := r.Recognize(context.Background(), tc.text, "de-DE")
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.text, err)
		}
		if res.TopIntent != tc.intent {
			t.Fatalf("%q: expected intent %s, got %s", tc.text, tc.intent, res.TopIntent)
		}
		if tc.category == "" {
			if len(res.Entities) != 0 {
				t.Fatalf("%q: expected no entities, got %+v", tc.text, res.Entities)
			}
			continue
		}
		if len(res.Entities) != 1 || res.Entities[0].Category != tc.category {
			t.Fatalf("%q: expected %s entity, got %+v", tc.text, tc.category, res.Entities)
		}
	}
}

func TestConflictHasNoEntity(t *testing.T) {
	r := New(Config{})
	res, _ := r.Recognize(context.Background(), "ja nein", "de-DE")
	if res.TopIntent != nlu.IntentConfirmation || len(res.Entities) != 0 {
		t.Fatalf("expected bare confirmation, got %+v", res)
	}
}

func TestLongestPhraseWins(t *testing.T) {
	r := New(Config{})
	res, _ := r.Recognize(context.Background(), "das stimmt nicht", "de-DE")
	e, ok := res.Find(nlu.EntityReject)
	if !ok || e.Text != "das stimmt nicht" {
		t.Fatalf("expected full reject phrase, got %+v", res.Entities)
	}
}

func TestCustomPhrases(t *testing.T) {
	r := New(Config{Confirm: []string{"passt"}, Reject: []string{"passt nicht"}})
	res, _ := r.Recognize(context.Background(), "Passt!", "de-DE")
	if !res.Has(nlu.EntityConfirm) {
		t.Fatalf("expected confirm, got %+v", res)
	}
	res, _ = r.Recognize(context.Background(), "passt nicht", "de-DE")
	if !res.Has(nlu.EntityReject) || res.Has(nlu.EntityConfirm) {
		t.Fatalf("expected reject, got %+v", res)
	}
	res, _ = r.Recognize(context.Background(), "ja", "de-DE")
	if res.TopIntent != nlu.IntentEnterInformation {
		t.Fatalf("defaults must be replaced, got %+v", res)
	}
}

func TestNegatorSpans(t *testing.T) {
	r := New(Config{})
	cases := []struct {
		text     string
		category string
		span     string
	}{
		{"nicht falsch", nlu.EntityConfirm, "nicht falsch"},
		{"Nein, nicht ganz", nlu.EntityReject, "nein"},
		{"Stimmt so nicht ganz", nlu.EntityReject, "stimmt so nicht"},
		{"stimmt, so ist es", nlu.EntityConfirm, "stimmt"},
	}
	for _, tc := range cases {
		res, _ := r.Recognize(context.Background(), tc.text, "de-DE")
		e, ok := res.Find(tc.category)
		if !ok || e.Text != tc.span {
			t.Fatalf("%q: expected %s %q, got %+v", tc.text, tc.category, tc.span, res.Entities)
		}
	}
}

func TestCustomPostfixPredicates(t *testing.T) {
	r := New(Config{Confirm: []string{"passt"}, Reject: []string{"nein"}, Postfix: []string{"passt"}})
	res, _ := r.Recognize(context.Background(), "passt nicht", "de-DE")
	if !res.Has(nlu.EntityReject) || res.Has(nlu.EntityConfirm) {
		t.Fatalf("expected reject, got %+v", res)
	}
	res, _ = r.Recognize(context.Background(), "nein nicht", "de-DE")
	if !res.Has(nlu.EntityReject) {
		t.Fatalf("nein must not be inverted from the right, got %+v", res)
	}
}
