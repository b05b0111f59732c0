package nlu

import "testing"

func TestResultFind(t *testing.T) {
	r := Result{
		TopIntent: IntentEnterInformation,
		Entities: []Entity{
			{Category: "Name", Text: "Anna"},
			{Category: "Stadt", Text: "Berlin"},
		},
	}
	e, ok := r.Find("name")
	if !ok || e.Text != "Anna" {
		t.Fatalf("expected case-insensitive match, got %+v %v", e, ok)
	}
	if r.Has(EntityConfirm) {
		t.Fatalf("unexpected confirm entity")
	}
}
