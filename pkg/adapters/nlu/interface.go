package nlu

import (
	"context"
	"strings"
)

// Intents and entity categories the interview understands.
const (
	IntentConfirmation     = "confirmation"
	IntentEnterInformation = "enterInformation"
	IntentNone             = "None"

	EntityConfirm = "confirm"
	EntityReject  = "reject"
)

// Entity is a categorized span recognized in an utterance.
type Entity struct {
	Category string
	Text     string
}

// Result is the recognition outcome for one utterance.
type Result struct {
	TopIntent string
	Entities  []Entity
}

// Has reports whether an entity of category is present.
func (r Result) Has(category string) bool {
	_, ok := r.Find(category)
	return ok
}

// Find returns the first entity whose category matches (case-insensitive).
func (r Result) Find(category string) (Entity, bool) {
	for _, e := range r.Entities {
		if strings.EqualFold(e.Category, category) {
			return e, true
		}
	}
	return Entity{}, false
}

// Recognizer classifies an utterance into an intent with entities.
type Recognizer interface {
	// Name returns adapter name for logging/metrics.
	Name() string
	Recognize(ctx context.Context, text, locale string) (Result, error)
}
