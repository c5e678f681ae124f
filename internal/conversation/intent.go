// Package conversation holds the reply-handling core: the inbound message
// debouncer, transcript rendering, and the intent dispatch state machine.
package conversation

import "context"

// Intent is the closed set of categories the classifier may return.
type Intent string

const (
	IntentConfirmation Intent = "confirmation"
	IntentObjection    Intent = "objection"
	IntentDenial       Intent = "denial"
	IntentRelative     Intent = "relative"
	IntentNeutral      Intent = "neutral"
	IntentUnclassified Intent = "unclassified"
)

// Valid reports whether the intent belongs to the closed set.
func (i Intent) Valid() bool {
	switch i {
	case IntentConfirmation, IntentObjection, IntentDenial,
		IntentRelative, IntentNeutral, IntentUnclassified:
		return true
	}
	return false
}

// Classifier is the language-model collaborator. Implementations must never
// return an intent outside the closed set.
type Classifier interface {
	// ClassifyIntent maps a rendered transcript to an intent. Failures are
	// reported so the caller can fall back to IntentUnclassified.
	ClassifyIntent(ctx context.Context, transcript string) (Intent, error)
	// NamesEquivalent judges whether two person names refer to the same
	// person, allowing nicknames and abbreviations.
	NamesEquivalent(ctx context.Context, a, b string) (bool, error)
	// DetectGender guesses "M" or "F" from a first name, defaulting to "M".
	DetectGender(ctx context.Context, name string) (string, error)
}
