package classifier

import (
	"context"

	"leadbot_backend/internal/conversation"
)

// Disabled is the classifier used when no API key is configured. Every
// reply classifies as unclassified, so the bot stores messages without
// ever acting on them.
type Disabled struct{}

func (Disabled) ClassifyIntent(ctx context.Context, transcript string) (conversation.Intent, error) {
	return conversation.IntentUnclassified, nil
}

func (Disabled) NamesEquivalent(ctx context.Context, a, b string) (bool, error) {
	return false, nil
}

func (Disabled) DetectGender(ctx context.Context, name string) (string, error) {
	return "M", nil
}
