package repositories

import (
	"context"

	"github.com/lumenkind/talespin/server/domain/entities"
)

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// GenerateChat creates a chat session seeded with history
	GenerateChat(ctx context.Context, history []entities.Message) (ChatSession, error)
}

// ChatSession represents an ongoing conversation with the model
type ChatSession interface {
	SendMessage(ctx context.Context, message entities.Message) (entities.Message, error)
	History() ([]entities.Message, error)
}
