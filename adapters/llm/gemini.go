package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = float32(0.8)
	defaultMaxOutputTokens = int32(256)
	defaultTimeout         = 30 * time.Second
)

// GeminiLLM implements the LargeLanguageModel interface using the Gemini API.
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a Gemini-backed model adapter.
func NewGeminiLLM(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiLLM{
		client: client,
		logger: logger,
		model:  defaultModel,
	}, nil
}

// GenerateChat creates a chat session seeded with history. A leading system
// message becomes the session's system instruction.
func (g *GeminiLLM) GenerateChat(ctx context.Context, history []entities.Message) (repositories.ChatSession, error) {
	session := &geminiChatSession{
		client: g.client,
		logger: g.logger,
		model:  g.model,
	}
	for _, msg := range history {
		switch msg.Role {
		case entities.MessageRoleSystem:
			session.systemPrompt = msg.Text
		case entities.MessageRoleUser:
			session.history = append(session.history, genai.NewContentFromText(msg.Text, genai.RoleUser))
		case entities.MessageRoleAssistant:
			session.history = append(session.history, genai.NewContentFromText(msg.Text, genai.RoleModel))
		}
	}
	return session, nil
}

type geminiChatSession struct {
	client       *genai.Client
	logger       *zap.Logger
	model        string
	systemPrompt string
	history      []*genai.Content
}

// SendMessage sends one user message and returns the model reply, updating
// the in-session history.
func (s *geminiChatSession) SendMessage(ctx context.Context, message entities.Message) (entities.Message, error) {
	var contents []*genai.Content
	if s.systemPrompt != "" {
		contents = append(contents, genai.NewContentFromText(s.systemPrompt, genai.RoleUser))
	}
	contents = append(contents, s.history...)

	userContent := genai.NewContentFromText(message.Text, genai.RoleUser)
	contents = append(contents, userContent)

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(defaultTemperature),
		MaxOutputTokens: defaultMaxOutputTokens,
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var response *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		response, err = s.client.Models.GenerateContent(ctx, s.model, contents, config)
		if err == nil {
			break
		}
		s.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return entities.Message{}, fmt.Errorf("generate content: %w", err)
	}

	var responseText string
	if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
		for _, part := range response.Candidates[0].Content.Parts {
			responseText += part.Text
		}
	}
	if responseText == "" {
		return entities.Message{}, fmt.Errorf("model returned no text")
	}

	s.history = append(s.history, userContent, genai.NewContentFromText(responseText, genai.RoleModel))

	return entities.Message{
		Role:      entities.MessageRoleAssistant,
		Text:      responseText,
		Timestamp: time.Now(),
	}, nil
}

// History returns the conversation so far, excluding the system prompt.
func (s *geminiChatSession) History() ([]entities.Message, error) {
	var messages []entities.Message
	for _, content := range s.history {
		role := entities.MessageRoleUser
		if content.Role == genai.RoleModel {
			role = entities.MessageRoleAssistant
		}
		var text string
		for _, part := range content.Parts {
			text += part.Text
		}
		if text != "" {
			messages = append(messages, entities.Message{Role: role, Text: text})
		}
	}
	return messages, nil
}
