package entities

import "time"

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message represents one entry of a session's conversation history
type Message struct {
	ID        string      `json:"id" bson:"id"`
	Role      MessageRole `json:"role" bson:"role"`
	Text      string      `json:"text" bson:"text"`
	Timestamp time.Time   `json:"timestamp" bson:"timestamp"`

	// InteractionID ties the message to the user turn that produced it.
	InteractionID string `json:"interaction_id,omitempty" bson:"interaction_id,omitempty"`
}

// AudioFrame is a single frame of raw audio samples pushed by the transport.
type AudioFrame struct {
	Samples    []byte
	SampleRate int
}
