package events

import "encoding/base64"

// Event is one outbound wire message. All variants marshal to the JSON shapes
// the client expects; construction helpers below are the only way the rest of
// the server builds them.
type Event interface {
	EventType() string
}

// Sender delivers events to a client transport. Implementations must treat a
// send on a closed or absent connection as a silent no-op.
type Sender interface {
	Send(event Event)
}

// PacketID ties an event to its interaction and utterance.
type PacketID struct {
	InteractionID string `json:"interactionId"`
	UtteranceID   string `json:"utteranceId,omitempty"`
}

// Source identifies who produced a text event.
type Source struct {
	IsAgent bool `json:"isAgent,omitempty"`
	IsUser  bool `json:"isUser,omitempty"`
}

// Routing carries the source of a text event.
type Routing struct {
	Source Source `json:"source"`
}

// NewInteraction announces a freshly minted interaction id.
type NewInteraction struct {
	Type          string `json:"type"`
	InteractionID string `json:"interactionId"`
}

func (NewInteraction) EventType() string { return "newInteraction" }

// Text is a transcript fragment, agent or user.
type Text struct {
	Type     string   `json:"type"`
	Text     string   `json:"text"`
	PacketID PacketID `json:"packetId"`
	Routing  Routing  `json:"routing"`
}

func (Text) EventType() string { return "TEXT" }

// AudioPayload wraps the base64 chunk of an audio event.
type AudioPayload struct {
	Chunk string `json:"chunk"`
}

// Audio is one synthesized audio chunk.
type Audio struct {
	Type     string       `json:"type"`
	Audio    AudioPayload `json:"audio"`
	PacketID PacketID     `json:"packetId"`
}

func (Audio) EventType() string { return "AUDIO" }

// InteractionEnd closes an interaction.
type InteractionEnd struct {
	Type     string   `json:"type"`
	PacketID PacketID `json:"packetId"`
}

func (InteractionEnd) EventType() string { return "INTERACTION_END" }

// SpeechMetadata carries endpointing measurements for a completed utterance.
type SpeechMetadata struct {
	TotalSamples         int   `json:"totalSamples"`
	SampleRate           int   `json:"sampleRate"`
	EndpointingLatencyMs int64 `json:"endpointingLatencyMs"`
}

// UserSpeechComplete notifies that the user's utterance was fully captured.
type UserSpeechComplete struct {
	Type     string         `json:"type"`
	PacketID PacketID       `json:"packetId"`
	Metadata SpeechMetadata `json:"metadata"`
}

func (UserSpeechComplete) EventType() string { return "USER_SPEECH_COMPLETE" }

// CancelResponse tells the client to stop playback for an interrupted interaction.
type CancelResponse struct {
	Type     string   `json:"type"`
	PacketID PacketID `json:"packetId"`
}

func (CancelResponse) EventType() string { return "CANCEL_RESPONSE" }

// Error is a one-line error the client can display.
type Error struct {
	Type     string   `json:"type"`
	Error    string   `json:"error"`
	PacketID PacketID `json:"packetId"`
}

func (Error) EventType() string { return "ERROR" }

// NewInteractionEvent builds a newInteraction announcement.
func NewInteractionEvent(interactionID string) NewInteraction {
	return NewInteraction{Type: "newInteraction", InteractionID: interactionID}
}

// AgentText builds an agent-sourced TEXT event.
func AgentText(text, interactionID, utteranceID string) Text {
	return Text{
		Type:     "TEXT",
		Text:     text,
		PacketID: PacketID{InteractionID: interactionID, UtteranceID: utteranceID},
		Routing:  Routing{Source: Source{IsAgent: true}},
	}
}

// UserText builds a user-sourced TEXT event.
func UserText(text, interactionID, utteranceID string) Text {
	return Text{
		Type:     "TEXT",
		Text:     text,
		PacketID: PacketID{InteractionID: interactionID, UtteranceID: utteranceID},
		Routing:  Routing{Source: Source{IsUser: true}},
	}
}

// AudioChunk builds an AUDIO event from a decoded chunk.
func AudioChunk(chunk []byte, interactionID, utteranceID string) Audio {
	return Audio{
		Type:     "AUDIO",
		Audio:    AudioPayload{Chunk: base64.StdEncoding.EncodeToString(chunk)},
		PacketID: PacketID{InteractionID: interactionID, UtteranceID: utteranceID},
	}
}

// InteractionEndEvent closes the given interaction.
func InteractionEndEvent(interactionID string) InteractionEnd {
	return InteractionEnd{Type: "INTERACTION_END", PacketID: PacketID{InteractionID: interactionID}}
}

// SpeechCompleteEvent builds a USER_SPEECH_COMPLETE event.
func SpeechCompleteEvent(interactionID string, meta SpeechMetadata) UserSpeechComplete {
	return UserSpeechComplete{
		Type:     "USER_SPEECH_COMPLETE",
		PacketID: PacketID{InteractionID: interactionID},
		Metadata: meta,
	}
}

// CancelResponseEvent builds a CANCEL_RESPONSE for an interrupted interaction.
func CancelResponseEvent(interactionID string) CancelResponse {
	return CancelResponse{Type: "CANCEL_RESPONSE", PacketID: PacketID{InteractionID: interactionID}}
}

// ErrorEvent builds an ERROR event.
func ErrorEvent(message, interactionID string) Error {
	return Error{Type: "ERROR", Error: message, PacketID: PacketID{InteractionID: interactionID}}
}

// DecodeAudioPayload normalizes the payload shapes pipelines hand back: raw
// bytes pass through, strings are treated as base64. Empty payloads decode to
// an empty slice, which callers skip.
func DecodeAudioPayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return base64.StdEncoding.DecodeString(v)
	default:
		return nil, nil
	}
}
