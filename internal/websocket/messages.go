package websocket

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/lumenkind/talespin/server/domain/entities"
)

// InboundType defines the type of an inbound transport message.
type InboundType string

const (
	InboundText            InboundType = "text"
	InboundAudio           InboundType = "audio"
	InboundAudioSessionEnd InboundType = "audioSessionEnd"
)

// InboundMessage is one JSON message from the client.
type InboundMessage struct {
	Type  InboundType    `json:"type"`
	Text  string         `json:"text,omitempty"`
	Audio []InboundFrame `json:"audio,omitempty"`
}

// InboundFrame carries one audio frame: base64 samples plus sample rate.
type InboundFrame struct {
	Chunk      string `json:"chunk"`
	SampleRate int    `json:"sampleRate"`
}

// ParseInbound parses and validates an inbound message.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	switch msg.Type {
	case InboundText:
		if msg.Text == "" {
			return nil, fmt.Errorf("text message requires a text field")
		}
	case InboundAudio:
		if len(msg.Audio) == 0 {
			return nil, fmt.Errorf("audio message requires frames")
		}
	case InboundAudioSessionEnd:
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
	return &msg, nil
}

// Frames decodes the message's audio payloads into domain frames, skipping
// frames that fail to decode.
func (m *InboundMessage) Frames() []entities.AudioFrame {
	frames := make([]entities.AudioFrame, 0, len(m.Audio))
	for _, f := range m.Audio {
		samples, err := base64.StdEncoding.DecodeString(f.Chunk)
		if err != nil || len(samples) == 0 {
			continue
		}
		frames = append(frames, entities.AudioFrame{
			Samples:    samples,
			SampleRate: f.SampleRate,
		})
	}
	return frames
}
