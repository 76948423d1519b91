package repositories

import "context"

// TextToSpeech abstracts streaming speech synthesis. The returned channel
// yields audio chunks in playback order and closes when synthesis completes.
// VoiceID is resolved per call from session state.
type TextToSpeech interface {
	Synthesize(ctx context.Context, text string, voiceID string) (<-chan []byte, error)
}
