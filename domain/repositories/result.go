package repositories

import "github.com/lumenkind/talespin/server/domain/entities"

// ResultKind tags the closed set of pipeline result variants.
type ResultKind int

const (
	// ResultAudio carries synthesized audio chunks paired with agent text.
	ResultAudio ResultKind = iota
	// ResultControl carries a lifecycle notification (speech complete,
	// interruption, state update).
	ResultControl
	// ResultError reports an execution error; classification into soft and
	// hard failures happens in the coordinator.
	ResultError
	// ResultUnrecognized is anything the adapter could not classify. Logged
	// and dropped downstream, never an error.
	ResultUnrecognized
)

// ControlKind tags the control result sub-variants.
type ControlKind int

const (
	ControlSpeechComplete ControlKind = iota
	ControlInterrupted
	ControlStateUpdate
)

// Result is a single value pulled from a pipeline result stream.
// Exactly the field matching Kind is populated.
type Result struct {
	Kind ResultKind

	Audio   *AudioResult
	Control *ControlResult
	Err     *ErrorResult
	Raw     any
}

// AudioChunk is one synthesized audio fragment with its agent text.
// Payload accepts raw bytes, a base64 string, or a pre-decoded buffer;
// decoding happens at emission time.
type AudioChunk struct {
	Text        string
	Payload     any
	UtteranceID string
}

// AudioResult is a streamed audio-with-text result for one interaction.
type AudioResult struct {
	InteractionID string
	Chunks        []AudioChunk
}

// SpeechInfo carries endpointing metadata for a completed user utterance.
type SpeechInfo struct {
	TotalSamples         int
	SampleRate           int
	EndpointingLatencyMs int64
}

// ControlResult is a pipeline lifecycle notification.
type ControlResult struct {
	Kind          ControlKind
	InteractionID string

	// Message is populated for ControlStateUpdate: the next conversation
	// message as the pipeline saw it.
	Message *entities.Message

	// Speech is populated for ControlSpeechComplete.
	Speech *SpeechInfo
}

// ErrorResult is an execution error reported in-stream.
type ErrorResult struct {
	Code    int
	Message string
}
