package repositories

import (
	"context"

	"github.com/lumenkind/talespin/server/domain/entities"
)

// PipelineMode selects how a generation pipeline instance is provisioned.
type PipelineMode string

const (
	// PipelineText is the shared instance used by discrete text turns across
	// all sessions; voice is resolved per invocation, never baked in.
	PipelineText PipelineMode = "text"

	// PipelineAudio instances are created fresh per session per activation and
	// are never shared across sessions.
	PipelineAudio PipelineMode = "audio"
)

// PipelineHandle identifies one provisioned pipeline instance.
type PipelineHandle interface {
	Mode() PipelineMode
	SessionID() string
	// Seq is the monotonically increasing per-session counter tagged onto
	// audio instances for diagnostic identification. Zero for the shared
	// text instance.
	Seq() int
}

// PipelineConfig carries per-instance provisioning options.
type PipelineConfig struct {
	VoiceID    string
	STTService string
	SampleRate int
	Language   string
}

// InputKind tags what an invocation feeds the pipeline.
type InputKind int

const (
	// InputText runs a full language-model turn from user text.
	InputText InputKind = iota
	// InputSynthesize runs text-to-speech only, no language-model round trip.
	InputSynthesize
	// InputAudio feeds a continuous frame sequence; the pipeline loops across
	// the user turns it detects within the stream.
	InputAudio
)

// Input is what one Invoke call feeds the pipeline.
type Input struct {
	Kind InputKind

	// Text is the user text (InputText) or the text to synthesize (InputSynthesize).
	Text string

	// InteractionID ties a text or synthesize execution to the interaction
	// minted by the caller. Audio executions mint their own per detected turn
	// and report them via state-update results.
	InteractionID string

	// Frames is the audio sequence for InputAudio; the channel closing marks
	// end of stream.
	Frames <-chan entities.AudioFrame
}

// StateSnapshot is the session state a pipeline execution reads. It is a copy;
// executions never mutate session state directly.
type StateSnapshot struct {
	SessionID  string
	UserName   string
	VoiceID    string
	Experience entities.ExperienceType
	Messages   []entities.Message
}

// GenerationPipeline wraps the external conversational pipeline capability.
// It does not retry internally; recovery policy belongs to the coordinator.
type GenerationPipeline interface {
	// Create provisions an instance for the given mode. Text mode returns the
	// shared instance; audio mode always builds a fresh one for the session.
	Create(ctx context.Context, mode PipelineMode, sessionID string, config PipelineConfig) (PipelineHandle, error)

	// Invoke starts one execution and returns its ordered result stream.
	Invoke(ctx context.Context, handle PipelineHandle, input Input, state StateSnapshot) (ResultStream, error)

	// Destroy stops the instance and releases its resources. Safe to call on
	// an instance that already failed, and safe to call twice.
	Destroy(handle PipelineHandle) error
}

// ResultStream is an ordered asynchronous sequence of pipeline results.
type ResultStream interface {
	// Next blocks until the next result is available. It returns io.EOF once
	// the execution has completed and all results are drained.
	Next(ctx context.Context) (Result, error)

	// Abort stops consumption early, releasing the underlying execution.
	Abort()
}
