// Package pipeline composes speech-to-text, the language model, and
// text-to-speech into the generation-pipeline capability the coordinator
// consumes. One shared instance serves all text turns; audio activations get
// a fresh per-session instance so no recognition state bleeds across
// sessions.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
)

const (
	defaultSampleRate = 16000
	defaultLanguage   = "en-US"
)

type handle struct {
	mode      repositories.PipelineMode
	sessionID string
	seq       int
	config    repositories.PipelineConfig

	mu        sync.Mutex
	cancels   []context.CancelFunc
	destroyed bool
}

func (h *handle) Mode() repositories.PipelineMode { return h.mode }
func (h *handle) SessionID() string               { return h.sessionID }
func (h *handle) Seq() int                        { return h.seq }

func (h *handle) track(cancel context.CancelFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return fmt.Errorf("pipeline instance destroyed")
	}
	h.cancels = append(h.cancels, cancel)
	return nil
}

func (h *handle) destroy() {
	h.mu.Lock()
	cancels := h.cancels
	h.cancels = nil
	h.destroyed = true
	h.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Graph implements GenerationPipeline over the provider adapters.
type Graph struct {
	stt    repositories.SpeechToText
	llm    repositories.LargeLanguageModel
	tts    repositories.TextToSpeech
	logger *zap.Logger

	mu   sync.Mutex
	text *handle
	seqs map[string]int
}

var _ repositories.GenerationPipeline = (*Graph)(nil)

// NewGraph wires the three providers into a pipeline capability.
func NewGraph(stt repositories.SpeechToText, llm repositories.LargeLanguageModel, tts repositories.TextToSpeech, logger *zap.Logger) *Graph {
	return &Graph{
		stt:    stt,
		llm:    llm,
		tts:    tts,
		logger: logger,
		seqs:   make(map[string]int),
	}
}

// Create returns the shared text instance, or a fresh per-session audio
// instance tagged with the session's next sequence number.
func (g *Graph) Create(ctx context.Context, mode repositories.PipelineMode, sessionID string, config repositories.PipelineConfig) (repositories.PipelineHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch mode {
	case repositories.PipelineText:
		if g.text == nil || g.isDestroyed(g.text) {
			g.text = &handle{mode: repositories.PipelineText}
		}
		return g.text, nil

	case repositories.PipelineAudio:
		if sessionID == "" {
			return nil, fmt.Errorf("audio pipeline requires a session id")
		}
		g.seqs[sessionID]++
		h := &handle{
			mode:      repositories.PipelineAudio,
			sessionID: sessionID,
			seq:       g.seqs[sessionID],
			config:    config,
		}
		g.logger.Info("Created audio pipeline instance",
			zap.String("sessionID", sessionID),
			zap.Int("seq", h.seq))
		return h, nil

	default:
		return nil, fmt.Errorf("unknown pipeline mode: %s", mode)
	}
}

func (g *Graph) isDestroyed(h *handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// Invoke starts one execution on the instance and returns its result stream.
func (g *Graph) Invoke(ctx context.Context, ph repositories.PipelineHandle, input repositories.Input, state repositories.StateSnapshot) (repositories.ResultStream, error) {
	h, ok := ph.(*handle)
	if !ok {
		return nil, fmt.Errorf("foreign pipeline handle")
	}

	execCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := h.track(cancel); err != nil {
		cancel()
		return nil, err
	}
	stream := newResultStream(cancel)

	switch input.Kind {
	case repositories.InputText:
		go g.runTextTurn(execCtx, stream, input, state)
	case repositories.InputSynthesize:
		go g.runSynthesize(execCtx, stream, input, state)
	case repositories.InputAudio:
		if h.mode != repositories.PipelineAudio {
			cancel()
			return nil, fmt.Errorf("audio input requires an audio-mode instance")
		}
		go g.runAudioLoop(execCtx, stream, h, input, state)
	default:
		cancel()
		return nil, fmt.Errorf("unknown input kind: %d", input.Kind)
	}
	return stream, nil
}

// Destroy cancels every execution on the instance. Safe on failed instances
// and safe to call twice.
func (g *Graph) Destroy(ph repositories.PipelineHandle) error {
	h, ok := ph.(*handle)
	if !ok {
		return fmt.Errorf("foreign pipeline handle")
	}
	h.destroy()
	return nil
}

// runTextTurn executes one user text turn: state update, model reply, and
// streamed synthesis.
func (g *Graph) runTextTurn(ctx context.Context, stream *resultStream, input repositories.Input, state repositories.StateSnapshot) {
	defer stream.close()

	userMsg := entities.Message{
		ID:            uuid.NewString(),
		Role:          entities.MessageRoleUser,
		Text:          input.Text,
		Timestamp:     time.Now(),
		InteractionID: input.InteractionID,
	}
	if !stream.emit(ctx, repositories.Result{
		Kind: repositories.ResultControl,
		Control: &repositories.ControlResult{
			Kind:          repositories.ControlStateUpdate,
			InteractionID: input.InteractionID,
			Message:       &userMsg,
		},
	}) {
		return
	}

	chat, err := g.llm.GenerateChat(ctx, state.Messages)
	if err != nil {
		g.emitError(ctx, stream, err)
		return
	}
	reply, err := chat.SendMessage(ctx, userMsg)
	if err != nil {
		g.emitError(ctx, stream, err)
		return
	}

	g.synthesize(ctx, stream, reply.Text, input.InteractionID, state.VoiceID, true)
}

// runSynthesize is text-to-speech only, no language-model round trip. The
// caller already emitted the text, so chunks carry audio alone.
func (g *Graph) runSynthesize(ctx context.Context, stream *resultStream, input repositories.Input, state repositories.StateSnapshot) {
	defer stream.close()
	g.synthesize(ctx, stream, input.Text, input.InteractionID, state.VoiceID, false)
}

// endpointSilence is how long the stream may go quiet mid-utterance before
// the turn is considered complete.
const endpointSilence = 800 * time.Millisecond

// runAudioLoop consumes the frame sequence, looping across the user turns it
// detects until the sequence ends. Conversation context accumulates locally
// between turns of the same stream.
func (g *Graph) runAudioLoop(ctx context.Context, stream *resultStream, h *handle, input repositories.Input, state repositories.StateSnapshot) {
	defer stream.close()

	history := state.Messages
	for g.runAudioTurn(ctx, stream, h, input.Frames, state, &history) {
	}
}

// runAudioTurn recognizes one utterance and produces its response. A turn
// ends when the frame sequence goes silent for the endpointing window or
// terminates. It reports whether another turn may follow.
func (g *Graph) runAudioTurn(ctx context.Context, stream *resultStream, h *handle, frames <-chan entities.AudioFrame, state repositories.StateSnapshot, history *[]entities.Message) (more bool) {
	sampleRate := h.config.SampleRate
	if sampleRate == 0 {
		sampleRate = defaultSampleRate
	}
	language := h.config.Language
	if language == "" {
		language = defaultLanguage
	}

	var (
		recognizer repositories.SpeechToTextStreaming
		totalBytes int
		started    time.Time
	)

	endTurn := func(streamOpen bool) bool {
		transcript, err := recognizer.End()
		endpointed := time.Now()
		if err != nil {
			g.emitError(ctx, stream, err)
			return streamOpen
		}
		g.respond(ctx, stream, state, history, transcript, speechInfo(totalBytes, sampleRate, started, endpointed))
		return streamOpen
	}

	silence := time.NewTimer(endpointSilence)
	defer silence.Stop()

	for {
		silence.Reset(endpointSilence)
		select {
		case <-ctx.Done():
			return false

		case <-silence.C:
			if recognizer == nil {
				// Nothing heard yet; keep waiting for the first frame.
				continue
			}
			return endTurn(true)

		case frame, ok := <-frames:
			if !ok {
				if recognizer == nil {
					return false
				}
				return endTurn(false)
			}

			if recognizer == nil {
				if frame.SampleRate > 0 {
					sampleRate = frame.SampleRate
				}
				var err error
				recognizer, err = g.stt.InitTranscribeStreaming(ctx, repositories.AudioConfig{
					SampleRate: sampleRate,
					Encoding:   "LINEAR16",
					Language:   language,
				})
				if err != nil {
					g.emitError(ctx, stream, err)
					return false
				}
				started = time.Now()
			}

			totalBytes += len(frame.Samples)
			if err := recognizer.Stream(frame.Samples); err != nil {
				g.emitError(ctx, stream, err)
				return false
			}
		}
	}
}

// respond turns one transcript into a full agent response: state update,
// speech-complete, model reply, synthesis.
func (g *Graph) respond(ctx context.Context, stream *resultStream, state repositories.StateSnapshot, history *[]entities.Message, transcript string, info repositories.SpeechInfo) {
	interactionID := uuid.NewString()

	userMsg := entities.Message{
		ID:            uuid.NewString(),
		Role:          entities.MessageRoleUser,
		Text:          transcript,
		Timestamp:     time.Now(),
		InteractionID: interactionID,
	}
	if !stream.emit(ctx, repositories.Result{
		Kind: repositories.ResultControl,
		Control: &repositories.ControlResult{
			Kind:          repositories.ControlStateUpdate,
			InteractionID: interactionID,
			Message:       &userMsg,
		},
	}) {
		return
	}
	if !stream.emit(ctx, repositories.Result{
		Kind: repositories.ResultControl,
		Control: &repositories.ControlResult{
			Kind:          repositories.ControlSpeechComplete,
			InteractionID: interactionID,
			Speech:        &info,
		},
	}) {
		return
	}

	chat, err := g.llm.GenerateChat(ctx, *history)
	if err != nil {
		g.emitError(ctx, stream, err)
		return
	}
	reply, err := chat.SendMessage(ctx, userMsg)
	if err != nil {
		g.emitError(ctx, stream, err)
		return
	}

	*history = append(*history, userMsg, reply)
	g.synthesize(ctx, stream, reply.Text, interactionID, state.VoiceID, true)
}

// synthesize streams TTS chunks as audio results. When withText is set, the
// first chunk carries the agent text so the transport pairs text and audio.
func (g *Graph) synthesize(ctx context.Context, stream *resultStream, text, interactionID, voiceID string, withText bool) {
	audioChan, err := g.tts.Synthesize(ctx, text, voiceID)
	if err != nil {
		g.emitError(ctx, stream, err)
		return
	}

	utteranceID := uuid.NewString()
	first := true
	for chunk := range audioChan {
		audioChunk := repositories.AudioChunk{
			Payload:     chunk,
			UtteranceID: utteranceID,
		}
		if withText && first {
			audioChunk.Text = text
		}
		first = false
		if !stream.emit(ctx, repositories.Result{
			Kind: repositories.ResultAudio,
			Audio: &repositories.AudioResult{
				InteractionID: interactionID,
				Chunks:        []repositories.AudioChunk{audioChunk},
			},
		}) {
			return
		}
	}
}

func (g *Graph) emitError(ctx context.Context, stream *resultStream, err error) {
	g.logger.Warn("Pipeline execution error", zap.Error(err))
	stream.emit(ctx, repositories.Result{
		Kind: repositories.ResultError,
		Err:  &repositories.ErrorResult{Message: err.Error()},
	})
}

func speechInfo(totalBytes, sampleRate int, started, endpointed time.Time) repositories.SpeechInfo {
	info := repositories.SpeechInfo{
		// LINEAR16 frames carry two bytes per sample.
		TotalSamples: totalBytes / 2,
		SampleRate:   sampleRate,
	}
	if !started.IsZero() {
		info.EndpointingLatencyMs = endpointed.Sub(started).Milliseconds()
	}
	return info
}
