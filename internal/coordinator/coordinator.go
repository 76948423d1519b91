package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/audiostream"
	"github.com/lumenkind/talespin/server/internal/events"
	"github.com/lumenkind/talespin/server/internal/session"
)

// Options tunes coordinator behavior per deployment.
type Options struct {
	// InterruptionAware enables the stale-interaction emission cut-off.
	InterruptionAware bool
	Classifier        Classifier
}

// Coordinator owns the per-session processing queue, the active interaction
// identity, interruption detection, result translation, and failure recovery.
// It is the sole mutation gate for session conversation state.
type Coordinator struct {
	pipeline repositories.GenerationPipeline
	opts     Options
	logger   *zap.Logger
}

// New creates a coordinator over the given pipeline capability.
func New(pipeline repositories.GenerationPipeline, opts Options, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		pipeline: pipeline,
		opts:     opts,
		logger:   logger,
	}
}

// HandleText enqueues one text turn on the session's serialized queue. The
// turn's pipeline invocation starts only after every earlier task has fully
// drained its own results.
func (c *Coordinator) HandleText(sess *session.Session, text string) {
	if sess.Unloaded() {
		c.logger.Warn("Ignoring text on unloaded session", zap.String("sessionID", sess.ID))
		return
	}
	start := sess.Enqueue(func() {
		if err := c.runTextTurn(sess, text); err != nil {
			// Task-boundary catch: the error terminates this task only, never
			// the drain loop or other sessions.
			c.logger.Error("Text turn failed",
				zap.String("sessionID", sess.ID),
				zap.Error(err))
		}
	})
	if start {
		go c.drainQueue(sess)
	}
}

// drainQueue is the single-flight loop that processes queued tasks one at a
// time in arrival order.
func (c *Coordinator) drainQueue(sess *session.Session) {
	for {
		task, ok := sess.NextTask()
		if !ok {
			return
		}
		task()
	}
}

// runTextTurn executes one user text turn end to end.
func (c *Coordinator) runTextTurn(sess *session.Session, text string) error {
	ctx := context.Background()

	interactionID := uuid.NewString()
	sess.SetCurrentInteraction(interactionID)
	sess.Send(events.NewInteractionEvent(interactionID))
	defer sess.Send(events.InteractionEndEvent(interactionID))

	if text == entities.StartSentinel {
		return c.runStartTurn(ctx, sess, interactionID)
	}

	handle, err := c.pipeline.Create(ctx, repositories.PipelineText, sess.ID, c.pipelineConfig(sess))
	if err != nil {
		return fmt.Errorf("create text pipeline: %w", err)
	}

	stream, err := c.pipeline.Invoke(ctx, handle, repositories.Input{
		Kind:          repositories.InputText,
		Text:          text,
		InteractionID: interactionID,
	}, sess.Snapshot())
	if err != nil {
		return fmt.Errorf("invoke text pipeline: %w", err)
	}

	return c.drainResults(ctx, sess, stream, handle)
}

// runStartTurn handles the start sentinel: the scripted greeting bypasses the
// language model and only its synthesis goes through the pipeline.
func (c *Coordinator) runStartTurn(ctx context.Context, sess *session.Session, interactionID string) error {
	greeting := entities.ExperienceFor(sess.Experience).Greeting

	sess.AppendMessage(entities.Message{
		ID:            uuid.NewString(),
		Role:          entities.MessageRoleAssistant,
		Text:          greeting,
		InteractionID: interactionID,
	})
	sess.Send(events.AgentText(greeting, interactionID, uuid.NewString()))

	handle, err := c.pipeline.Create(ctx, repositories.PipelineText, sess.ID, c.pipelineConfig(sess))
	if err != nil {
		return fmt.Errorf("create text pipeline: %w", err)
	}

	stream, err := c.pipeline.Invoke(ctx, handle, repositories.Input{
		Kind:          repositories.InputSynthesize,
		Text:          greeting,
		InteractionID: interactionID,
	}, sess.Snapshot())
	if err != nil {
		return fmt.Errorf("invoke synthesis: %w", err)
	}

	return c.drainResults(ctx, sess, stream, handle)
}

// HandleAudioFrame appends an inbound frame to the session's current audio
// buffer, lazily starting a new audio segment on the first frame. Audio
// draining runs concurrently with the text queue: the audio pipeline
// serializes its own turns internally.
func (c *Coordinator) HandleAudioFrame(sess *session.Session, frame entities.AudioFrame) {
	if sess.Unloaded() {
		return
	}
	buf, _, _, ok := sess.AudioSegment()
	if !ok {
		var err error
		buf, err = c.startAudioSegment(sess)
		if err != nil {
			c.logger.Error("Failed to start audio segment",
				zap.String("sessionID", sess.ID),
				zap.Error(err))
			sess.Send(events.ErrorEvent("audio session could not be started", sess.CurrentInteraction()))
			return
		}
	}
	buf.Push(frame)
}

// HandleAudioSessionEnd ends the active buffer and awaits the background
// drain so teardown ordering stays clean.
func (c *Coordinator) HandleAudioSessionEnd(sess *session.Session) {
	buf, _, done, ok := sess.AudioSegment()
	if !ok {
		return
	}
	buf.End()
	if done != nil {
		<-done
	}
}

// startAudioSegment provisions a fresh per-session audio pipeline instance,
// installs the buffer, and spawns the background drain with an explicit join
// point tracked on the session.
func (c *Coordinator) startAudioSegment(sess *session.Session) (*audiostream.Buffer, error) {
	ctx := context.Background()

	handle, err := c.pipeline.Create(ctx, repositories.PipelineAudio, sess.ID, c.pipelineConfig(sess))
	if err != nil {
		return nil, fmt.Errorf("create audio pipeline: %w", err)
	}

	buf := audiostream.NewBuffer()
	done := make(chan struct{})
	if !sess.BeginAudioSegment(buf, handle, done) {
		// Lost the race with a concurrent first frame; reuse the winner's segment.
		_ = c.pipeline.Destroy(handle)
		existing, _, _, ok := sess.AudioSegment()
		if !ok {
			// The winner's drain already released it; the next frame starts fresh.
			return nil, fmt.Errorf("audio segment released during activation")
		}
		return existing, nil
	}

	c.logger.Info("Audio segment started",
		zap.String("sessionID", sess.ID),
		zap.Int("pipelineSeq", handle.Seq()))

	go c.runAudioDrain(ctx, sess, buf, handle, done)
	return buf, nil
}

// runAudioDrain invokes the audio pipeline over the buffer's frame sequence
// and drains its results. The buffer and the instance are released on every
// exit path; cancelling the drain context unblocks the buffer's pump when the
// execution stopped consuming frames before the buffer emptied.
func (c *Coordinator) runAudioDrain(ctx context.Context, sess *session.Session, buf *audiostream.Buffer, handle repositories.PipelineHandle, done chan struct{}) {
	ctx, cancel := context.WithCancel(ctx)
	defer close(done)
	defer func() {
		cancel()
		buf.End()
		if err := c.pipeline.Destroy(handle); err != nil {
			c.logger.Warn("Failed to destroy audio pipeline",
				zap.String("sessionID", sess.ID),
				zap.Error(err))
		}
		sess.ClearAudioSegment()
	}()

	frames, err := buf.Frames(ctx)
	if err != nil {
		c.logger.Error("Audio buffer rejected consumer",
			zap.String("sessionID", sess.ID),
			zap.Error(err))
		return
	}

	stream, err := c.pipeline.Invoke(ctx, handle, repositories.Input{
		Kind:   repositories.InputAudio,
		Frames: frames,
	}, sess.Snapshot())
	if err != nil {
		c.logger.Error("Failed to invoke audio pipeline",
			zap.String("sessionID", sess.ID),
			zap.Error(err))
		return
	}

	if err := c.drainResults(ctx, sess, stream, handle); err != nil {
		c.logger.Error("Audio drain terminated",
			zap.String("sessionID", sess.ID),
			zap.Int("pipelineSeq", handle.Seq()),
			zap.Error(err))
	}
}

// Release ends a session's audio resources and joins the background drain.
// Safe to call twice; used by lifecycle teardown and transport close.
func (c *Coordinator) Release(sess *session.Session) {
	sess.MarkUnloaded()
	buf, handle, done, ok := sess.AudioSegment()
	if !ok {
		return
	}
	buf.End()
	if done != nil {
		<-done
	}
	if handle != nil {
		_ = c.pipeline.Destroy(handle)
	}
	sess.ClearAudioSegment()
}

func (c *Coordinator) pipelineConfig(sess *session.Session) repositories.PipelineConfig {
	return repositories.PipelineConfig{
		VoiceID:    sess.VoiceID(),
		STTService: sess.STTService(),
	}
}
