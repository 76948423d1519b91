package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/events"
	"github.com/lumenkind/talespin/server/internal/session"
)

// assistantEcho accumulates the agent text streamed alongside audio chunks so
// the assistant turn lands in conversation history exactly once per
// interaction, at the moment the interaction's audio moves on or the drain
// ends.
type assistantEcho struct {
	interactionID string
	text          strings.Builder
}

func (a *assistantEcho) add(interactionID, text string) (flushed *entities.Message) {
	if interactionID != a.interactionID && a.text.Len() > 0 {
		flushed = a.flush()
	}
	a.interactionID = interactionID
	a.text.WriteString(text)
	return flushed
}

func (a *assistantEcho) flush() *entities.Message {
	if a.text.Len() == 0 {
		return nil
	}
	msg := &entities.Message{
		ID:            uuid.NewString(),
		Role:          entities.MessageRoleAssistant,
		Text:          a.text.String(),
		InteractionID: a.interactionID,
	}
	a.text.Reset()
	return msg
}

// drainResults pulls one result stream to completion, translating each result
// into outbound events. Events are emitted in pull order; no reordering or
// batching. A hard pipeline failure stops the drain and discards the audio
// instance so the next activation builds fresh.
func (c *Coordinator) drainResults(ctx context.Context, sess *session.Session, stream repositories.ResultStream, handle repositories.PipelineHandle) error {
	var echo assistantEcho
	defer func() {
		if msg := echo.flush(); msg != nil {
			sess.AppendMessage(*msg)
		}
	}()

	for {
		result, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pull pipeline result: %w", err)
		}

		switch result.Kind {
		case repositories.ResultError:
			done, err := c.handleErrorResult(sess, stream, handle, result.Err)
			if done {
				return err
			}

		case repositories.ResultControl:
			if err := c.handleControlResult(sess, stream, result.Control); err != nil {
				return err
			}

		case repositories.ResultAudio:
			if msg := c.emitAudioResult(sess, result.Audio, &echo); msg != nil {
				sess.AppendMessage(*msg)
			}

		case repositories.ResultUnrecognized:
			c.logger.Debug("Dropping unrecognized pipeline result",
				zap.String("sessionID", sess.ID),
				zap.Any("raw", result.Raw))

		default:
			c.logger.Debug("Dropping pipeline result with unknown kind",
				zap.String("sessionID", sess.ID),
				zap.Int("kind", int(result.Kind)))
		}
	}
}

// handleErrorResult applies the error taxonomy: soft errors vanish, hard
// failures surface once and stop the drain, everything else surfaces and the
// drain continues.
func (c *Coordinator) handleErrorResult(sess *session.Session, stream repositories.ResultStream, handle repositories.PipelineHandle, res *repositories.ErrorResult) (done bool, err error) {
	if res == nil {
		return false, nil
	}
	if c.opts.Classifier.Soft(res.Message) {
		c.logger.Debug("Suppressing soft pipeline error",
			zap.String("sessionID", sess.ID),
			zap.String("message", res.Message))
		return false, nil
	}

	sess.Send(events.ErrorEvent(res.Message, sess.CurrentInteraction()))

	if !c.opts.Classifier.Hard(res.Code, res.Message) {
		return false, nil
	}

	c.logger.Error("Hard pipeline failure",
		zap.String("sessionID", sess.ID),
		zap.Int("code", res.Code),
		zap.String("message", res.Message))

	// End the audio buffer so the next activation builds a fresh instance;
	// the drain's scoped release discards the handle itself.
	if handle != nil && handle.Mode() == repositories.PipelineAudio {
		if buf, _, _, ok := sess.AudioSegment(); ok {
			buf.End()
		}
	}
	stream.Abort()
	return true, fmt.Errorf("hard pipeline failure (code %d): %s", res.Code, res.Message)
}

// handleControlResult translates lifecycle notifications.
func (c *Coordinator) handleControlResult(sess *session.Session, stream repositories.ResultStream, ctrl *repositories.ControlResult) error {
	if ctrl == nil {
		return nil
	}
	switch ctrl.Kind {
	case repositories.ControlSpeechComplete:
		id := ctrl.InteractionID
		if id == "" {
			id = sess.CurrentInteraction()
		}
		meta := events.SpeechMetadata{}
		if ctrl.Speech != nil {
			meta = events.SpeechMetadata{
				TotalSamples:         ctrl.Speech.TotalSamples,
				SampleRate:           ctrl.Speech.SampleRate,
				EndpointingLatencyMs: ctrl.Speech.EndpointingLatencyMs,
			}
		}
		sess.Send(events.SpeechCompleteEvent(id, meta))

	case repositories.ControlInterrupted:
		id := ctrl.InteractionID
		if id == "" {
			id = sess.CurrentInteraction()
		}
		sess.Send(events.CancelResponseEvent(id))

	case repositories.ControlStateUpdate:
		msg := ctrl.Message
		if msg == nil {
			return nil
		}
		switch msg.Role {
		case entities.MessageRoleAssistant:
			// Assistant messages are echoed via the audio-result path.
			return nil
		case entities.MessageRoleUser:
			if sess.Unloaded() {
				stream.Abort()
				return session.ErrUnloaded
			}
			if msg.InteractionID != "" && msg.InteractionID != sess.CurrentInteraction() {
				// The pipeline's id is authoritative for an in-flight audio turn.
				// Adoption means the server recognized the utterance, so the
				// transcript is news to the client: echo it with user routing.
				sess.SetCurrentInteraction(msg.InteractionID)
				sess.Send(events.NewInteractionEvent(msg.InteractionID))
				if msg.Text != "" {
					sess.Send(events.UserText(msg.Text, msg.InteractionID, uuid.NewString()))
				}
			}
			sess.AppendMessage(*msg)
		}
	}
	return nil
}

// emitAudioResult emits paired TEXT and AUDIO events for each sub-chunk,
// suppressing emissions whose interaction id has gone stale when interruption
// awareness is enabled. Returns an assistant message to append when the echo
// accumulator flushed.
func (c *Coordinator) emitAudioResult(sess *session.Session, res *repositories.AudioResult, echo *assistantEcho) *entities.Message {
	if res == nil {
		return nil
	}

	id := res.InteractionID
	if id == "" {
		id = sess.CurrentInteraction()
	}
	if id == "" {
		// Defensive default for out-of-order delivery.
		id = uuid.NewString()
		sess.SetCurrentInteraction(id)
	}

	var flushed *entities.Message
	for _, chunk := range res.Chunks {
		if c.opts.InterruptionAware && id != sess.CurrentInteraction() {
			// Barge-in cut-off: a newer interaction took over.
			continue
		}

		data, err := events.DecodeAudioPayload(chunk.Payload)
		if err != nil {
			c.logger.Warn("Failed to decode audio payload",
				zap.String("sessionID", sess.ID),
				zap.Error(err))
			continue
		}
		if len(data) == 0 && chunk.Text == "" {
			continue
		}

		utteranceID := chunk.UtteranceID
		if utteranceID == "" {
			utteranceID = uuid.NewString()
		}

		if chunk.Text != "" {
			sess.Send(events.AgentText(chunk.Text, id, utteranceID))
			if msg := echo.add(id, chunk.Text); msg != nil {
				flushed = msg
			}
		}
		if len(data) > 0 {
			sess.Send(events.AudioChunk(data, id, utteranceID))
		}
	}
	return flushed
}
