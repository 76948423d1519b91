package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/events"
	"github.com/lumenkind/talespin/server/internal/session"
)

// fakeSender records outbound events for assertion.
type fakeSender struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeSender) Send(e events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakeSender) all() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.Event, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSender) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range f.all() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeStream replays a scripted result sequence, then EOF. An optional gate
// holds EOF back until the test releases it.
type fakeStream struct {
	mu      sync.Mutex
	results []repositories.Result
	idx     int
	aborted bool
	gate    chan struct{}
	pregate chan struct{}
}

func scriptedStream(results ...repositories.Result) *fakeStream {
	return &fakeStream{results: results}
}

func (s *fakeStream) Next(ctx context.Context) (repositories.Result, error) {
	s.mu.Lock()
	pregate := s.pregate
	s.pregate = nil
	s.mu.Unlock()
	if pregate != nil {
		select {
		case <-pregate:
		case <-ctx.Done():
			return repositories.Result{}, ctx.Err()
		}
	}

	s.mu.Lock()
	if s.idx < len(s.results) {
		r := s.results[s.idx]
		s.idx++
		s.mu.Unlock()
		return r, nil
	}
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return repositories.Result{}, ctx.Err()
		}
	}
	return repositories.Result{}, io.EOF
}

func (s *fakeStream) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
}

func (s *fakeStream) wasAborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

type fakeHandle struct {
	mode      repositories.PipelineMode
	sessionID string
	seq       int

	mu        sync.Mutex
	destroyed int
}

func (h *fakeHandle) Mode() repositories.PipelineMode { return h.mode }
func (h *fakeHandle) SessionID() string               { return h.sessionID }
func (h *fakeHandle) Seq() int                        { return h.seq }

func (h *fakeHandle) destroyCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

// fakePipeline hands back scripted streams in invocation order and records
// every call for assertion. With holdFrames set it keeps the frame sequence
// unconsumed, like an execution that failed before reading audio.
type fakePipeline struct {
	mu          sync.Mutex
	seqs        map[string]int
	handles     []*fakeHandle
	invocations []repositories.Input
	streams     []*fakeStream
	holdFrames  bool
	captured    <-chan entities.AudioFrame
}

func newFakePipeline(streams ...*fakeStream) *fakePipeline {
	return &fakePipeline{seqs: make(map[string]int), streams: streams}
}

func (p *fakePipeline) Create(ctx context.Context, mode repositories.PipelineMode, sessionID string, config repositories.PipelineConfig) (repositories.PipelineHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := &fakeHandle{mode: mode, sessionID: sessionID}
	if mode == repositories.PipelineAudio {
		p.seqs[sessionID]++
		h.seq = p.seqs[sessionID]
	}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakePipeline) Invoke(ctx context.Context, handle repositories.PipelineHandle, input repositories.Input, state repositories.StateSnapshot) (repositories.ResultStream, error) {
	p.mu.Lock()
	p.invocations = append(p.invocations, input)
	if len(p.streams) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("no scripted stream for invocation")
	}
	stream := p.streams[0]
	p.streams = p.streams[1:]
	hold := p.holdFrames
	if input.Frames != nil && hold {
		p.captured = input.Frames
	}
	p.mu.Unlock()

	// Keep the frame producer unblocked the way a real execution would.
	if input.Frames != nil && !hold {
		go func() {
			for range input.Frames {
			}
		}()
	}
	return stream, nil
}

func (p *fakePipeline) heldFrames() <-chan entities.AudioFrame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captured
}

func (p *fakePipeline) Destroy(handle repositories.PipelineHandle) error {
	h := handle.(*fakeHandle)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.destroyed++
	return nil
}

func (p *fakePipeline) inputs() []repositories.Input {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]repositories.Input, len(p.invocations))
	copy(out, p.invocations)
	return out
}

func (p *fakePipeline) audioHandles() []*fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*fakeHandle
	for _, h := range p.handles {
		if h.mode == repositories.PipelineAudio {
			out = append(out, h)
		}
	}
	return out
}

func defaultClassifier() Classifier {
	return Classifier{
		HardCodes:      map[int]bool{4: true, 14: true},
		HardSubstrings: []string{"deadline exceeded", "executor is not running"},
		SoftSubstrings: []string{"no speech", "no text"},
	}
}

func newTestCoordinator(pipeline repositories.GenerationPipeline) *Coordinator {
	return New(pipeline, Options{
		InterruptionAware: true,
		Classifier:        defaultClassifier(),
	}, zap.NewNop())
}

func newTestSession() (*session.Session, *fakeSender) {
	sess := session.New("sess-1", "Mia", "voice-1", entities.ExperienceStorybook, "google")
	sender := &fakeSender{}
	sess.AttachTransport(sender)
	return sess, sender
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func audioResult(interactionID, text string, payload []byte) repositories.Result {
	return repositories.Result{
		Kind: repositories.ResultAudio,
		Audio: &repositories.AudioResult{
			InteractionID: interactionID,
			Chunks: []repositories.AudioChunk{{
				Text:        text,
				Payload:     payload,
				UtteranceID: "utt-1",
			}},
		},
	}
}

func userStateUpdate(interactionID, text string) repositories.Result {
	return repositories.Result{
		Kind: repositories.ResultControl,
		Control: &repositories.ControlResult{
			Kind:          repositories.ControlStateUpdate,
			InteractionID: interactionID,
			Message: &entities.Message{
				Role:          entities.MessageRoleUser,
				Text:          text,
				InteractionID: interactionID,
			},
		},
	}
}

func errorResult(code int, message string) repositories.Result {
	return repositories.Result{
		Kind: repositories.ResultError,
		Err:  &repositories.ErrorResult{Code: code, Message: message},
	}
}

func TestStartSentinelPlaysScriptedGreeting(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		audioResult("", "", []byte{1, 2}),
		audioResult("", "", []byte{3, 4}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleText(sess, entities.StartSentinel)
	waitFor(t, "interaction end", func() bool { return len(sender.ofType("INTERACTION_END")) == 1 })

	inputs := pipeline.inputs()
	if len(inputs) != 1 || inputs[0].Kind != repositories.InputSynthesize {
		t.Fatalf("start sentinel must invoke synthesis only, got %+v", inputs)
	}
	greeting := entities.ExperienceFor(entities.ExperienceStorybook).Greeting
	if inputs[0].Text != greeting {
		t.Fatalf("synthesized text = %q, want the experience greeting", inputs[0].Text)
	}

	texts := sender.ofType("TEXT")
	if len(texts) != 1 {
		t.Fatalf("got %d TEXT events, want exactly 1", len(texts))
	}
	if txt := texts[0].(events.Text); txt.Text != greeting || !txt.Routing.Source.IsAgent {
		t.Fatalf("greeting TEXT malformed: %+v", txt)
	}
	if got := len(sender.ofType("AUDIO")); got != 2 {
		t.Fatalf("got %d AUDIO events, want 2", got)
	}
	if got := len(sender.ofType("newInteraction")); got != 1 {
		t.Fatalf("got %d newInteraction events, want 1", got)
	}

	msgs := sess.Messages()
	last := msgs[len(msgs)-1]
	if last.Role != entities.MessageRoleAssistant || last.Text != greeting {
		t.Fatalf("greeting not recorded as assistant turn: %+v", last)
	}
}

func TestTextTurnEmitsPairedTextAndAudio(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		userStateUpdate("", "tell me a story"),
		audioResult("", "Once upon a time", []byte{9}),
		audioResult("", "", []byte{10}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleText(sess, "tell me a story")
	waitFor(t, "interaction end", func() bool { return len(sender.ofType("INTERACTION_END")) == 1 })

	inputs := pipeline.inputs()
	if len(inputs) != 1 || inputs[0].Kind != repositories.InputText || inputs[0].Text != "tell me a story" {
		t.Fatalf("unexpected invocations: %+v", inputs)
	}
	if inputs[0].InteractionID == "" {
		t.Fatal("text invocation must carry a minted interaction id")
	}

	all := sender.all()
	if all[0].EventType() != "newInteraction" {
		t.Fatalf("first event = %s, want newInteraction", all[0].EventType())
	}
	if all[len(all)-1].EventType() != "INTERACTION_END" {
		t.Fatalf("last event = %s, want INTERACTION_END", all[len(all)-1].EventType())
	}
	if got := len(sender.ofType("TEXT")); got != 1 {
		t.Fatalf("got %d TEXT events, want 1", got)
	}
	if got := len(sender.ofType("AUDIO")); got != 2 {
		t.Fatalf("got %d AUDIO events, want 2", got)
	}

	// User turn plus assistant echo both land in history, in order.
	msgs := sess.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want system+user+assistant", len(msgs))
	}
	if msgs[1].Role != entities.MessageRoleUser || msgs[1].Text != "tell me a story" {
		t.Fatalf("user turn not recorded: %+v", msgs[1])
	}
	if msgs[2].Role != entities.MessageRoleAssistant || msgs[2].Text != "Once upon a time" {
		t.Fatalf("assistant echo not recorded: %+v", msgs[2])
	}
}

func TestQueuedTurnsSerialize(t *testing.T) {
	first := scriptedStream(audioResult("", "one", []byte{1}))
	first.gate = make(chan struct{})
	second := scriptedStream(audioResult("", "two", []byte{2}))

	pipeline := newFakePipeline(first, second)
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleText(sess, "first")
	waitFor(t, "first invocation", func() bool { return len(pipeline.inputs()) == 1 })

	coord.HandleText(sess, "second")
	time.Sleep(20 * time.Millisecond)
	if got := len(pipeline.inputs()); got != 1 {
		t.Fatalf("second turn invoked while first still draining: %d invocations", got)
	}

	close(first.gate)
	waitFor(t, "both interaction ends", func() bool { return len(sender.ofType("INTERACTION_END")) == 2 })
	if got := len(pipeline.inputs()); got != 2 {
		t.Fatalf("got %d invocations, want 2", got)
	}
}

func TestAudioFlowAdoptsPipelineInteraction(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		userStateUpdate("audio-int-1", "hello there"),
		repositories.Result{
			Kind: repositories.ResultControl,
			Control: &repositories.ControlResult{
				Kind:          repositories.ControlSpeechComplete,
				InteractionID: "audio-int-1",
				Speech:        &repositories.SpeechInfo{TotalSamples: 8000, SampleRate: 16000, EndpointingLatencyMs: 50},
			},
		},
		audioResult("audio-int-1", "hi!", []byte{5}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0, 0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	if got := sess.CurrentInteraction(); got != "audio-int-1" {
		t.Fatalf("coordinator did not adopt pipeline interaction id: %q", got)
	}

	news := sender.ofType("newInteraction")
	if len(news) != 1 || news[0].(events.NewInteraction).InteractionID != "audio-int-1" {
		t.Fatalf("unexpected newInteraction events: %+v", news)
	}
	texts := sender.ofType("TEXT")
	if len(texts) != 2 {
		t.Fatalf("got %d TEXT events, want transcript echo plus agent reply", len(texts))
	}
	if userTxt := texts[0].(events.Text); userTxt.Text != "hello there" || !userTxt.Routing.Source.IsUser {
		t.Fatalf("recognized transcript not echoed with user routing: %+v", userTxt)
	}
	if agentTxt := texts[1].(events.Text); agentTxt.Text != "hi!" || !agentTxt.Routing.Source.IsAgent {
		t.Fatalf("agent reply malformed: %+v", agentTxt)
	}
	completes := sender.ofType("USER_SPEECH_COMPLETE")
	if len(completes) != 1 {
		t.Fatalf("got %d USER_SPEECH_COMPLETE, want 1", len(completes))
	}
	if meta := completes[0].(events.UserSpeechComplete).Metadata; meta.TotalSamples != 8000 || meta.SampleRate != 16000 {
		t.Fatalf("unexpected speech metadata: %+v", meta)
	}
	if got := len(sender.ofType("AUDIO")); got != 1 {
		t.Fatalf("got %d AUDIO events, want 1", got)
	}

	// Resources are released on the way out.
	if _, _, _, ok := sess.AudioSegment(); ok {
		t.Fatal("audio segment must be cleared after drain")
	}
	handles := pipeline.audioHandles()
	if len(handles) != 1 || handles[0].destroyCount() == 0 {
		t.Fatal("audio pipeline instance must be destroyed after drain")
	}
}

func TestStaleInteractionAudioIsSuppressed(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		audioResult("old-int", "stale text", []byte{1}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	// A newer interaction has already taken over.
	sess.SetCurrentInteraction("new-int")

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	if got := len(sender.ofType("AUDIO")); got != 0 {
		t.Fatalf("stale audio leaked: %d AUDIO events", got)
	}
	if got := len(sender.ofType("TEXT")); got != 0 {
		t.Fatalf("stale text leaked: %d TEXT events", got)
	}
}

func TestStaleAudioEmittedWhenInterruptionAwarenessOff(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		audioResult("old-int", "", []byte{1}),
	))
	coord := New(pipeline, Options{InterruptionAware: false, Classifier: defaultClassifier()}, zap.NewNop())
	sess, sender := newTestSession()
	sess.SetCurrentInteraction("new-int")

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	if got := len(sender.ofType("AUDIO")); got != 1 {
		t.Fatalf("got %d AUDIO events, want 1 when awareness is off", got)
	}
}

func TestInterruptedControlEmitsCancelResponse(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		repositories.Result{
			Kind: repositories.ResultControl,
			Control: &repositories.ControlResult{
				Kind:          repositories.ControlInterrupted,
				InteractionID: "int-1",
			},
		},
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	cancels := sender.ofType("CANCEL_RESPONSE")
	if len(cancels) != 1 || cancels[0].(events.CancelResponse).PacketID.InteractionID != "int-1" {
		t.Fatalf("unexpected CANCEL_RESPONSE events: %+v", cancels)
	}
}

func TestSoftErrorIsSuppressed(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		errorResult(0, "no speech detected in audio"),
		audioResult("", "still here", []byte{1}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleText(sess, "hello")
	waitFor(t, "interaction end", func() bool { return len(sender.ofType("INTERACTION_END")) == 1 })

	if got := len(sender.ofType("ERROR")); got != 0 {
		t.Fatalf("soft error surfaced: %d ERROR events", got)
	}
	// The drain continued past the suppressed error.
	if got := len(sender.ofType("AUDIO")); got != 1 {
		t.Fatalf("got %d AUDIO events, want 1", got)
	}
}

func TestRecoverableErrorSurfacesAndDrainContinues(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		errorResult(0, "voice temporarily unavailable"),
		audioResult("", "", []byte{1}),
	))
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleText(sess, "hello")
	waitFor(t, "interaction end", func() bool { return len(sender.ofType("INTERACTION_END")) == 1 })

	if got := len(sender.ofType("ERROR")); got != 1 {
		t.Fatalf("got %d ERROR events, want 1", got)
	}
	if got := len(sender.ofType("AUDIO")); got != 1 {
		t.Fatalf("drain must continue past a recoverable error, got %d AUDIO events", got)
	}
}

func TestHardErrorStopsAudioDrainAndNextActivationIsFresh(t *testing.T) {
	failing := scriptedStream(
		errorResult(0, "context deadline exceeded"),
		audioResult("", "", []byte{1}), // must never be pulled
	)
	recovery := scriptedStream(audioResult("", "", []byte{2}))
	pipeline := newFakePipeline(failing, recovery)
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	if got := len(sender.ofType("ERROR")); got != 1 {
		t.Fatalf("got %d ERROR events, want exactly 1", got)
	}
	if got := len(sender.ofType("AUDIO")); got != 0 {
		t.Fatalf("hard failure must stop the drain, got %d AUDIO events", got)
	}
	if !failing.wasAborted() {
		t.Fatal("hard failure must abort the stream")
	}

	// The next activation builds a fresh instance with an incremented seq.
	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.HandleAudioSessionEnd(sess)

	handles := pipeline.audioHandles()
	if len(handles) != 2 {
		t.Fatalf("got %d audio instances, want 2", len(handles))
	}
	if handles[0].Seq() != 1 || handles[1].Seq() != 2 {
		t.Fatalf("seqs = %d,%d, want 1,2", handles[0].Seq(), handles[1].Seq())
	}
	if handles[0].destroyCount() == 0 {
		t.Fatal("failed instance must still be destroyed")
	}
	if got := len(sender.ofType("AUDIO")); got != 1 {
		t.Fatalf("recovery activation must emit, got %d AUDIO events", got)
	}
}

func TestHardErrorReleasesUnconsumedFrameSequence(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream(
		errorResult(0, "context deadline exceeded"),
	))
	pipeline.holdFrames = true
	coord := newTestCoordinator(pipeline)
	sess, _ := newTestSession()

	for i := byte(0); i < 3; i++ {
		coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{i}, SampleRate: 16000})
	}
	coord.HandleAudioSessionEnd(sess)

	// The execution never read a frame; after the drain's release the buffer
	// pump must still wind down and close the sequence instead of blocking on
	// undelivered frames forever.
	frames := pipeline.heldFrames()
	if frames == nil {
		t.Fatal("pipeline never received a frame sequence")
	}
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("frame sequence still open after the drain released its resources")
		}
	}
}

func TestConcurrentFirstFramesShareOrRestartSegment(t *testing.T) {
	streams := make([]*fakeStream, 8)
	for i := range streams {
		streams[i] = scriptedStream()
	}
	pipeline := newFakePipeline(streams...)
	coord := newTestCoordinator(pipeline)
	sess, _ := newTestSession()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{1}, SampleRate: 16000})
		}()
	}
	wg.Wait()
	coord.HandleAudioSessionEnd(sess)

	// Losers reuse the winner's segment or start fresh once it released;
	// either way nothing panics and every provisioned instance is destroyed.
	waitFor(t, "all audio instances destroyed", func() bool {
		handles := pipeline.audioHandles()
		if len(handles) == 0 {
			return false
		}
		for _, h := range handles {
			if h.destroyCount() == 0 {
				return false
			}
		}
		return true
	})
}

func TestUnloadedSessionStopsDrainOnUserUpdate(t *testing.T) {
	stream := scriptedStream(
		userStateUpdate("int-1", "hello"),
		audioResult("int-1", "", []byte{1}),
	)
	gate := make(chan struct{})
	stream.pregate = gate
	pipeline := newFakePipeline(stream)
	coord := newTestCoordinator(pipeline)
	sess, sender := newTestSession()

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	sess.MarkUnloaded()
	close(gate)
	coord.HandleAudioSessionEnd(sess)

	if !stream.wasAborted() {
		t.Fatal("drain must abort when the session unloads mid-flight")
	}
	if got := len(sender.ofType("AUDIO")); got != 0 {
		t.Fatalf("unloaded session must not receive audio, got %d events", got)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	pipeline := newFakePipeline(scriptedStream())
	coord := newTestCoordinator(pipeline)
	sess, _ := newTestSession()

	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	coord.Release(sess)
	coord.Release(sess)

	if !sess.Unloaded() {
		t.Fatal("release must mark the session unloaded")
	}
	if _, _, _, ok := sess.AudioSegment(); ok {
		t.Fatal("release must clear the audio segment")
	}
	handles := pipeline.audioHandles()
	if len(handles) != 1 {
		t.Fatalf("got %d audio instances, want 1", len(handles))
	}

	// Further inbound work is rejected without effect.
	coord.HandleText(sess, "hello")
	coord.HandleAudioFrame(sess, entities.AudioFrame{Samples: []byte{0}, SampleRate: 16000})
	time.Sleep(10 * time.Millisecond)
	if got := len(pipeline.audioHandles()); got != 1 {
		t.Fatalf("released session spawned new audio instance: %d", got)
	}
}

func TestHandleAudioSessionEndWithoutSegmentIsNoop(t *testing.T) {
	coord := newTestCoordinator(newFakePipeline())
	sess, _ := newTestSession()
	coord.HandleAudioSessionEnd(sess) // must not panic or block
}
