package session

import (
	"errors"
	"sync"
	"time"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/audiostream"
	"github.com/lumenkind/talespin/server/internal/events"
)

// ErrUnloaded is raised when a task touches a session that was torn down
// mid-flight. It terminates the current task only.
var ErrUnloaded = errors.New("session: session has been unloaded")

// Task is one queued unit of work for a session's serialized drain loop.
type Task func()

// Session is the runtime state of one logical conversation. All mutation goes
// through methods holding the session mutex; the coordinator's per-session
// queue is the sole gate for top-level turns.
type Session struct {
	ID         string
	UserName   string
	Experience entities.ExperienceType
	CreatedAt  time.Time

	mu         sync.Mutex
	voiceID    string
	sttService string
	answers    map[string]string
	messages   []entities.Message
	transport  events.Sender
	unloaded   bool

	currentInteractionID string

	// Serialized text-turn queue.
	tasks    []Task
	draining bool

	// Active audio segment, owned exclusively by this session.
	audioBuffer *audiostream.Buffer
	audioHandle repositories.PipelineHandle
	audioDrain  chan struct{}
}

// New builds a session seeded with its system message.
func New(id, userName, voiceID string, experience entities.ExperienceType, sttService string) *Session {
	return &Session{
		ID:         id,
		UserName:   userName,
		Experience: experience,
		CreatedAt:  time.Now(),
		voiceID:    voiceID,
		sttService: sttService,
		answers:    make(map[string]string),
		messages: []entities.Message{{
			Role:      entities.MessageRoleSystem,
			Text:      entities.SystemMessageFor(experience, userName),
			Timestamp: time.Now(),
		}},
	}
}

// AttachTransport sets the live transport handle. At most one is live; a new
// connection replaces the old handle.
func (s *Session) AttachTransport(t events.Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// Send delivers an event over the attached transport. With no transport, or
// after unload, it is a silent no-op.
func (s *Session) Send(event events.Event) {
	s.mu.Lock()
	t := s.transport
	unloaded := s.unloaded
	s.mu.Unlock()
	if t == nil || unloaded {
		return
	}
	t.Send(event)
}

// AppendMessage appends to the conversation history.
func (s *Session) AppendMessage(msg entities.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages = append(s.messages, msg)
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []entities.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SetAnswer records a per-experience answered question.
func (s *Session) SetAnswer(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[key] = value
}

// VoiceID returns the selected voice.
func (s *Session) VoiceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voiceID
}

// STTService returns the selected speech-to-text service.
func (s *Session) STTService() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sttService
}

// Snapshot captures the state a pipeline execution reads.
func (s *Session) Snapshot() repositories.StateSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	messages := make([]entities.Message, len(s.messages))
	copy(messages, s.messages)
	return repositories.StateSnapshot{
		SessionID:  s.ID,
		UserName:   s.UserName,
		VoiceID:    s.voiceID,
		Experience: s.Experience,
		Messages:   messages,
	}
}

// MarkUnloaded makes the session reject further inbound work.
func (s *Session) MarkUnloaded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloaded = true
}

// Unloaded reports whether the session was torn down.
func (s *Session) Unloaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unloaded
}

// SetCurrentInteraction advances the active interaction id, staling the
// previous one.
func (s *Session) SetCurrentInteraction(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentInteractionID = id
}

// CurrentInteraction returns the active interaction id, empty when none.
func (s *Session) CurrentInteraction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentInteractionID
}

// Enqueue appends a task to the serialized drain queue. It reports whether
// the caller must start the drain loop (no drain was running).
func (s *Session) Enqueue(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unloaded {
		return false
	}
	s.tasks = append(s.tasks, task)
	if s.draining {
		return false
	}
	s.draining = true
	return true
}

// NextTask pops the next queued task. When the queue is empty the drain flag
// clears and ok is false.
func (s *Session) NextTask() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		s.draining = false
		return nil, false
	}
	task := s.tasks[0]
	s.tasks = s.tasks[1:]
	return task, true
}

// BeginAudioSegment installs a fresh buffer, pipeline handle, and drain join
// point. It reports false when a segment is already active.
func (s *Session) BeginAudioSegment(buf *audiostream.Buffer, handle repositories.PipelineHandle, drainDone chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioBuffer != nil {
		return false
	}
	s.audioBuffer = buf
	s.audioHandle = handle
	s.audioDrain = drainDone
	return true
}

// AudioSegment returns the active segment state, if any.
func (s *Session) AudioSegment() (*audiostream.Buffer, repositories.PipelineHandle, chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.audioBuffer == nil {
		return nil, nil, nil, false
	}
	return s.audioBuffer, s.audioHandle, s.audioDrain, true
}

// ClearAudioSegment releases the segment state so the next activation builds
// fresh resources.
func (s *Session) ClearAudioSegment() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioBuffer = nil
	s.audioHandle = nil
	s.audioDrain = nil
}
