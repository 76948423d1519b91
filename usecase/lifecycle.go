package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/entities"
	"github.com/lumenkind/talespin/server/domain/repositories"
	"github.com/lumenkind/talespin/server/internal/config"
	"github.com/lumenkind/talespin/server/internal/coordinator"
	"github.com/lumenkind/talespin/server/internal/session"
)

// ErrValidation marks bootstrap requests with bad or missing fields.
var ErrValidation = errors.New("validation error")

// ErrConfiguration marks bootstrap failures caused by an unprovisioned
// external capability.
var ErrConfiguration = errors.New("configuration error")

// BootstrapRequest is the session-bootstrap input.
type BootstrapRequest struct {
	Agent          string `json:"agent"`
	UserName       string `json:"userName"`
	VoiceID        string `json:"voiceId,omitempty"`
	ExperienceType string `json:"experienceType,omitempty"`
	STTService     string `json:"sttService,omitempty"`
}

// Lifecycle orchestrates session creation, teardown, and process shutdown.
// The heavy lifting is delegated to the store and the coordinator.
type Lifecycle struct {
	store    *session.Store
	pipeline repositories.GenerationPipeline
	coord    *coordinator.Coordinator
	archive  repositories.TranscriptArchive
	cfg      config.Config
	logger   *zap.Logger
}

// NewLifecycle wires the lifecycle manager. archive may be nil.
func NewLifecycle(
	store *session.Store,
	pipeline repositories.GenerationPipeline,
	coord *coordinator.Coordinator,
	archive repositories.TranscriptArchive,
	cfg config.Config,
	logger *zap.Logger,
) *Lifecycle {
	return &Lifecycle{
		store:    store,
		pipeline: pipeline,
		coord:    coord,
		archive:  archive,
		cfg:      cfg,
		logger:   logger,
	}
}

// Bootstrap validates the request, seeds the session with its experience
// system message, and registers it. The transport attaches later, when the
// client opens its connection.
func (l *Lifecycle) Bootstrap(ctx context.Context, req BootstrapRequest) (*session.Session, error) {
	if req.Agent == "" {
		return nil, fmt.Errorf("%w: agent is required", ErrValidation)
	}
	if req.UserName == "" {
		return nil, fmt.Errorf("%w: userName is required", ErrValidation)
	}
	if !l.cfg.STTConfigured(req.STTService) {
		return nil, fmt.Errorf("%w: speech-to-text service %q is not provisioned", ErrConfiguration, req.STTService)
	}

	sttService := req.STTService
	if sttService == "" {
		sttService = l.cfg.DefaultSTTService
	}

	sess := session.New(
		uuid.NewString(),
		req.UserName,
		req.VoiceID,
		entities.ExperienceType(req.ExperienceType),
		sttService,
	)
	if err := l.store.Put(sess); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	l.logger.Info("Session bootstrapped",
		zap.String("sessionID", sess.ID),
		zap.String("experience", string(sess.Experience)))
	return sess, nil
}

// Warmup provisions the shared text pipeline ahead of the first turn so
// session startup never pays the creation cost. Failure is non-fatal; the
// first turn will retry creation.
func (l *Lifecycle) Warmup(ctx context.Context) {
	if _, err := l.pipeline.Create(ctx, repositories.PipelineText, "", repositories.PipelineConfig{}); err != nil {
		l.logger.Warn("Failed to warm up shared text pipeline", zap.Error(err))
		return
	}
	l.logger.Info("Shared text pipeline warmed up")
}

// Teardown releases a session's resources and removes it from the store. It
// reports whether the id was live; calling it twice is safe and the second
// call releases nothing.
func (l *Lifecycle) Teardown(ctx context.Context, sessionID string) (found bool, err error) {
	sess, err := l.store.Get(sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// Mark-then-remove: further inbound messages are rejected while the
	// audio drain joins.
	l.coord.Release(sess)

	if l.archive != nil {
		archiveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		transcript := repositories.Transcript{
			SessionID:  sess.ID,
			UserName:   sess.UserName,
			Experience: sess.Experience,
			Messages:   sess.Messages(),
			ArchivedAt: time.Now(),
		}
		if err := l.archive.Save(archiveCtx, transcript); err != nil {
			l.logger.Warn("Failed to archive transcript",
				zap.String("sessionID", sess.ID),
				zap.Error(err))
		}
	}

	l.store.Remove(sessionID)
	l.logger.Info("Session torn down", zap.String("sessionID", sessionID))
	return true, nil
}

// Shutdown tears down the shared text pipeline and any remaining sessions.
// Called once on process exit signals.
func (l *Lifecycle) Shutdown(ctx context.Context) {
	handle, err := l.pipeline.Create(ctx, repositories.PipelineText, "", repositories.PipelineConfig{})
	if err == nil {
		if err := l.pipeline.Destroy(handle); err != nil {
			l.logger.Warn("Failed to destroy shared text pipeline", zap.Error(err))
		}
	}
	l.logger.Info("Lifecycle shutdown complete")
}

// Session exposes store lookup for transports and handlers.
func (l *Lifecycle) Session(id string) (*session.Session, error) {
	return l.store.Get(id)
}
