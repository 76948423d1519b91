package repositories

import (
	"context"
	"time"

	"github.com/lumenkind/talespin/server/domain/entities"
)

// Transcript is the archived record of one completed session.
type Transcript struct {
	SessionID  string                  `bson:"session_id"`
	UserName   string                  `bson:"user_name"`
	Experience entities.ExperienceType `bson:"experience"`
	Messages   []entities.Message      `bson:"messages"`
	ArchivedAt time.Time               `bson:"archived_at"`
}

// TranscriptArchive persists completed session transcripts. Optional at
// runtime; teardown proceeds without it.
type TranscriptArchive interface {
	Save(ctx context.Context, transcript Transcript) error
}
