package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/lumenkind/talespin/server/domain/repositories"
)

// Client wraps the MongoDB client and database used for transcript archival.
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to MongoDB and verifies the connection.
func NewClient(uri, dbName string, logger *zap.Logger) (*Client, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	if dbName == "" {
		dbName = "talespin"
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", dbName))
	return &Client{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	return nil
}

// TranscriptArchive persists completed session transcripts.
type TranscriptArchive struct {
	collection *mongo.Collection
}

var _ repositories.TranscriptArchive = (*TranscriptArchive)(nil)

// NewTranscriptArchive creates the archive over the client's database.
func NewTranscriptArchive(db *mongo.Database) *TranscriptArchive {
	return &TranscriptArchive{collection: db.Collection("transcripts")}
}

// Save inserts one transcript document.
func (a *TranscriptArchive) Save(ctx context.Context, transcript repositories.Transcript) error {
	if transcript.SessionID == "" {
		return fmt.Errorf("transcript session id cannot be empty")
	}
	if transcript.ArchivedAt.IsZero() {
		transcript.ArchivedAt = time.Now()
	}
	if _, err := a.collection.InsertOne(ctx, transcript); err != nil {
		return fmt.Errorf("failed to archive transcript %s: %w", transcript.SessionID, err)
	}
	return nil
}
