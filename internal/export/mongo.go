package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/leaderboard-crawler/internal/leaderboard"
)

// MongoConfig locates the target collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

type mongoRecord struct {
	RunID     string    `bson:"run_id"`
	CrawledAt time.Time `bson:"crawled_at"`

	leaderboard.Product `bson:",inline"`
}

// Mongo stores one document per product.
type Mongo struct {
	client     *mongo.Client
	collection inserter
	runID      string
	now        func() time.Time
}

// NewMongo connects and pings the server.
func NewMongo(ctx context.Context, cfg MongoConfig, runID string) (*Mongo, error) {
	if cfg.URI == "" || cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("export.mongo uri, database and collection are required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}
	s := newMongoWithCollection(client.Database(cfg.Database).Collection(cfg.Collection), runID)
	s.client = client
	return s, nil
}

func newMongoWithCollection(coll inserter, runID string) *Mongo {
	return &Mongo{collection: coll, runID: runID, now: time.Now}
}

// Write inserts p.
func (s *Mongo) Write(ctx context.Context, p leaderboard.Product) error {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Comments == nil {
		p.Comments = []leaderboard.Comment{}
	}
	doc := mongoRecord{RunID: s.runID, CrawledAt: s.now().UTC(), Product: p}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *Mongo) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongodb disconnect: %w", err)
	}
	return nil
}
