package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"arenaevo/internal/model"
)

const (
	mongoDatabase    = "arenaevo"
	mongoBots        = "bots"
	mongoRuns        = "runs"
	mongoOpTimeout   = 5 * time.Second
	mongoDialTimeout = 10 * time.Second
)

// MongoStore keeps bots and runs as documents in two collections.
type MongoStore struct {
	uri string

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(uri string) *MongoStore {
	return &MongoStore{uri: uri}
}

func (s *MongoStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.uri == "" {
		return errors.New("mongo uri is required")
	}
	if s.db != nil {
		return nil
	}

	ctxConnect, cancel := context.WithTimeout(ctx, mongoDialTimeout)
	defer cancel()

	client, err := mongo.Connect(ctxConnect, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctxConnect, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(mongoDatabase)
	_, err = db.Collection(mongoBots).Indexes().CreateOne(ctxConnect, mongo.IndexModel{
		Keys: bson.D{{Key: "game", Value: 1}, {Key: "score", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("create mongo index: %w", err)
	}

	s.client = client
	s.db = db
	return nil
}

func (s *MongoStore) database() (*mongo.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *MongoStore) SaveBot(ctx context.Context, bot model.BotRecord) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err = db.Collection(mongoBots).ReplaceOne(ctx, bson.M{"_id": bot.ID}, bot, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetBot(ctx context.Context, id string) (model.BotRecord, bool, error) {
	db, err := s.database()
	if err != nil {
		return model.BotRecord{}, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var bot model.BotRecord
	err = db.Collection(mongoBots).FindOne(ctx, bson.M{"_id": id}).Decode(&bot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.BotRecord{}, false, nil
	}
	if err != nil {
		return model.BotRecord{}, false, err
	}
	if err := checkVersion(bot.VersionedRecord); err != nil {
		return model.BotRecord{}, false, fmt.Errorf("decode bot %s: %w", id, err)
	}
	return bot, true, nil
}

func (s *MongoStore) ListBots(ctx context.Context, game string, limit int) ([]model.BotRecord, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	filter := bson.M{}
	if game != "" {
		filter["game"] = game
	}
	opts := options.Find().SetSort(bson.D{{Key: "score", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := db.Collection(mongoBots).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []model.BotRecord
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) SaveRun(ctx context.Context, run model.RunSummary) error {
	db, err := s.database()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	_, err = db.Collection(mongoRuns).ReplaceOne(ctx, bson.M{"_id": run.ID}, run, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) GetRun(ctx context.Context, id string) (model.RunSummary, bool, error) {
	db, err := s.database()
	if err != nil {
		return model.RunSummary{}, false, err
	}
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var run model.RunSummary
	err = db.Collection(mongoRuns).FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.RunSummary{}, false, nil
	}
	if err != nil {
		return model.RunSummary{}, false, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunSummary{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return run, true, nil
}

func (s *MongoStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOpTimeout)
	defer cancel()
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.db = nil
	return err
}
