package evo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"arenaevo/internal/model"
	"arenaevo/internal/stats"
	"arenaevo/internal/storage"
)

// Entry is one improving recipe handed to a Sink.
type Entry struct {
	RunID      string
	Game       string
	Kind       string
	Recipe     string
	Score      float64
	Generation int
}

// Sink persists improving recipes. It is only ever called from the
// coordinating goroutine, so implementations need no locking of their own.
type Sink interface {
	Persist(ctx context.Context, entry Entry) error
}

// Sinks fans one entry out to several sinks and stops at the first error.
type Sinks []Sink

func (s Sinks) Persist(ctx context.Context, entry Entry) error {
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Persist(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// ScoreLogSink appends entries to an append-only score log.
type ScoreLogSink struct {
	Log *stats.ScoreLog
}

func (s ScoreLogSink) Persist(_ context.Context, entry Entry) error {
	if err := s.Log.Append(stats.ScoreEntry{
		Generation: entry.Generation,
		Score:      entry.Score,
		Kind:       entry.Kind,
		Recipe:     entry.Recipe,
	}); err != nil {
		return fmt.Errorf("append score log: %w", err)
	}
	return nil
}

// StoreSink saves every entry as a new bot record.
type StoreSink struct {
	Store storage.Store
	Name  string
	Now   func() time.Time
}

func (s StoreSink) Persist(ctx context.Context, entry Entry) error {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	name := s.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s-g%d", entry.Game, entry.Kind, entry.Generation)
	}
	record := model.BotRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              uuid.NewString(),
		Name:            name,
		Game:            entry.Game,
		Kind:            entry.Kind,
		Recipe:          entry.Recipe,
		Score:           entry.Score,
		Generation:      entry.Generation,
		RunID:           entry.RunID,
		CreatedAt:       now().UTC(),
	}
	if err := s.Store.SaveBot(ctx, record); err != nil {
		return fmt.Errorf("save bot %s: %w", record.ID, err)
	}
	return nil
}
