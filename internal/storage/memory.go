package storage

import (
	"context"
	"sync"

	"arenaevo/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	bots        map[string]model.BotRecord
	runs        map[string]model.RunSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.bots = make(map[string]model.BotRecord)
	s.runs = make(map[string]model.RunSummary)
	return nil
}

func (s *MemoryStore) SaveBot(_ context.Context, bot model.BotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.bots[bot.ID] = bot
	return nil
}

func (s *MemoryStore) GetBot(_ context.Context, id string) (model.BotRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bot, ok := s.bots[id]
	return bot, ok, nil
}

func (s *MemoryStore) ListBots(_ context.Context, game string, limit int) ([]model.BotRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.BotRecord, 0, len(s.bots))
	for _, bot := range s.bots {
		if game == "" || bot.Game == game {
			out = append(out, bot)
		}
	}
	return rankBots(out, limit), nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	run.Generations = append([]model.GenerationReport(nil), run.Generations...)
	run.Survivors = append([]model.Survivor(nil), run.Survivors...)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}
