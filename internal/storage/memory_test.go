package storage

import (
	"context"
	"errors"
	"testing"

	"arenaevo/internal/model"
)

func TestMemoryStoreConformance(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveBot(context.Background(), model.BotRecord{ID: "b1"})
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestMemoryStoreCopiesRunSlices(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	run := model.RunSummary{ID: "r1", Survivors: []model.Survivor{{Recipe: "a"}}}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.Survivors[0].Recipe = "mutated"
	loaded, _, _ := store.GetRun(ctx, "r1")
	if loaded.Survivors[0].Recipe != "a" {
		t.Fatalf("stored run aliased caller slice: %+v", loaded.Survivors)
	}
}
