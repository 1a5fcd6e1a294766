package stats

import (
	"path/filepath"
	"testing"
)

func TestScoreLogAppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	network := `{"layers":[{"nodes":[{"input_weights":[0.5,0.25],"bias":0.1}]}]}`

	log, err := OpenScoreLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := log.Append(ScoreEntry{Generation: 0, Score: 2.5, Kind: "circuit", Recipe: "NODE_INPUT,NODE_OUTPUT:0"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	log, err = OpenScoreLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := log.Append(ScoreEntry{Generation: 3, Score: -1, Kind: "network", Recipe: network}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	entries, err := ReadScoreLog(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries=%d want 2", len(entries))
	}
	if entries[0].Recipe != "NODE_INPUT,NODE_OUTPUT:0" || entries[0].Score != 2.5 {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Recipe != network || entries[1].Generation != 3 || entries[1].Kind != "network" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
}
