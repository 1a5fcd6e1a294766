package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
)

// ScoreEntry is one line of the score log.
type ScoreEntry struct {
	Generation int
	Score      float64
	Kind       string
	Recipe     string
}

// ScoreLog appends improving recipes to a CSV file. Lines are never
// rewritten.
type ScoreLog struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func OpenScoreLog(path string) (*ScoreLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open score log: %w", err)
	}
	return &ScoreLog{file: file, writer: csv.NewWriter(file)}, nil
}

func (l *ScoreLog) Append(entry ScoreEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Write([]string{
		strconv.Itoa(entry.Generation),
		formatFloat(entry.Score),
		entry.Kind,
		entry.Recipe,
	}); err != nil {
		return err
	}
	l.writer.Flush()
	return l.writer.Error()
}

func (l *ScoreLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func ReadScoreLog(path string) ([]ScoreEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 4
	var entries []ScoreEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		generation, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("score log generation: %w", err)
		}
		score, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("score log score: %w", err)
		}
		entries = append(entries, ScoreEntry{Generation: generation, Score: score, Kind: record[2], Recipe: record[3]})
	}
}
