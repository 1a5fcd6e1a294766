package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"arenaevo/internal/model"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	generationsFile = "generations.csv"
	survivorsFile   = "survivors.json"
)

var generationsHeader = []string{
	"generation", "candidates", "evaluated", "dropped", "passed", "survivors",
	"best_score", "mean_score", "std_dev_score", "threshold", "improved",
}

type RunArtifacts struct {
	RunID       string                   `json:"run_id"`
	Config      model.RunConfig          `json:"config"`
	Generations []model.GenerationReport `json:"generations"`
	Survivors   []model.Survivor         `json:"survivors"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Game         string  `json:"game"`
	Mode         string  `json:"mode"`
	Generations  int     `json:"generations"`
	Seed         int64   `json:"seed"`
	Workers      int     `json:"workers"`
	BestScore    float64 `json:"best_score"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts stores a finished run under baseDir/<run id> and returns
// that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeGenerations(filepath.Join(runDir, generationsFile), artifacts.Generations); err != nil {
		return "", err
	}
	survivors := artifacts.Survivors
	if survivors == nil {
		survivors = []model.Survivor{}
	}
	if err := writeJSON(filepath.Join(runDir, survivorsFile), survivors); err != nil {
		return "", err
	}
	return runDir, nil
}

func writeGenerations(path string, reports []model.GenerationReport) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(generationsHeader); err != nil {
		return err
	}
	for _, r := range reports {
		if err := writer.Write([]string{
			strconv.Itoa(r.Generation),
			strconv.Itoa(r.Candidates),
			strconv.Itoa(r.Evaluated),
			strconv.Itoa(r.Dropped),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Survivors),
			formatFloat(r.BestScore),
			formatFloat(r.MeanScore),
			formatFloat(r.StdDevScore),
			formatFloat(r.Threshold),
			strconv.FormatBool(r.Improved),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadGenerations loads generations.csv for runID.
func ReadGenerations(baseDir, runID string) ([]model.GenerationReport, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, generationsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(generationsHeader)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationReport{}, true, nil
		}
		return nil, false, err
	}

	var reports []model.GenerationReport
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		r, err := parseGeneration(record)
		if err != nil {
			return nil, false, fmt.Errorf("parse %s: %w", generationsFile, err)
		}
		r.RunID = runID
		reports = append(reports, r)
	}
	return reports, true, nil
}

func parseGeneration(record []string) (model.GenerationReport, error) {
	var (
		r    model.GenerationReport
		err  error
		ints = []*int{&r.Generation, &r.Candidates, &r.Evaluated, &r.Dropped, &r.Passed, &r.Survivors}
		fls  = []*float64{&r.BestScore, &r.MeanScore, &r.StdDevScore, &r.Threshold}
	)
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(record[i]); err != nil {
			return r, err
		}
	}
	for i, dst := range fls {
		if *dst, err = strconv.ParseFloat(record[len(ints)+i], 64); err != nil {
			return r, err
		}
	}
	r.Improved, err = strconv.ParseBool(record[len(ints)+len(fls)])
	return r, err
}

func ReadRunConfig(baseDir, runID string) (model.RunConfig, bool, error) {
	var cfg model.RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadSurvivors(baseDir, runID string) ([]model.Survivor, bool, error) {
	var survivors []model.Survivor
	ok, err := readJSON(filepath.Join(baseDir, runID, survivorsFile), &survivors)
	return survivors, ok, err
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, dst any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}
