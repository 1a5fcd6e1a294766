package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"arenaevo/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion stamps records written by this build.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeBot(b model.BotRecord) ([]byte, error) {
	return json.Marshal(b)
}

func DecodeBot(data []byte) (model.BotRecord, error) {
	var bot model.BotRecord
	if err := json.Unmarshal(data, &bot); err != nil {
		return model.BotRecord{}, err
	}
	if err := checkVersion(bot.VersionedRecord); err != nil {
		return model.BotRecord{}, err
	}
	return bot, nil
}

func EncodeRun(r model.RunSummary) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunSummary, error) {
	var run model.RunSummary
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunSummary{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunSummary{}, err
	}
	return run, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

// rankBots orders bots best score first, ties by id, and applies limit
// when it is positive.
func rankBots(bots []model.BotRecord, limit int) []model.BotRecord {
	sort.SliceStable(bots, func(i, j int) bool {
		if bots[i].Score != bots[j].Score {
			return bots[i].Score > bots[j].Score
		}
		return bots[i].ID < bots[j].ID
	})
	if limit > 0 && len(bots) > limit {
		bots = bots[:limit]
	}
	return bots
}
