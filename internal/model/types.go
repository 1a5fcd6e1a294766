package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version" bson:"schema_version"`
	CodecVersion  int `json:"codec_version" bson:"codec_version"`
}

// BotRecord is a persisted genome recipe together with the score it earned.
type BotRecord struct {
	VersionedRecord `bson:",inline"`
	ID              string    `json:"id" bson:"_id"`
	Name            string    `json:"name" bson:"name"`
	Game            string    `json:"game" bson:"game"`
	Kind            string    `json:"kind" bson:"kind"`
	Recipe          string    `json:"recipe" bson:"recipe"`
	Score           float64   `json:"score" bson:"score"`
	Generation      int       `json:"generation" bson:"generation"`
	RunID           string    `json:"run_id,omitempty" bson:"run_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
}

// RunConfig describes how a run was launched.
type RunConfig struct {
	Game           string    `json:"game" bson:"game"`
	Bots           [2]string `json:"bots" bson:"bots"`
	Mode           string    `json:"mode" bson:"mode"`
	SubjectSide    int       `json:"subject_side" bson:"subject_side"`
	BatchSize      int       `json:"batch_size" bson:"batch_size"`
	Exhaustive     bool      `json:"exhaustive" bson:"exhaustive"`
	Generations    int       `json:"generations" bson:"generations"`
	Samples        int       `json:"samples" bson:"samples"`
	Keep           int       `json:"keep" bson:"keep"`
	Wild           int       `json:"wild" bson:"wild"`
	Workers        int       `json:"workers" bson:"workers"`
	Seed           int64     `json:"seed" bson:"seed"`
	ChildLimit     int       `json:"child_limit,omitempty" bson:"child_limit,omitempty"`
	MaxEvaluations int       `json:"max_evaluations,omitempty" bson:"max_evaluations,omitempty"`
}

// GenerationReport summarises one generation of an evolution run, or one
// batch of evaluations of a climb.
type GenerationReport struct {
	RunID       string  `json:"run_id" bson:"run_id"`
	Generation  int     `json:"generation" bson:"generation"`
	Candidates  int     `json:"candidates" bson:"candidates"`
	Evaluated   int     `json:"evaluated" bson:"evaluated"`
	Dropped     int     `json:"dropped" bson:"dropped"`
	Passed      int     `json:"passed" bson:"passed"`
	Survivors   int     `json:"survivors" bson:"survivors"`
	BestScore   float64 `json:"best_score" bson:"best_score"`
	MeanScore   float64 `json:"mean_score" bson:"mean_score"`
	StdDevScore float64 `json:"std_dev_score" bson:"std_dev_score"`
	Threshold   float64 `json:"threshold" bson:"threshold"`
	Improved    bool    `json:"improved" bson:"improved"`
}

type Survivor struct {
	Kind       string  `json:"kind" bson:"kind"`
	Recipe     string  `json:"recipe" bson:"recipe"`
	Score      float64 `json:"score" bson:"score"`
	Generation int     `json:"generation" bson:"generation"`
}

// RunSummary is the persisted outcome of one evolution or climb run.
type RunSummary struct {
	VersionedRecord `bson:",inline"`
	ID              string             `json:"id" bson:"_id"`
	Config          RunConfig          `json:"config" bson:"config"`
	Status          string             `json:"status" bson:"status"`
	Error           string             `json:"error,omitempty" bson:"error,omitempty"`
	Generations     []GenerationReport `json:"generations" bson:"generations"`
	Survivors       []Survivor         `json:"survivors" bson:"survivors"`
	Threshold       float64            `json:"threshold" bson:"threshold"`
	StartedAt       time.Time          `json:"started_at" bson:"started_at"`
	FinishedAt      time.Time          `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}
