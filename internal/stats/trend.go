package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"arenaevo/internal/model"
)

// TrendPoint aggregates one generation index across several runs.
type TrendPoint struct {
	Generation    int     `json:"generation"`
	Runs          int     `json:"runs"`
	BestMean      float64 `json:"best_mean"`
	BestMax       float64 `json:"best_max"`
	ThresholdMean float64 `json:"threshold_mean"`
}

// BuildTrend lines the reports of several runs up by position. A run that
// ended early stops contributing once its reports run out.
func BuildTrend(runs [][]model.GenerationReport) []TrendPoint {
	var points []TrendPoint
	for i := 0; ; i++ {
		var best, thresholds []float64
		generation := -1
		for _, reports := range runs {
			if i >= len(reports) {
				continue
			}
			if generation < 0 {
				generation = reports[i].Generation
			}
			best = append(best, reports[i].BestScore)
			thresholds = append(thresholds, reports[i].Threshold)
		}
		if len(best) == 0 {
			return points
		}
		points = append(points, TrendPoint{
			Generation:    generation,
			Runs:          len(best),
			BestMean:      stat.Mean(best, nil),
			BestMax:       floats.Max(best),
			ThresholdMean: stat.Mean(thresholds, nil),
		})
	}
}
