package stats

import (
	"testing"

	"arenaevo/internal/model"
)

func TestBuildTrend(t *testing.T) {
	runs := [][]model.GenerationReport{
		{{Generation: 0, BestScore: 1, Threshold: -10}, {Generation: 1, BestScore: 2, Threshold: -5}, {Generation: 2, BestScore: 3}},
		{{Generation: 0, BestScore: 3, Threshold: -20}, {Generation: 1, BestScore: 6, Threshold: -7}},
		{},
	}
	points := BuildTrend(runs)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d (%+v)", len(points), points)
	}
	if points[0].Runs != 2 || points[0].BestMean != 2 || points[0].BestMax != 3 || points[0].ThresholdMean != -15 {
		t.Fatalf("unexpected first point %+v", points[0])
	}
	if points[1].BestMean != 4 || points[1].BestMax != 6 || points[1].ThresholdMean != -6 {
		t.Fatalf("unexpected second point %+v", points[1])
	}
	if points[2].Generation != 2 || points[2].Runs != 1 || points[2].BestMax != 3 {
		t.Fatalf("unexpected last point %+v", points[2])
	}
	if got := BuildTrend(nil); len(got) != 0 {
		t.Fatalf("expected no points, got %+v", got)
	}
}
