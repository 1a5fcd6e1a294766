package fitness

import "arenaevo/internal/game"

// Record aggregates match results for both sides. Every field is a sum or a
// count, so the order results are added in never changes the record.
type Record struct {
	Matches           int        `json:"matches"`
	Totals            [2]float64 `json:"totals"`
	Wins              [2]int     `json:"wins"`
	Draws             int        `json:"draws"`
	Disqualifications [2]int     `json:"disqualifications"`
	Exhaustive        bool       `json:"exhaustive"`
}

func (r *Record) Add(res game.Result) {
	r.Matches++
	for side := range r.Totals {
		r.Totals[side] += res.Scores[side]
	}
	switch {
	case res.Disqualified >= 0:
		r.Disqualifications[res.Disqualified]++
		r.Wins[1-res.Disqualified]++
	case res.Tie():
		r.Draws++
	case res.Winner >= 0:
		r.Wins[res.Winner]++
	}
}

func (r *Record) Merge(other Record) {
	r.Matches += other.Matches
	r.Draws += other.Draws
	for side := 0; side < 2; side++ {
		r.Totals[side] += other.Totals[side]
		r.Wins[side] += other.Wins[side]
		r.Disqualifications[side] += other.Disqualifications[side]
	}
	r.Exhaustive = r.Exhaustive || other.Exhaustive
}

// Mean is the average score of side, zero for an empty record.
func (r Record) Mean(side int) float64 {
	if r.Matches == 0 {
		return 0
	}
	return r.Totals[side] / float64(r.Matches)
}

func (r Record) Losses(side int) int {
	return r.Matches - r.Draws - r.Wins[side]
}
