package matcher

import (
	"math"
	"sort"
)

// Score assigns a confidence and tier to each candidate and returns them
// ordered by score descending, then record date and record id ascending.
// The input slice is not modified.
func Score(candidates []Candidate, config Config) []Candidate {
	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Score = score(c, config)
		c.Tier = TierWeak
		if c.MatchType == MatchTypeHint || c.MatchType == MatchTypeExact || c.Score >= config.StrongScoreThreshold {
			c.Tier = TierStrong
		}
		scored[i] = c
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.Date.Equal(b.Record.Date) {
			return a.Record.Date.Before(b.Record.Date)
		}
		return a.Record.ID < b.Record.ID
	})

	return scored
}

func score(c Candidate, config Config) float64 {
	switch c.MatchType {
	case MatchTypeHint:
		return 1.0
	case MatchTypeExact:
		return clamp(1 - config.DatePenaltyPerDay*float64(c.DateOffsetDays))
	case MatchTypeTolerance:
		if config.AmountTolerance.IsZero() {
			if c.AmountDiff.IsZero() {
				return 1.0
			}
			return 0
		}
		return clamp(1 - c.AmountDiff.Div(config.AmountTolerance).InexactFloat64())
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
