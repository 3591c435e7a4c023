package explain

import (
	"math"
	"sort"

	"github.com/mikey/teethanalyzer/internal/core"
)

// Assessment labels, strongest first
const (
	StrongSupport   = "Strong Support"
	ModerateSupport = "Moderate Support"
	WeakEvidence    = "Weak/Mixed Evidence"
	Contradictory   = "Contradictory Evidence"
)

// Assess buckets the net support of an explanation
func Assess(netSupport float64) string {
	switch {
	case netSupport > 0.1:
		return StrongSupport
	case netSupport > 0.05:
		return ModerateSupport
	case netSupport > -0.05:
		return WeakEvidence
	default:
		return Contradictory
	}
}

// Rank orders segment weights by decreasing magnitude. Ties keep segment order.
func Rank(coef []float64) []core.SegmentWeight {
	ranked := make([]core.SegmentWeight, len(coef))
	for i, w := range coef {
		ranked[i] = core.SegmentWeight{Segment: i, Weight: w}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Weight) > math.Abs(ranked[j].Weight)
	})
	return ranked
}

// Top returns the first n ranked weights regardless of sign
func Top(ranked []core.SegmentWeight, n int) []core.SegmentWeight {
	return ranked[:min(n, len(ranked))]
}

// Supporting returns up to n of the strongest positive weights
func Supporting(ranked []core.SegmentWeight, n int) []core.SegmentWeight {
	return filter(ranked, n, func(w float64) bool { return w > 0 })
}

// Opposing returns up to n of the strongest negative weights
func Opposing(ranked []core.SegmentWeight, n int) []core.SegmentWeight {
	return filter(ranked, n, func(w float64) bool { return w < 0 })
}

func filter(ranked []core.SegmentWeight, n int, keep func(float64) bool) []core.SegmentWeight {
	var out []core.SegmentWeight
	for _, r := range ranked {
		if len(out) == n {
			break
		}
		if keep(r.Weight) {
			out = append(out, r)
		}
	}
	return out
}

// Summarize computes the evidence statistics for one explained class. Segments with
// zero weight count towards neither side.
func Summarize(disease string, s *Surrogate) core.ExplanationStatistics {
	stats := core.ExplanationStatistics{
		Disease:        disease,
		TotalRegions:   len(s.Coef),
		Intercept:      s.Intercept,
		SurrogateScore: s.Score,
	}

	for _, w := range s.Coef {
		switch {
		case w > 0:
			stats.SupportCount++
			stats.TotalSupport += w
			stats.MaxSupport = math.Max(stats.MaxSupport, w)
		case w < 0:
			stats.AgainstCount++
			stats.TotalAgainst += -w
			stats.MaxAgainst = math.Max(stats.MaxAgainst, -w)
		}
	}
	if stats.SupportCount > 0 {
		stats.MeanSupport = stats.TotalSupport / float64(stats.SupportCount)
	}
	if stats.AgainstCount > 0 {
		stats.MeanAgainst = stats.TotalAgainst / float64(stats.AgainstCount)
	}

	stats.NetSupport = stats.TotalSupport - stats.TotalAgainst
	stats.AssessmentLabel = Assess(stats.NetSupport)
	return stats
}
