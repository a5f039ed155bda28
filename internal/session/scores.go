package session

import "math"

// Score weighting for the session quality blend.
const (
	toolWeight    = 0.4
	cacheWeight   = 0.3
	latencyWeight = 0.3

	// API latency below fastAPIMs scores full marks; above slowAPIMs
	// it scores zero, linear in between.
	fastAPIMs = 2000.0
	slowAPIMs = 30000.0

	// tokensPerDollarCeiling is the throughput that maps to a 100
	// efficiency score.
	tokensPerDollarCeiling = 200000.0
)

// QualityScore blends tool success rate, cache hit ratio, and average
// api latency into a 0-100 heuristic for the session.
func (s *Session) QualityScore() float64 {
	toolScore := s.ToolSuccessRate() * 100

	cacheScore := s.CacheHitRatio() * 100

	latencyScore := 100.0
	if stats := ComputeLatencyStats(s.APILatencies); stats != nil {
		switch {
		case stats.Avg <= fastAPIMs:
			latencyScore = 100
		case stats.Avg >= slowAPIMs:
			latencyScore = 0
		default:
			latencyScore = 100 * (slowAPIMs - stats.Avg) / (slowAPIMs - fastAPIMs)
		}
	}

	score := toolWeight*toolScore + cacheWeight*cacheScore + latencyWeight*latencyScore
	return math.Round(clamp(score, 0, 100)*10) / 10
}

// EfficiencyScore maps tokens-per-dollar onto 0-100. Only meaningful
// when the session accrued cost; callers must check TotalCost > 0.
func (s *Session) EfficiencyScore() float64 {
	if s.TotalCost <= 0 {
		return 0
	}
	perDollar := float64(s.TotalTokens) / s.TotalCost
	return math.Round(clamp(perDollar/tokensPerDollarCeiling*100, 0, 100)*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
