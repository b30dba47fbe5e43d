package strategy

import (
	"ictengine/internal/core"
)

// strategyRank weights a strategy's contribution to the priority score:
// A=3, C=2, B=1 (§4.8).
var strategyRank = map[string]int{
	"conservative": 3,
	"hybrid":       2,
	"aggressive":   1,
}

// PrioritySelector picks the single highest-scoring signal among the
// candidates produced in one evaluation batch (§4.8).
type PrioritySelector struct{}

// NewPrioritySelector constructs a PrioritySelector.
func NewPrioritySelector() *PrioritySelector {
	return &PrioritySelector{}
}

// Select returns the winning signal, or false if candidates is empty.
func (p *PrioritySelector) Select(candidates []core.Signal) (core.Signal, bool) {
	if len(candidates) == 0 {
		return core.Signal{}, false
	}

	best := candidates[0]
	bestScore := score(best)
	for _, c := range candidates[1:] {
		s := score(c)
		if s > bestScore || (s == bestScore && c.Timestamp < best.Timestamp) {
			best = c
			bestScore = s
		}
	}
	return best, true
}

// score computes 0.5*confidence + 0.3*min(rr/5,1) + 0.2*(rank/3) (§4.8).
func score(sig core.Signal) float64 {
	rr := sig.RiskReward.InexactFloat64()
	rrTerm := rr / 5.0
	if rrTerm > 1.0 {
		rrTerm = 1.0
	}
	rank := strategyRank[sig.StrategyID]
	return 0.5*sig.Confidence + 0.3*rrTerm + 0.2*(float64(rank)/3.0)
}
