package poker

import (
	"math"
	"strconv"
)

// VoteSummary is the aggregate view over one round's vote set. It is pure
// derivation: every subscriber computes it locally from the same votes.
type VoteSummary struct {
	// Consensus is true when, specials excluded, exactly one distinct value
	// remains and at least one vote was cast.
	Consensus bool `json:"consensus"`
	// ConsensusValue is the shared value when Consensus holds. It may be
	// categorical: not every deck is numeric.
	ConsensusValue string `json:"consensusValue,omitempty"`
	// Average is the arithmetic mean of the numeric non-special votes,
	// formatted to one decimal place. Empty when no vote parses as a number.
	Average string `json:"average,omitempty"`
}

// Summarize aggregates a vote set. Input should already be restricted to
// voter participants (see Room.VoterVotes).
func Summarize(votes map[string]string) VoteSummary {
	var summary VoteSummary

	counted := make([]string, 0, len(votes))
	distinct := make(map[string]struct{})
	for _, v := range votes {
		if IsSpecial(v) {
			continue
		}
		counted = append(counted, v)
		distinct[v] = struct{}{}
	}

	if len(counted) > 0 && len(distinct) == 1 {
		summary.Consensus = true
		summary.ConsensusValue = counted[0]
	}

	var sum float64
	var numeric int
	for _, v := range counted {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		sum += n
		numeric++
	}
	if numeric > 0 {
		avg := sum / float64(numeric)
		summary.Average = strconv.FormatFloat(round1(avg), 'f', 1, 64)
	}

	return summary
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// ResolveEstimate picks the value an acceptance writes, in order: consensus
// value, then numeric average. ok is false when neither path resolves (no
// votes, or only specials / divergent categorical votes); in that case no
// estimate is written and the facilitator resolves manually.
func ResolveEstimate(votes map[string]string) (value string, ok bool) {
	summary := Summarize(votes)
	if summary.Consensus {
		return summary.ConsensusValue, true
	}
	if summary.Average != "" {
		return summary.Average, true
	}
	return "", false
}

// Progress reports how many voters have cast in the current round versus
// the number of voter participants. Shown while collecting; consensus is
// only meaningful once revealed.
func (r *Room) Progress() (voted, total int) {
	for _, p := range r.Participants {
		if p.Role != RoleVoter {
			continue
		}
		total++
		if _, ok := r.Votes[p.UserID]; ok {
			voted++
		}
	}
	return voted, total
}
