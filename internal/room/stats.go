package room

import (
	"strconv"

	"github.com/pointroom/pointroom/internal/models"
)

// computeStats derives VoteStats from a room's votes, or nil while the room
// is not revealed. Min and max compare parsed numbers, not tokens, so "13"
// never sorts below "2". Tokens that fail to parse count as zero; the deck
// is all-numeric so that path is unreachable in practice, but it keeps the
// result defined for any input.
func computeStats(rm *models.Room) *models.VoteStats {
	if !rm.IsRevealed {
		return nil
	}

	var tokens []string
	for _, v := range rm.Votes {
		if v.Value != "" {
			tokens = append(tokens, v.Value)
		}
	}

	stats := &models.VoteStats{Distribution: make(map[string]int)}
	if len(tokens) == 0 {
		return stats
	}

	var sum float64
	var minVal, maxVal float64
	for i, tok := range tokens {
		n, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			n = 0
		}
		if i == 0 || n < minVal {
			minVal = n
		}
		if i == 0 || n > maxVal {
			maxVal = n
		}
		sum += n
		stats.Distribution[tok]++
	}

	minStr := strconv.FormatFloat(minVal, 'f', -1, 64)
	maxStr := strconv.FormatFloat(maxVal, 'f', -1, 64)
	avg := sum / float64(len(tokens))

	stats.Min = &minStr
	stats.Max = &maxStr
	stats.Average = &avg
	stats.HasConsensus = len(stats.Distribution) == 1

	return stats
}
