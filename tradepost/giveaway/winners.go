package giveaway

import (
	"strings"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
)

// Winner pairs a drawn participant with their prize.
type Winner struct {
	UserID   string
	UserName string
	Prize    string
}

// ClosureResult is what a finished giveaway yields for rendering.
type ClosureResult struct {
	Giveaway         *models.Giveaway
	Winners          []Winner
	ParticipantCount int
}

// splitPrizes breaks the stored prize string on commas, trimming whitespace
// and dropping empties. A prize without commas yields a single entry; a
// string with no usable parts falls back to one entry so the draw still
// happens.
func splitPrizes(prize string) []string {
	parts := strings.Split(prize, ",")
	prizes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			prizes = append(prizes, trimmed)
		}
	}
	if len(prizes) == 0 {
		return []string{strings.TrimSpace(prize)}
	}
	return prizes
}

// sampleWinners draws min(want, len(participants)) distinct winners
// uniformly without replacement and pairs them with prizes in draw order.
// When the prize list runs short the first prize repeats. randInt must
// return a uniform value in [0, n).
func sampleWinners(participants []*models.GiveawayParticipant, prizes []string, want int, randInt func(int) int) []Winner {
	n := len(participants)
	if want > n {
		want = n
	}
	if want <= 0 || len(prizes) == 0 {
		return nil
	}

	pool := make([]*models.GiveawayParticipant, n)
	copy(pool, participants)

	winners := make([]Winner, 0, want)
	for i := 0; i < want; i++ {
		j := randInt(len(pool))
		picked := pool[j]
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]

		prize := prizes[0]
		if i < len(prizes) {
			prize = prizes[i]
		}
		winners = append(winners, Winner{
			UserID:   picked.UserID,
			UserName: picked.UserName,
			Prize:    prize,
		})
	}
	return winners
}
