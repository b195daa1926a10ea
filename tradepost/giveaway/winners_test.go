package giveaway

import (
	"reflect"
	"testing"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
)

func TestSplitPrizes(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"Nitro", []string{"Nitro"}},
		{"Rank,Skin", []string{"Rank", "Skin"}},
		{"Rank, Skin , Gold", []string{"Rank", "Skin", "Gold"}},
		{"Rank,,Skin", []string{"Rank", "Skin"}},
		{"  ", []string{""}},
		{",,", []string{""}},
	}

	for _, tt := range tests {
		got := splitPrizes(tt.raw)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitPrizes(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func participants(names ...string) []*models.GiveawayParticipant {
	out := make([]*models.GiveawayParticipant, len(names))
	for i, name := range names {
		out[i] = &models.GiveawayParticipant{UserID: name, UserName: name}
	}
	return out
}

func TestSampleWinnersPairsPrizesInDrawOrder(t *testing.T) {
	pool := participants("u1", "u2", "u3")
	// Always picking index 0: first draw takes u1, u3 swaps into its
	// slot, so the second draw takes u3.
	winners := sampleWinners(pool, []string{"Rank", "Skin"}, 2, func(int) int { return 0 })

	if len(winners) != 2 {
		t.Fatalf("len(winners) = %d, want 2", len(winners))
	}
	if winners[0].UserID != "u1" || winners[0].Prize != "Rank" {
		t.Errorf("winners[0] = %+v, want u1/Rank", winners[0])
	}
	if winners[1].UserID != "u3" || winners[1].Prize != "Skin" {
		t.Errorf("winners[1] = %+v, want u3/Skin", winners[1])
	}
}

func TestSampleWinnersFirstPrizeRepeats(t *testing.T) {
	pool := participants("u1", "u2", "u3")
	winners := sampleWinners(pool, []string{"Nitro"}, 3, func(int) int { return 0 })

	if len(winners) != 3 {
		t.Fatalf("len(winners) = %d, want 3", len(winners))
	}
	for i, w := range winners {
		if w.Prize != "Nitro" {
			t.Errorf("winners[%d].Prize = %q, want Nitro", i, w.Prize)
		}
	}
}

func TestSampleWinnersCappedAndDistinct(t *testing.T) {
	pool := participants("u1", "u2")
	winners := sampleWinners(pool, []string{"A", "B", "C"}, 5, func(n int) int { return n - 1 })

	if len(winners) != 2 {
		t.Fatalf("len(winners) = %d, want 2", len(winners))
	}
	if winners[0].UserID == winners[1].UserID {
		t.Error("duplicate winner drawn")
	}
}

func TestSampleWinnersBlankPrizeStillDraws(t *testing.T) {
	pool := participants("u1", "u2")
	winners := sampleWinners(pool, splitPrizes("   "), 2, func(int) int { return 0 })

	if len(winners) != 2 {
		t.Fatalf("len(winners) = %d, want 2 despite blank prize", len(winners))
	}
}

func TestSampleWinnersEmptyPool(t *testing.T) {
	if winners := sampleWinners(nil, []string{"Nitro"}, 3, func(int) int { return 0 }); winners != nil {
		t.Errorf("sampleWinners(empty) = %v, want nil", winners)
	}
}
