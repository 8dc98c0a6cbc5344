package game

import (
	"testing"
)

func TestGeneratedCardInvariants(t *testing.T) {
	cards := GenerateCards("p1", 200)
	if len(cards) != 200 {
		t.Fatalf("expected 200 cards, got %d", len(cards))
	}
	for _, card := range cards {
		if card.PlayerID != "p1" {
			t.Fatalf("card %s has wrong player id %q", card.ID, card.PlayerID)
		}
		assertValidCard(t, card)
	}
}

func assertValidCard(t *testing.T, card LotoCard) {
	t.Helper()
	seen := make(map[int]bool)

	for row := 0; row < CardRows; row++ {
		filled := 0
		for col := 0; col < CardCols; col++ {
			if card.Grid[row][col].Value != 0 {
				filled++
			}
		}
		if filled != NumbersPerRow {
			t.Fatalf("card %s row %d has %d numbers, want %d", card.ID, row, filled, NumbersPerRow)
		}
	}

	for col := 0; col < CardCols; col++ {
		lo, hi := columnRanges[col][0], columnRanges[col][1]
		prev := 0
		count := 0
		for row := 0; row < CardRows; row++ {
			v := card.Grid[row][col].Value
			if v == 0 {
				continue
			}
			count++
			if v < lo || v > hi {
				t.Fatalf("card %s value %d out of range [%d,%d] for column %d", card.ID, v, lo, hi, col)
			}
			if prev != 0 && v <= prev {
				t.Fatalf("card %s column %d not strictly ascending: %d after %d", card.ID, col, v, prev)
			}
			prev = v
			if seen[v] {
				t.Fatalf("card %s contains duplicate value %d", card.ID, v)
			}
			seen[v] = true
		}
		if count > MaxPerColumn {
			t.Fatalf("card %s column %d holds %d numbers, max %d", card.ID, col, count, MaxPerColumn)
		}
	}
}

func TestNumberPoolCoversOneToNinety(t *testing.T) {
	pool := NewNumberPool()
	if len(pool) != MaxNumber {
		t.Fatalf("pool has %d numbers, want %d", len(pool), MaxNumber)
	}
	seen := make(map[int]bool, MaxNumber)
	for _, n := range pool {
		if n < 1 || n > MaxNumber {
			t.Fatalf("pool value %d out of range", n)
		}
		if seen[n] {
			t.Fatalf("pool value %d repeats", n)
		}
		seen[n] = true
	}
}
