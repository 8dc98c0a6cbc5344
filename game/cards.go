package game

import (
	"math/rand"
	"sort"

	"github.com/google/uuid"
)

// columnRanges[c] is the inclusive value range allowed in column c.
// The last column absorbs 80..90 so the whole 1..90 pool is covered.
var columnRanges = [CardCols][2]int{
	{1, 9}, {10, 19}, {20, 29}, {30, 39}, {40, 49},
	{50, 59}, {60, 69}, {70, 79}, {80, 90},
}

const maxCardAttempts = 50

// GenerateCards produces count valid Loto cards for the given player.
// A card always satisfies: 5 numbers per row, at most 3 per column,
// column values inside their fixed range and ascending top to bottom,
// no duplicate value on the card.
func GenerateCards(playerID string, count int) []LotoCard {
	cards := make([]LotoCard, 0, count)
	for i := 0; i < count; i++ {
		cards = append(cards, generateCard(playerID))
	}
	return cards
}

func generateCard(playerID string) LotoCard {
	for {
		grid, ok := tryBuildGrid()
		if ok {
			return LotoCard{
				ID:       uuid.NewString(),
				PlayerID: playerID,
				Grid:     grid,
			}
		}
		// unsatisfiable layout or value draw; start the card over
	}
}

// tryBuildGrid decides slot membership row by row, then fills each
// column with sorted distinct values from its range. Placement picks
// 5 of 9 columns per row at random, skipping columns already holding
// 3 numbers. A bounded number of row-pick attempts guards against a
// dead end, after which the whole card restarts.
func tryBuildGrid() (Grid, bool) {
	var grid Grid
	var colCounts [CardCols]int
	var hasNumber [CardRows][CardCols]bool

	for row := 0; row < CardRows; row++ {
		placed := false
		for attempt := 0; attempt < maxCardAttempts; attempt++ {
			open := make([]int, 0, CardCols)
			for c := 0; c < CardCols; c++ {
				if colCounts[c] < MaxPerColumn {
					open = append(open, c)
				}
			}
			if len(open) < NumbersPerRow {
				break
			}
			rand.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })
			for _, c := range open[:NumbersPerRow] {
				hasNumber[row][c] = true
				colCounts[c]++
			}
			placed = true
			break
		}
		if !placed {
			return Grid{}, false
		}
	}

	for c := 0; c < CardCols; c++ {
		if colCounts[c] == 0 {
			continue
		}
		values, ok := drawColumnValues(c, colCounts[c])
		if !ok {
			return Grid{}, false
		}
		vi := 0
		for row := 0; row < CardRows; row++ {
			if hasNumber[row][c] {
				grid[row][c] = Cell{Value: values[vi]}
				vi++
			}
		}
	}
	return grid, true
}

// drawColumnValues picks n distinct values from column c's range,
// sorted ascending so they can be placed top to bottom.
func drawColumnValues(c, n int) ([]int, bool) {
	lo, hi := columnRanges[c][0], columnRanges[c][1]
	pool := make([]int, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		pool = append(pool, v)
	}
	if n > len(pool) {
		return nil, false
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	values := append([]int(nil), pool[:n]...)
	sort.Ints(values)
	return values, true
}

// NewNumberPool returns the 1..90 calling pool in shuffled order.
func NewNumberPool() []int {
	pool := make([]int, MaxNumber)
	for i := range pool {
		pool[i] = i + 1
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool
}
