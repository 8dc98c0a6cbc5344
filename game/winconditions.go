package game

// Win mode identifiers.
const (
	ModeClassic = "classic"
	ModeRow     = "row"
	ModePattern = "pattern"
	ModeSpeed   = "speed"
)

// WinCondition is a pluggable predicate deciding whether a card has won
// given the numbers called so far.
type WinCondition struct {
	Name        string
	Description string
	Check       func(card LotoCard, called []CalledNumber) bool
}

var winConditions = map[string]WinCondition{
	ModeClassic: {
		Name:        "Full card",
		Description: "Every number on the card has been called",
		Check:       checkFullCard,
	},
	ModeRow: {
		Name:        "Single row",
		Description: "Every number of at least one row has been called",
		Check:       checkAnyRow,
	},
	ModePattern: {
		Name:        "Corners",
		Description: "The corner numbers of the card have been called",
		Check:       checkCorners,
	},
	ModeSpeed: {
		Name:        "Speed",
		Description: "Full card, fast call cadence",
		Check:       checkFullCard,
	},
}

// WinConditionFor returns the condition for mode, defaulting to classic
// for unknown identifiers.
func WinConditionFor(mode string) WinCondition {
	if wc, ok := winConditions[mode]; ok {
		return wc
	}
	return winConditions[ModeClassic]
}

// CheckPlayerWin returns the first of the player's cards, in card order,
// that satisfies the mode's predicate, or nil.
func CheckPlayerWin(cards []LotoCard, called []CalledNumber, mode string) *LotoCard {
	wc := WinConditionFor(mode)
	for i := range cards {
		if wc.Check(cards[i], called) {
			return &cards[i]
		}
	}
	return nil
}

func calledSet(called []CalledNumber) map[int]bool {
	set := make(map[int]bool, len(called))
	for _, n := range called {
		set[n.Value] = true
	}
	return set
}

func checkFullCard(card LotoCard, called []CalledNumber) bool {
	set := calledSet(called)
	for row := 0; row < CardRows; row++ {
		for col := 0; col < CardCols; col++ {
			cell := card.Grid[row][col]
			if cell.Value != 0 && !set[cell.Value] {
				return false
			}
		}
	}
	return true
}

func checkAnyRow(card LotoCard, called []CalledNumber) bool {
	set := calledSet(called)
	for row := 0; row < CardRows; row++ {
		complete := true
		for col := 0; col < CardCols; col++ {
			cell := card.Grid[row][col]
			if cell.Value != 0 && !set[cell.Value] {
				complete = false
				break
			}
		}
		if complete {
			return true
		}
	}
	return false
}

// checkCorners wins on the four corner cells of the grid. Corners may be
// blank by construction, so the rule requires at least two populated
// corners and all populated corners called.
func checkCorners(card LotoCard, called []CalledNumber) bool {
	set := calledSet(called)
	corners := [4]Cell{
		card.Grid[0][0],
		card.Grid[0][CardCols-1],
		card.Grid[CardRows-1][0],
		card.Grid[CardRows-1][CardCols-1],
	}
	populated := 0
	for _, cell := range corners {
		if cell.Value == 0 {
			continue
		}
		populated++
		if !set[cell.Value] {
			return false
		}
	}
	return populated >= 2
}
