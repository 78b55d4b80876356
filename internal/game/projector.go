package game

import "time"

// Placeholder stands in for every unrevealed letter on the board.
const Placeholder = "_"

// View is the client-safe projection of a match.
type View struct {
	MatchID        string     `json:"matchId"`
	Mode           Mode       `json:"mode"`
	Grid           []string   `json:"grid"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"startedAt"`
	Deadline       time.Time  `json:"deadline"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	RemainingCoins Coins      `json:"remainingCoins"`
	VowelUsed      bool       `json:"vowelUsed"`
	Revealed       []string   `json:"revealed"`
	Sentence       string     `json:"sentence,omitempty"`
}

// Project builds the view of m. Sentence is only set once the match is terminal.
func Project(m Match) View {
	v := View{
		MatchID:        m.ID,
		Mode:           m.Mode,
		Grid:           Mask(m.Sentence, m.Revealed),
		Status:         m.Status,
		StartedAt:      m.StartedAt,
		Deadline:       m.Deadline,
		RemainingCoins: m.Coins,
		VowelUsed:      m.VowelUsed,
		Revealed:       m.Revealed.Letters(),
	}
	if m.Status.Terminal() {
		finished := m.FinishedAt
		v.FinishedAt = &finished
		v.Sentence = m.Sentence
	}
	return v
}

// Mask returns one cell per character of sentence: spaces pass through,
// revealed letters show, everything else is the placeholder.
func Mask(sentence string, revealed LetterSet) []string {
	grid := make([]string, len(sentence))
	for i := 0; i < len(sentence); i++ {
		switch c := sentence[i]; {
		case c == ' ':
			grid[i] = " "
		case revealed.Has(c):
			grid[i] = string(c)
		default:
			grid[i] = Placeholder
		}
	}
	return grid
}
