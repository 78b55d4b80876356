// internal/game/types.go
//
// Core type definitions for the match engine.
// Defines:
//   - Status: lifecycle state of a match (running → won/abandoned/timeout).
//   - Mode: which sentence pool a match was drawn from.
//   - LetterSet: the A–Z letters a player has paid to reveal.
//   - Coins: a numeric coin balance or the unlimited sentinel.
//   - Match: persisted state of a single match.
//   - Sentence: a puzzle phrase supplied by a SentenceRepository.

package game

import (
	"encoding/json"
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// Status is the lifecycle state of a match. Every status other than
// StatusRunning is terminal and absorbing.
type Status string

const (
	StatusRunning   Status = "running"
	StatusWon       Status = "won"
	StatusAbandoned Status = "abandoned"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether s is one of the absorbing end states.
func (s Status) Terminal() bool { return s != StatusRunning }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusWon, StatusAbandoned, StatusTimeout:
		return true
	}
	return false
}

// Mode selects the sentence pool: logged-in players and guests draw from
// different lists.
type Mode string

const (
	ModeLogged Mode = "logged"
	ModeAnon   Mode = "anon"
)

func (m Mode) Valid() bool { return m == ModeLogged || m == ModeAnon }

// LetterSet is a bit set over the uppercase letters A–Z.
// Bit i is set when letter 'A'+i has been revealed.
type LetterSet uint32

// Has reports whether l (uppercase A–Z) is in the set.
func (s LetterSet) Has(l byte) bool {
	if l < 'A' || l > 'Z' {
		return false
	}
	return s&(1<<(l-'A')) != 0
}

// With returns a copy of s that also contains l. Non A–Z bytes are ignored.
func (s LetterSet) With(l byte) LetterSet {
	if l < 'A' || l > 'Z' {
		return s
	}
	return s | 1<<(l-'A')
}

// Len returns the number of letters in the set.
func (s LetterSet) Len() int { return bits.OnesCount32(uint32(s)) }

// Contains reports whether every letter of o is also in s.
func (s LetterSet) Contains(o LetterSet) bool { return s&o == o }

// Letters lists the set's letters in alphabetical order.
func (s LetterSet) Letters() []string {
	out := make([]string, 0, s.Len())
	for l := byte('A'); l <= 'Z'; l++ {
		if s.Has(l) {
			out = append(out, string(l))
		}
	}
	return out
}

// String renders the set as its letters in order, e.g. "ACST".
func (s LetterSet) String() string { return strings.Join(s.Letters(), "") }

// ParseLetterSet is the inverse of LetterSet.String. Commas are tolerated so
// comma-separated lists ("A,C,T") decode too.
func ParseLetterSet(str string) (LetterSet, error) {
	var s LetterSet
	for i := 0; i < len(str); i++ {
		c := str[i]
		switch {
		case c == ',':
			continue
		case c >= 'A' && c <= 'Z':
			s = s.With(c)
		default:
			return 0, fmt.Errorf("game: invalid letter %q in set %q", c, str)
		}
	}
	return s, nil
}

// lettersOf returns the set of A–Z letters that occur in text.
func lettersOf(text string) LetterSet {
	var s LetterSet
	for i := 0; i < len(text); i++ {
		s = s.With(text[i])
	}
	return s
}

// Coins is a match's spendable balance: either a non-negative amount or
// unlimited. The zero value is a numeric balance of 0.
type Coins struct {
	amount    int
	unlimited bool
}

// Unlimited returns the sentinel balance that covers any cost.
func Unlimited() Coins { return Coins{unlimited: true} }

// CoinsOf returns a numeric balance; negative amounts clamp to zero.
func CoinsOf(n int) Coins {
	if n < 0 {
		n = 0
	}
	return Coins{amount: n}
}

func (c Coins) IsUnlimited() bool { return c.unlimited }

// Amount returns the numeric balance (0 when unlimited).
func (c Coins) Amount() int {
	if c.unlimited {
		return 0
	}
	return c.amount
}

// Covers reports whether the balance can pay cost.
func (c Coins) Covers(cost int) bool { return c.unlimited || c.amount >= cost }

// Spend deducts cost. Unlimited balances are unchanged; callers check Covers first.
func (c Coins) Spend(cost int) Coins {
	if c.unlimited {
		return c
	}
	return CoinsOf(c.amount - cost)
}

// Debit returns how many coins were spent going from c to next. It is 0
// whenever either side is unlimited.
func (c Coins) Debit(next Coins) int {
	if c.unlimited || next.unlimited || next.amount >= c.amount {
		return 0
	}
	return c.amount - next.amount
}

// Nullable maps the balance onto a nullable column: nil means unlimited.
func (c Coins) Nullable() *int64 {
	if c.unlimited {
		return nil
	}
	n := int64(c.amount)
	return &n
}

// CoinsFromNullable is the inverse of Nullable.
func CoinsFromNullable(n *int64) Coins {
	if n == nil {
		return Unlimited()
	}
	return CoinsOf(int(*n))
}

func (c Coins) String() string {
	if c.unlimited {
		return "unlimited"
	}
	return strconv.Itoa(c.amount)
}

// MarshalJSON encodes unlimited as null and numeric balances as numbers.
func (c Coins) MarshalJSON() ([]byte, error) {
	if c.unlimited {
		return []byte("null"), nil
	}
	return json.Marshal(c.amount)
}

func (c *Coins) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = Unlimited()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = CoinsOf(n)
	return nil
}

// Match holds the state of a single match.
type Match struct {
	ID         string    // opaque identifier (UUID)
	PlayerID   string    // owning player; empty for anonymous matches
	Mode       Mode      // sentence pool the puzzle came from
	SentenceID int64     // id of the puzzle in its repository
	Sentence   string    // uppercase letters and single spaces
	StartedAt  time.Time // creation time
	Deadline   time.Time // StartedAt + MatchDuration
	FinishedAt time.Time // zero while running
	Status     Status
	Revealed   LetterSet // append-only
	VowelUsed  bool      // one-shot vowel gate
	Coins      Coins     // remaining balance
	Version    int64     // compare-and-set counter, starts at 1
}

// Anonymous reports whether nobody owns the match.
func (m Match) Anonymous() bool { return m.PlayerID == "" }

// Solved reports whether every letter of the sentence has been revealed.
func (m Match) Solved() bool { return m.Revealed.Contains(lettersOf(m.Sentence)) }

// finish moves a running match into a terminal status.
func (m *Match) finish(status Status, at time.Time) {
	m.Status = status
	m.FinishedAt = at
}

// expire applies the lazy deadline check. It reports whether the match
// transitioned to timeout.
func (m *Match) expire(now time.Time) bool {
	if m.Status != StatusRunning || now.Before(m.Deadline) {
		return false
	}
	m.finish(StatusTimeout, m.Deadline)
	return true
}

// Sentence is a puzzle phrase from one of the pools.
type Sentence struct {
	ID   int64
	Text string
	Mode Mode
}
