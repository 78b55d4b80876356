// internal/game/economy.go
//
// Letter economy: what each reveal costs.
//   - Vowels cost a flat premium and are gated to one per match.
//   - Consonants are tiered by English frequency; common letters uncover more
//     of the board, so they cost more.

package game

import (
	"fmt"
	"strings"
)

// VowelCost is the flat price of revealing any vowel.
const VowelCost = 10

// letterCosts is indexed by letter - 'A'.
var letterCosts = [26]int{
	'A' - 'A': VowelCost, 'E' - 'A': VowelCost, 'I' - 'A': VowelCost, 'O' - 'A': VowelCost, 'U' - 'A': VowelCost,
	'T' - 'A': 5, 'N' - 'A': 5, 'S' - 'A': 5, 'R' - 'A': 5, 'H' - 'A': 5, 'D' - 'A': 5, 'L' - 'A': 5,
	'C' - 'A': 4, 'M' - 'A': 4, 'F' - 'A': 4, 'G' - 'A': 4, 'P' - 'A': 4,
	'B' - 'A': 3, 'Y' - 'A': 3, 'W' - 'A': 3,
	'K' - 'A': 2, 'V' - 'A': 2,
	'X' - 'A': 1, 'J' - 'A': 1, 'Q' - 'A': 1, 'Z' - 'A': 1,
}

// IsVowel reports whether l is one of A, E, I, O, U.
func IsVowel(l byte) bool {
	switch l {
	case 'A', 'E', 'I', 'O', 'U':
		return true
	}
	return false
}

// CostOf returns the reveal price of an uppercase letter, or 0 for anything
// outside A–Z.
func CostOf(l byte) int {
	if l < 'A' || l > 'Z' {
		return 0
	}
	return letterCosts[l-'A']
}

// NormalizeLetter trims and uppercases raw and checks it is exactly one A–Z letter.
func NormalizeLetter(raw string) (byte, error) {
	s := strings.TrimSpace(raw)
	if len(s) != 1 || !isASCIILetter(s[0]) {
		return 0, fmt.Errorf("%w: got %q", ErrMalformedLetter, raw)
	}
	c := s[0]
	if c >= 'a' {
		c -= 'a' - 'A'
	}
	return c, nil
}

func isASCIILetter(c byte) bool { return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' }
