// internal/sentences/sentences.go
//
// Seed puzzle management.
//
// Responsibilities:
//   - Load seed sentences from SENTENCES_FILE or fall back to the embedded list.
//   - Normalize each text to the puzzle alphabet (A–Z and single spaces).
//   - Hand the result to a store for idempotent seeding.
//
// Line format:
//   <mode>|<text>     mode is "logged" or "anon"
//   # comment         ignored, as are blank lines
//
// Normalization (Normalize):
//   1. Transliterate to ASCII (é → e, ß → ss) with gosimple/unidecode.
//   2. Uppercase; drop apostrophes so contractions stay one word.
//   3. Anything else that is not A–Z becomes a space; runs of spaces collapse.
// Lines that normalize to nothing or to more than game.MaxSentenceLen
// characters are skipped.

package sentences

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gosimple/unidecode"

	"github.com/robalobadob/guess-sentence/assets"
	"github.com/robalobadob/guess-sentence/internal/game"
)

// Entry is one seed puzzle.
type Entry struct {
	Mode game.Mode
	Text string
}

// Load reads seed entries from path, or from the embedded list when path is empty.
func Load(path string) ([]Entry, error) {
	var (
		lines []string
		err   error
	)
	if path != "" {
		lines, err = readFile(path)
	} else {
		lines, err = assets.SentenceLines()
	}
	if err != nil {
		return nil, fmt.Errorf("sentences: read: %w", err)
	}
	return Parse(lines)
}

// Parse turns "mode|text" lines into entries. Unknown modes are an error;
// texts that normalize to nothing usable are skipped.
func Parse(lines []string) ([]Entry, error) {
	out := make([]Entry, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawMode, rawText, ok := strings.Cut(line, "|")
		if !ok {
			return nil, fmt.Errorf("sentences: line %d: missing '|' separator", i+1)
		}
		mode := game.Mode(strings.ToLower(strings.TrimSpace(rawMode)))
		if !mode.Valid() {
			return nil, fmt.Errorf("sentences: line %d: unknown mode %q", i+1, rawMode)
		}
		text := Normalize(rawText)
		if text == "" || len(text) > game.MaxSentenceLen {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, Entry{Mode: mode, Text: text})
	}
	return out, nil
}

// Normalize maps free text onto uppercase words separated by single spaces.
func Normalize(raw string) string {
	ascii := strings.ToUpper(unidecode.Unidecode(raw))
	var b strings.Builder
	b.Grow(len(ascii))
	pendingSpace := false
	for i := 0; i < len(ascii); i++ {
		c := ascii[i]
		switch {
		case c >= 'A' && c <= 'Z':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteByte(c)
		case c == '\'' || c == '`':
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// Counts reports how many entries each pool has.
func Counts(entries []Entry) (logged, anon int) {
	for _, e := range entries {
		if e.Mode == game.ModeLogged {
			logged++
		} else {
			anon++
		}
	}
	return logged, anon
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}
