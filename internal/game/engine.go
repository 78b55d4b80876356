// internal/game/engine.go
//
// Match engine: the state machine behind every match.
// Responsibilities:
//   - Start matches from a sentence pool with a 60 second deadline.
//   - Lazily time out expired matches on every read or write.
//   - Apply letter reveals, sentence guesses and abandons under the economy rules.
//   - Persist with optimistic concurrency (compare-and-set on Match.Version),
//     re-running the whole read-compute-write cycle on conflict.
//
// Notes:
//   - The engine holds no goroutines or timers; deadlines are checked on access.
//   - It never logs; every rejection comes back as a typed error (errors.go).

package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MatchDuration is the time budget of every match.
	MatchDuration = 60 * time.Second

	// DefaultAnonCoins is the per-match allowance of anonymous matches.
	DefaultAnonCoins = 100

	// MaxSentenceLen bounds the length of a sentence guess.
	MaxSentenceLen = 100

	defaultMaxAttempts = 5
)

// MatchRepository loads and stores matches.
type MatchRepository interface {
	// Load returns ErrNotFound for unknown ids.
	Load(ctx context.Context, id string) (Match, error)

	// Create inserts a brand new match.
	Create(ctx context.Context, m Match) error

	// CompareAndSet replaces the stored match with next only if the stored
	// version still equals expectedVersion. It reports false on a version
	// mismatch. For owned matches the implementation must debit the coins
	// spent between the stored and next state from the player's durable
	// balance in the same transaction, failing with ErrInsufficientFunds if
	// that balance no longer covers it.
	CompareAndSet(ctx context.Context, expectedVersion int64, next Match) (bool, error)
}

// SentenceRepository supplies puzzles.
type SentenceRepository interface {
	PickRandom(ctx context.Context, mode Mode) (Sentence, error)
}

// Wallet exposes a player's persistent coin balance.
type Wallet interface {
	Balance(ctx context.Context, playerID string) (int, error)
}

// Dependencies wires an Engine. Matches, Sentences and Wallets are required.
type Dependencies struct {
	Matches   MatchRepository
	Sentences SentenceRepository
	Wallets   Wallet

	// AnonCoins is the allowance of anonymous matches. Nil means DefaultAnonCoins.
	AnonCoins *Coins

	// Now defaults to time.Now.
	Now func() time.Time

	// NewID defaults to random UUIDs.
	NewID func() string

	// MaxAttempts bounds compare-and-set retries; 0 means 5.
	MaxAttempts int
}

// Engine runs matches. It is safe for concurrent use as long as its
// repositories are.
type Engine struct {
	matches     MatchRepository
	sentences   SentenceRepository
	wallets     Wallet
	anonCoins   Coins
	now         func() time.Time
	newID       func() string
	maxAttempts int
}

// NewEngine constructs an Engine, filling defaults for optional dependencies.
func NewEngine(deps Dependencies) *Engine {
	e := &Engine{
		matches:     deps.Matches,
		sentences:   deps.Sentences,
		wallets:     deps.Wallets,
		anonCoins:   CoinsOf(DefaultAnonCoins),
		now:         deps.Now,
		newID:       deps.NewID,
		maxAttempts: deps.MaxAttempts,
	}
	if deps.AnonCoins != nil {
		e.anonCoins = *deps.AnonCoins
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = defaultMaxAttempts
	}
	return e
}

// Start creates a running match.
//
// ModeLogged matches belong to playerID (required) and spend from the
// player's persistent balance. ModeAnon matches are unowned whatever
// playerID is, and spend from a fresh per-match allowance.
func (e *Engine) Start(ctx context.Context, playerID string, mode Mode) (View, error) {
	if !mode.Valid() {
		return View{}, fmt.Errorf("game: unknown mode %q", mode)
	}

	coins := e.anonCoins
	owner := ""
	if mode == ModeLogged {
		if playerID == "" {
			return View{}, fmt.Errorf("%w: logged matches need a player", ErrForbidden)
		}
		balance, err := e.wallets.Balance(ctx, playerID)
		if err != nil {
			return View{}, fmt.Errorf("read balance: %w", err)
		}
		coins = CoinsOf(balance)
		owner = playerID
	}

	s, err := e.sentences.PickRandom(ctx, mode)
	if err != nil {
		return View{}, fmt.Errorf("pick sentence: %w", err)
	}
	if !isPuzzleText(s.Text) {
		return View{}, fmt.Errorf("game: sentence %d is not uppercase letters and single spaces", s.ID)
	}

	now := e.now()
	m := Match{
		ID:         e.newID(),
		PlayerID:   owner,
		Mode:       mode,
		SentenceID: s.ID,
		Sentence:   s.Text,
		StartedAt:  now,
		Deadline:   now.Add(MatchDuration),
		Status:     StatusRunning,
		Coins:      coins,
		Version:    1,
	}
	if err := e.matches.Create(ctx, m); err != nil {
		return View{}, fmt.Errorf("create match: %w", err)
	}
	return Project(m), nil
}

// Get returns the current view of a match after the lazy deadline check.
func (e *Engine) Get(ctx context.Context, matchID, callerID string) (View, error) {
	return e.apply(ctx, matchID, callerID, nil)
}

// RevealLetter pays for one letter. The cost is charged whether or not the
// letter occurs in the sentence. Revealing the last missing letter wins.
func (e *Engine) RevealLetter(ctx context.Context, matchID, callerID, letter string) (View, error) {
	return e.apply(ctx, matchID, callerID, func(m *Match, now time.Time) (bool, error) {
		if m.Status != StatusRunning {
			return false, ErrInvalidAction
		}
		l, err := NormalizeLetter(letter)
		if err != nil {
			return false, err
		}
		if m.Revealed.Has(l) {
			return false, fmt.Errorf("%w: %c", ErrAlreadyRevealed, l)
		}
		vowel := IsVowel(l)
		if vowel && m.VowelUsed {
			return false, ErrVowelAlreadyUsed
		}
		cost := CostOf(l)
		if !m.Coins.Covers(cost) {
			return false, fmt.Errorf("%w: %c costs %d, balance %s", ErrInsufficientFunds, l, cost, m.Coins)
		}

		m.Coins = m.Coins.Spend(cost)
		m.Revealed = m.Revealed.With(l)
		if vowel {
			m.VowelUsed = true
		}
		if m.Solved() {
			m.finish(StatusWon, now)
		}
		return true, nil
	})
}

// GuessSentence attempts the whole sentence. A wrong guess costs nothing and
// changes nothing.
func (e *Engine) GuessSentence(ctx context.Context, matchID, callerID, text string) (View, error) {
	return e.apply(ctx, matchID, callerID, func(m *Match, now time.Time) (bool, error) {
		if m.Status != StatusRunning {
			return false, ErrInvalidAction
		}
		guess, err := NormalizeSentence(text)
		if err != nil {
			return false, err
		}
		if guess != m.Sentence {
			return false, nil
		}
		m.finish(StatusWon, now)
		return true, nil
	})
}

// Abandon gives up a running match.
func (e *Engine) Abandon(ctx context.Context, matchID, callerID string) (View, error) {
	return e.apply(ctx, matchID, callerID, func(m *Match, now time.Time) (bool, error) {
		if m.Status != StatusRunning {
			return false, ErrInvalidAction
		}
		m.finish(StatusAbandoned, now)
		return true, nil
	})
}

// action mutates m in place and reports whether it changed anything.
// A non-nil error means m must be discarded.
type action func(m *Match, now time.Time) (bool, error)

// apply runs one read-compute-write cycle per attempt.
//
// Rejections of a loaded, owned match come back with the view of the
// persisted state, so an action on a freshly expired match reports timeout
// alongside ErrInvalidAction.
func (e *Engine) apply(ctx context.Context, matchID, callerID string, act action) (View, error) {
	for attempt := 0; attempt < e.maxAttempts; attempt++ {
		cur, err := e.matches.Load(ctx, matchID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return View{}, err
			}
			return View{}, fmt.Errorf("load match: %w", err)
		}
		if !cur.Anonymous() && cur.PlayerID != callerID {
			return View{}, ErrForbidden
		}

		now := e.now()
		next := cur
		expired := next.expire(now)

		var (
			changed bool
			actErr  error
		)
		switch {
		case act == nil:
		case expired:
			actErr = ErrInvalidAction
		default:
			changed, actErr = act(&next, now)
		}

		if !expired {
			if actErr != nil {
				return Project(cur), actErr
			}
			if !changed {
				return Project(cur), nil
			}
		}

		next.Version = cur.Version + 1
		ok, err := e.matches.CompareAndSet(ctx, cur.Version, next)
		if err != nil {
			if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrNotFound) {
				return Project(cur), err
			}
			return View{}, fmt.Errorf("store match: %w", err)
		}
		if !ok {
			continue
		}
		return Project(next), actErr
	}
	return View{}, ErrConflict
}

// NormalizeSentence trims and uppercases a guess and checks that it only
// holds A–Z and spaces, 1 to MaxSentenceLen characters. Inner whitespace is
// not collapsed.
func NormalizeSentence(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > MaxSentenceLen {
		return "", ErrMalformedSentence
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; c != ' ' && !isASCIILetter(c) {
			return "", ErrMalformedSentence
		}
	}
	return strings.ToUpper(s), nil
}

// isPuzzleText reports whether s is uppercase words separated by single spaces.
func isPuzzleText(s string) bool {
	if s == "" || s[0] == ' ' || s[len(s)-1] == ' ' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			if s[i-1] == ' ' {
				return false
			}
			continue
		}
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
