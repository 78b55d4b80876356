package game

import "errors"

// Rejections returned by the engine. They never leave a match partially
// mutated; callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("match not found")
	ErrForbidden         = errors.New("match belongs to another player")
	ErrInvalidAction     = errors.New("match is not running")
	ErrAlreadyRevealed   = errors.New("letter already revealed")
	ErrVowelAlreadyUsed  = errors.New("a vowel has already been used")
	ErrInsufficientFunds = errors.New("not enough coins")
	ErrMalformedLetter   = errors.New("letter must be a single A-Z character")
	ErrMalformedSentence = errors.New("sentence must be 1-100 letters and spaces")
	ErrConflict          = errors.New("match was modified concurrently, retry")
)
