package game

import "errors"

// Invariant violations indicate an upstream contract breach: calling an
// operation out of order, acting with a card the actor does not own, or a
// malformed catalog. Callers should treat them as fatal.
var ErrInvariant = errors.New("invariant violation")

// ErrUnsupported marks move generation paths not implemented for the current
// configuration, distinct from "no legal moves".
var ErrUnsupported = errors.New("not implemented for this configuration")

// Recoverable game errors. The state is left unchanged when they are returned.
var (
	ErrDeckExhausted       = errors.New("deck exhausted")
	ErrAlreadyTapped       = errors.New("card already tapped")
	ErrUnaffordable        = errors.New("support cost not affordable")
	ErrNotOnTable          = errors.New("card is not on the table")
	ErrNotInHand           = errors.New("card is not in hand")
	ErrPersonAlreadyPlayed = errors.New("person already played this turn")
	ErrWrongPhase          = errors.New("move not allowed in this phase")
	ErrGameOver            = errors.New("game is over")
	ErrCardNotFound        = errors.New("card not found")
	ErrPlayerNotFound      = errors.New("player not found")
)

// ErrStall is returned when phase auto-skip completes two full cycles without
// finding a phase with a legal move.
var ErrStall = errors.New("no legal continuation: phase auto-skip stalled")

// IsRecoverable reports whether err is a game-level failure the caller can
// handle without treating the engine as broken.
func IsRecoverable(err error) bool {
	for _, target := range []error{
		ErrDeckExhausted, ErrAlreadyTapped, ErrUnaffordable, ErrNotOnTable, ErrNotInHand,
		ErrPersonAlreadyPlayed, ErrWrongPhase, ErrGameOver, ErrCardNotFound, ErrPlayerNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
