package game

import (
	"context"
	"fmt"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// MoveKind identifies a player move.
type MoveKind int

const (
	MovePass MoveKind = iota
	MoveDraw
	MovePlayPerson
	MovePlayOpinion
	MoveAttack
)

var moveKindNames = map[MoveKind]string{
	MovePass:        "PASS",
	MoveDraw:        "DRAW",
	MovePlayPerson:  "PLAY_PERSON",
	MovePlayOpinion: "PLAY_OPINION",
	MoveAttack:      "ATTACK",
}

func (k MoveKind) String() string {
	if name, ok := moveKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MoveKind(%d)", int(k))
}

// Move is one legal action for the active player. CardID is empty for Pass
// and Draw.
type Move struct {
	Kind   MoveKind
	CardID string
}

func (m Move) String() string {
	if m.CardID == "" {
		return m.Kind.String()
	}
	return m.Kind.String() + " " + m.CardID
}

// TurnNumber identifies the active player's current turn. Each seat gets
// exactly one turn per round, so the round number is unique per player.
func (s *GameState) TurnNumber() int {
	return s.Round
}

// PersonPlayed reports whether p already put a Person on the table this turn.
func (s *GameState) PersonPlayed(p *PlayerState) bool {
	return p.LastPersonTurn == s.TurnNumber()
}

// AvailableMoves lists the active player's legal moves in the current phase.
// Pass is not included; callers decide when passing is worth exploring.
func (e *Engine) AvailableMoves() ([]Move, error) {
	s := e.state
	if s.Status != rules.StatusBusy {
		return nil, nil
	}
	active := s.Active()

	switch s.Phase {
	case rules.PhaseDraw:
		return []Move{{Kind: MoveDraw}}, nil
	case rules.PhaseMain:
		return e.mainMoves(active)
	case rules.PhaseDebate:
		return debateMoves(active), nil
	case rules.PhaseUpkeep:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown phase %s", ErrInvariant, s.Phase)
}

func (e *Engine) mainMoves(p *PlayerState) ([]Move, error) {
	hand := p.Cards(ZoneHand)

	// a Person still to be played this turn takes precedence
	if !e.state.PersonPlayed(p) {
		var moves []Move
		for _, c := range hand {
			if c.Card.Kind == catalog.KindPerson {
				moves = append(moves, Move{Kind: MovePlayPerson, CardID: c.ID})
			}
		}
		if len(moves) > 0 {
			return moves, nil
		}
	}

	var moves []Move
	for _, c := range hand {
		switch c.Card.Kind {
		case catalog.KindOpinion:
			if e.IsAffordable(c) {
				moves = append(moves, Move{Kind: MovePlayOpinion, CardID: c.ID})
			}
		case catalog.KindPaper, catalog.KindEvidence:
			if e.IsAffordable(c) {
				return nil, fmt.Errorf("%w: playing %s cards", ErrUnsupported, c.Card.Kind)
			}
		}
	}
	return moves, nil
}

func debateMoves(p *PlayerState) []Move {
	var moves []Move
	for _, c := range p.Cards(ZoneTable) {
		if c.Card.Kind == catalog.KindOpinion && !c.Tapped {
			moves = append(moves, Move{Kind: MoveAttack, CardID: c.ID})
		}
	}
	return moves
}

// Apply dispatches a move to the operation that performs it.
func (e *Engine) Apply(ctx context.Context, m Move) error {
	switch m.Kind {
	case MovePass:
		return e.PlayPass(ctx)
	case MoveDraw:
		return e.PlayDraw(ctx)
	case MovePlayPerson:
		return e.PlayPerson(ctx, m.CardID)
	case MovePlayOpinion:
		return e.PlayOpinion(ctx, m.CardID)
	case MoveAttack:
		return e.Attack(ctx, m.CardID)
	}
	return fmt.Errorf("%w: unknown move %s", ErrInvariant, m.Kind)
}

// PlayPass gives up the rest of the current action phase.
func (e *Engine) PlayPass(ctx context.Context) error {
	if err := e.requireBusy(); err != nil {
		return err
	}
	if !rules.IsActionPhase(e.state.Phase) {
		return fmt.Errorf("%w: cannot pass in %s", ErrWrongPhase, e.state.Phase)
	}

	actor := e.state.Active().ID
	if err := e.NextPhase(ctx); err != nil {
		return err
	}
	return e.record(ctx, actor, rules.CommandPass, nil, nil, false, "")
}

// PlayDraw draws the active player's card for the turn and leaves the Draw
// phase. A player who cannot draw loses: their health drops to zero and the
// match ends.
func (e *Engine) PlayDraw(ctx context.Context) error {
	if err := e.requireBusy(); err != nil {
		return err
	}
	s := e.state
	if s.Phase != rules.PhaseDraw {
		return fmt.Errorf("%w: cannot draw in %s", ErrWrongPhase, s.Phase)
	}

	active := s.Active()
	if len(active.Deck) == 0 {
		active.Health = 0
		if err := e.saveHeader(ctx); err != nil {
			return err
		}
		if err := e.record(ctx, active.ID, rules.CommandDraw, nil, nil, true, ErrDeckExhausted.Error()); err != nil {
			return err
		}
		e.info("player decked out", zap.String("player_id", active.ID))
		return e.NextStatus(ctx)
	}

	if err := e.Draw(ctx, active.ID, 1); err != nil {
		return err
	}
	return e.NextPhase(ctx)
}

// PlayPerson puts a Person from the active player's hand onto their table.
// At most one Person may be played per turn.
func (e *Engine) PlayPerson(ctx context.Context, cardID string) error {
	card, p, err := e.handCard(cardID, rules.PhaseMain, catalog.KindPerson)
	if err != nil {
		return err
	}
	if e.state.PersonPlayed(p) {
		return ErrPersonAlreadyPlayed
	}
	if err := e.playFromHand(ctx, p, card); err != nil {
		return err
	}

	p.LastPersonTurn = e.state.TurnNumber()
	return e.saveHeader(ctx)
}

// PlayOpinion puts an Opinion from the active player's hand onto their table.
func (e *Engine) PlayOpinion(ctx context.Context, cardID string) error {
	card, p, err := e.handCard(cardID, rules.PhaseMain, catalog.KindOpinion)
	if err != nil {
		return err
	}
	return e.playFromHand(ctx, p, card)
}

func (e *Engine) handCard(cardID string, phase rules.Phase, kind catalog.Kind) (*CardInstance, *PlayerState, error) {
	if err := e.requireBusy(); err != nil {
		return nil, nil, err
	}
	s := e.state
	if s.Phase != phase {
		return nil, nil, fmt.Errorf("%w: cannot play in %s", ErrWrongPhase, s.Phase)
	}

	p := s.Active()
	card, ok := p.Hand[cardID]
	if !ok {
		if _, _, exists := s.Card(cardID); !exists {
			return nil, nil, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
		}
		return nil, nil, fmt.Errorf("%w: %s", ErrNotInHand, cardID)
	}
	if card.Card.Kind != kind {
		return nil, nil, fmt.Errorf("%w: card %s is %s, not %s", ErrInvariant, cardID, card.Card.Kind, kind)
	}
	if !e.IsAffordable(card) {
		return nil, nil, fmt.Errorf("%w: %s costs %d", ErrUnaffordable, cardID, card.Card.SupportCost)
	}
	return card, p, nil
}

func (e *Engine) playFromHand(ctx context.Context, p *PlayerState, card *CardInstance) error {
	if err := e.pay(ctx, p, card.Card.SupportCost); err != nil {
		return err
	}
	if err := p.moveCard(card, ZoneTable, p.nextPosition(ZoneTable)); err != nil {
		return err
	}
	if err := e.saveCard(ctx, card); err != nil {
		return err
	}
	if err := e.saveHeader(ctx); err != nil {
		return err
	}

	e.debug("card played",
		zap.String("player_id", p.ID),
		zap.String("card_id", card.ID),
		zap.String("definition", card.Card.ID),
	)
	return e.record(ctx, p.ID, rules.CommandPlay, card, nil, false, "")
}

// Attack taps an untapped Opinion on the active player's table and deals its
// power to the opponent. The match ends when the opponent's health reaches
// zero.
func (e *Engine) Attack(ctx context.Context, cardID string) error {
	if err := e.requireBusy(); err != nil {
		return err
	}
	s := e.state
	if s.Phase != rules.PhaseDebate {
		return fmt.Errorf("%w: cannot attack in %s", ErrWrongPhase, s.Phase)
	}

	p := s.Active()
	card, ok := p.Table[cardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOnTable, cardID)
	}
	if card.Card.Kind != catalog.KindOpinion {
		return fmt.Errorf("%w: card %s is %s, only %s cards attack", ErrInvariant, cardID, card.Card.Kind, catalog.KindOpinion)
	}
	if card.Tapped {
		return fmt.Errorf("%w: %s", ErrAlreadyTapped, cardID)
	}

	opponent := s.Opponent()
	damage := card.Card.PowerValue()
	card.Tapped = true
	opponent.Health -= damage
	s.LastCombatActor = p.ID

	if err := e.saveCard(ctx, card); err != nil {
		return err
	}
	if err := e.saveHeader(ctx); err != nil {
		return err
	}
	if err := e.record(ctx, p.ID, rules.CommandAttack, card, nil, false, fmt.Sprintf("dealt %d", damage)); err != nil {
		return err
	}

	if opponent.Health <= 0 {
		e.info("debate won", zap.String("winner_id", p.ID))
		return e.NextStatus(ctx)
	}
	return nil
}

// Winner returns the surviving player once the match is over.
func (s *GameState) Winner() (*PlayerState, bool) {
	if !s.IsOver() {
		return nil, false
	}
	p1, p2 := s.Players[0], s.Players[1]
	switch {
	case p1.Health > 0 && p2.Health <= 0:
		return p1, true
	case p2.Health > 0 && p1.Health <= 0:
		return p2, true
	}
	return nil, false
}
