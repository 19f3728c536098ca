package game

import (
	"context"
	"fmt"
	"time"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSeed fixes the random source used for shuffles.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.seed = seed
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithEventBus publishes every logged event to bus. Simulations never publish.
func WithEventBus(bus *rules.EventBus) Option {
	return func(e *Engine) {
		e.bus = bus
	}
}

// Engine is the state mutator for one match. A live engine writes every
// mutation and event through its Store; a simulation engine owns a private
// clone and writes nothing. Engines are not safe for concurrent use.
type Engine struct {
	state      *GameState
	store      Store
	bus        *rules.EventBus
	logger     *zap.Logger
	seed       uint64
	rng        *rand.Rand
	simulation bool
}

func newEngine(state *GameState, opts []Option) *Engine {
	e := &Engine{state: state}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.seed = uint64(time.Now().UnixNano())
		e.rng = rand.New(rand.NewSource(e.seed))
	}
	return e
}

// NewEngine creates a live engine over state.
func NewEngine(store Store, state *GameState, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("live engine requires a store")
	}
	if state == nil {
		return nil, fmt.Errorf("live engine requires a game state")
	}
	e := newEngine(state, opts)
	e.store = store
	return e, nil
}

// Load materializes a game from store and wraps it in a live engine.
func Load(ctx context.Context, store Store, gameID string, opts ...Option) (*Engine, error) {
	state, err := store.Load(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	return NewEngine(store, state, opts...)
}

// NewSimulation creates a simulation engine over a deep copy of state.
func NewSimulation(state *GameState, opts ...Option) *Engine {
	e := newEngine(state.Clone(), opts)
	e.simulation = true
	e.bus = nil
	return e
}

// Simulate returns a simulation engine over a copy of this engine's state,
// sharing its seed so shuffles are reproducible.
func (e *Engine) Simulate() *Engine {
	return NewSimulation(e.state, WithSeed(e.seed), WithLogger(e.logger))
}

// State returns the engine's game state. Callers must not mutate it.
func (e *Engine) State() *GameState {
	return e.state
}

// IsSimulation reports whether writes are suppressed.
func (e *Engine) IsSimulation() bool {
	return e.simulation
}

// SetupGame shuffles both decks, deals starting hands and starts the match in
// the first player's Draw phase.
func (e *Engine) SetupGame(ctx context.Context) error {
	s := e.state
	if s.Status != rules.StatusSetup {
		return fmt.Errorf("%w: setup requires status %s, got %s", ErrInvariant, rules.StatusSetup, s.Status)
	}

	for _, p := range s.Players {
		if err := e.ShuffleDeck(ctx, p.ID); err != nil {
			return err
		}
		if err := e.Draw(ctx, p.ID, StartingHandSize); err != nil {
			return fmt.Errorf("deal starting hand to %s: %w", p.ID, err)
		}
	}

	if err := e.NextStatus(ctx); err != nil {
		return err
	}

	s.Phase = rules.PhaseDraw
	if err := e.saveHeader(ctx); err != nil {
		return err
	}
	return e.record(ctx, s.Active().ID, rules.CommandPhase, nil, nil, false, "")
}

// ShuffleDeck assigns the player's deck a uniformly random permutation of
// positions 1..n.
func (e *Engine) ShuffleDeck(ctx context.Context, playerID string) error {
	p, ok := e.state.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}

	perm := e.rng.Perm(len(p.Deck))
	for i, card := range p.Deck {
		card.Position = perm[i] + 1
	}
	p.sortDeck()

	for _, card := range p.Deck {
		if err := e.saveCard(ctx, card); err != nil {
			return err
		}
	}

	e.debug("shuffled deck", zap.String("player_id", p.ID), zap.Int("deck_size", len(p.Deck)))
	return e.record(ctx, p.ID, rules.CommandShuffle, nil, nil, false, "")
}

// Draw moves the top n deck cards into the player's hand. Nothing moves when
// the deck holds fewer than n cards.
func (e *Engine) Draw(ctx context.Context, playerID string, n int) error {
	p, ok := e.state.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	if n < 0 {
		return fmt.Errorf("%w: negative draw count %d", ErrInvariant, n)
	}
	if n > len(p.Deck) {
		return fmt.Errorf("%w: %s needs %d cards, deck has %d", ErrDeckExhausted, p.ID, n, len(p.Deck))
	}

	for i := 0; i < n; i++ {
		card, _ := p.Top()
		if err := p.moveCard(card, ZoneHand, p.nextPosition(ZoneHand)); err != nil {
			return err
		}
		if err := e.saveCard(ctx, card); err != nil {
			return err
		}
		if err := e.record(ctx, p.ID, rules.CommandDraw, card, nil, false, ""); err != nil {
			return err
		}
	}

	e.debug("drew cards", zap.String("player_id", p.ID), zap.Int("count", n))
	return nil
}

// NextStatus advances the match status one step.
func (e *Engine) NextStatus(ctx context.Context) error {
	s := e.state
	next, ok := rules.NextStatus(s.Status)
	if !ok {
		return fmt.Errorf("%w: status %s is terminal", ErrInvariant, s.Status)
	}
	s.Status = next
	if err := e.saveHeader(ctx); err != nil {
		return err
	}

	e.info("status changed", zap.String("status", next.String()))
	return e.record(ctx, s.Active().ID, rules.CommandStatus, nil, nil, false, "")
}

// NextPhase advances the phase and keeps advancing while the new phase offers
// the active player no moves. Two full cycles without a playable phase is a
// stall.
func (e *Engine) NextPhase(ctx context.Context) error {
	if err := e.requireBusy(); err != nil {
		return err
	}

	limit := 2 * rules.PhaseCount
	for i := 0; i < limit; i++ {
		if err := e.advancePhase(ctx); err != nil {
			return err
		}
		if e.state.IsOver() {
			return nil
		}
		moves, err := e.AvailableMoves()
		if err != nil {
			return err
		}
		if len(moves) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %d phases advanced", ErrStall, limit)
}

func (e *Engine) advancePhase(ctx context.Context) error {
	s := e.state
	next, wrapped := rules.Turn{Seat: s.Turn, Round: s.Round, Phase: s.Phase}.Advance()
	s.Turn, s.Round, s.Phase = next.Seat, next.Round, next.Phase

	if wrapped {
		// the incoming player untaps at the start of their turn
		for _, card := range s.Active().Cards(ZoneTable) {
			if !card.Tapped {
				continue
			}
			card.Tapped = false
			if err := e.saveCard(ctx, card); err != nil {
				return err
			}
		}
	}

	if err := e.saveHeader(ctx); err != nil {
		return err
	}
	e.debug("phase changed",
		zap.String("phase", s.Phase.String()),
		zap.Int("turn", s.Turn),
		zap.Int("round", s.Round),
	)
	return e.record(ctx, s.Active().ID, rules.CommandPhase, nil, nil, false, "")
}

func (e *Engine) requireBusy() error {
	switch e.state.Status {
	case rules.StatusBusy:
		return nil
	case rules.StatusDone:
		return ErrGameOver
	}
	return fmt.Errorf("%w: game %s has not been set up", ErrInvariant, e.state.ID)
}

func (e *Engine) saveHeader(ctx context.Context) error {
	if e.simulation {
		return nil
	}
	if err := e.store.SaveGameHeader(ctx, e.state); err != nil {
		return fmt.Errorf("save game %s: %w", e.state.ID, err)
	}
	return nil
}

func (e *Engine) saveCard(ctx context.Context, card *CardInstance) error {
	if e.simulation {
		return nil
	}
	if err := e.store.SaveCardInstance(ctx, card); err != nil {
		return fmt.Errorf("save card %s: %w", card.ID, err)
	}
	return nil
}

// record appends an event carrying the current (post-mutation) snapshot.
func (e *Engine) record(ctx context.Context, actorID string, command rules.Command, card *CardInstance, ability *catalog.Ability, failed bool, comment string) error {
	if e.simulation {
		return nil
	}
	s := e.state
	event := rules.Event{
		GameID:    s.ID,
		Status:    s.Status,
		Turn:      s.Turn,
		Round:     s.Round,
		Phase:     s.Phase,
		ActorID:   actorID,
		Command:   command,
		Error:     failed,
		Comment:   comment,
		Timestamp: time.Now(),
	}
	for i, p := range s.Players {
		event.Players[i] = rules.PlayerSnapshot{
			Health:    p.Health,
			DeckSize:  len(p.Deck),
			HandSize:  len(p.Hand),
			TableSize: len(p.Table),
			GraveSize: len(p.Grave),
		}
	}
	if card != nil {
		event.CardID = card.ID
	}
	if ability != nil {
		event.AbilityID = ability.ID
	}

	if err := e.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append %s event: %w", command, err)
	}
	if e.bus != nil {
		e.bus.Publish(event)
	}
	return nil
}

func (e *Engine) debug(msg string, fields ...zap.Field) {
	if e.logger == nil {
		return
	}
	e.logger.Debug(msg, append(fields,
		zap.String("game_id", e.state.ID),
		zap.Bool("simulation", e.simulation),
	)...)
}

func (e *Engine) info(msg string, fields ...zap.Field) {
	if e.logger == nil || e.simulation {
		return
	}
	e.logger.Info(msg, append(fields, zap.String("game_id", e.state.ID))...)
}
