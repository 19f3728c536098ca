package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/debatecards/debate-server-go/internal/bot"
	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// ErrEmptyCatalog is returned when a game is requested before any card
// definitions were generated.
var ErrEmptyCatalog = errors.New("card catalog is empty")

// Repository is the persistence the service needs beyond the engine's Store.
type Repository interface {
	game.Store
	Events(ctx context.Context, gameID string) ([]rules.Event, error)
	CreateGame(ctx context.Context, state *game.GameState) error
	FindUnfinished(ctx context.Context) (string, bool, error)
	ClearGames(ctx context.Context) (int64, error)
	ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error
	LoadCatalog(ctx context.Context) (*catalog.Catalog, error)
	LockGame(ctx context.Context, gameID string) (func(), error)
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithBot(b *bot.Bot) Option {
	return func(s *Service) {
		if b != nil {
			s.bot = b
		}
	}
}

// WithEventBus publishes the events of every live engine the service runs.
func WithEventBus(bus *rules.EventBus) Option {
	return func(s *Service) {
		s.bus = bus
	}
}

// WithReplay captures a snapshot after every step and flushes finished games.
func WithReplay(recorder *game.ReplayRecorder) Option {
	return func(s *Service) {
		s.replay = recorder
	}
}

// WithSeed makes deck generation and shuffles reproducible. Zero keeps the
// time-based default.
func WithSeed(seed uint64) Option {
	return func(s *Service) {
		if seed != 0 {
			s.rng = rand.New(rand.NewSource(seed))
		}
	}
}

func WithDeckSpec(spec catalog.DeckSpec) Option {
	return func(s *Service) {
		s.deckSpec = spec
	}
}

// Service runs simulated matches step by step against a Repository.
type Service struct {
	repo     Repository
	bot      *bot.Bot
	bus      *rules.EventBus
	replay   *game.ReplayRecorder
	logger   *zap.Logger
	deckSpec catalog.DeckSpec
	watchers *rules.WatcherRegistry
	stats    *rules.StatsWatcher

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		deckSpec: catalog.DefaultDeckSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bot == nil {
		s.bot = bot.New(bot.WithLogger(s.logger))
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	if s.bus == nil {
		s.bus = rules.NewEventBus()
	}
	s.stats = rules.NewStatsWatcher()
	s.watchers = rules.NewWatcherRegistry()
	s.watchers.AddWatcher(s.stats)
	s.watchers.Attach(s.bus)
	return s
}

// GenerateCatalog replaces the stored catalog with the standard one. Games
// built on the previous catalog are removed.
func (s *Service) GenerateCatalog(ctx context.Context) (*catalog.Catalog, error) {
	c := catalog.Standard()
	if err := s.repo.ReplaceCatalog(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store catalog: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("catalog generated", zap.Int("cards", c.Len()))
	}
	return c, nil
}

// ClearSimulations deletes every simulated game.
func (s *Service) ClearSimulations(ctx context.Context) (int64, error) {
	n, err := s.repo.ClearGames(ctx)
	if err != nil {
		return 0, err
	}
	if s.logger != nil {
		s.logger.Info("simulations cleared", zap.Int64("games", n))
	}
	return n, nil
}

// NewGame creates and stores a game with two random decks.
func (s *Service) NewGame(ctx context.Context) (*game.GameState, error) {
	defs, err := s.repo.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if defs.Len() == 0 {
		return nil, ErrEmptyCatalog
	}

	s.rngMu.Lock()
	deck1, err1 := catalog.RandomDeck(s.rng, defs, s.deckSpec)
	deck2, err2 := catalog.RandomDeck(s.rng, defs, s.deckSpec)
	s.rngMu.Unlock()
	if err := errors.Join(err1, err2); err != nil {
		return nil, fmt.Errorf("failed to build decks: %w", err)
	}

	state := game.NewGameState(uuid.NewString(),
		game.NewPlayerState(uuid.NewString(), 1, deck1),
		game.NewPlayerState(uuid.NewString(), 2, deck2),
	)
	if err := s.repo.CreateGame(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("game created",
			zap.String("game_id", state.ID),
			zap.Int("deck_size", len(deck1)),
		)
	}
	return state, nil
}

// StepResult describes what one simulation step did.
type StepResult struct {
	GameID   string
	Created  bool
	SetUp    bool
	Moves    []game.Move
	Value    float64
	Nodes    int
	State    *game.GameState
	Checksum string
	Stats    *rules.GameStats // set once the game is over
}

// Step advances the oldest unfinished simulation by one action, creating a
// new game when none is running. A game in Setup is dealt; otherwise the bot
// picks and applies a move.
func (s *Service) Step(ctx context.Context) (*StepResult, error) {
	result := &StepResult{}
	id, found, err := s.repo.FindUnfinished(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		state, err := s.NewGame(ctx)
		if err != nil {
			return nil, err
		}
		id, result.Created = state.ID, true
	}
	result.GameID = id

	unlock, err := s.repo.LockGame(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	e, err := game.Load(ctx, s.repo, id, s.engineOptions()...)
	if err != nil {
		return nil, err
	}

	switch e.State().Status {
	case rules.StatusSetup:
		if err := e.SetupGame(ctx); err != nil {
			return nil, fmt.Errorf("failed to set up game %s: %w", id, err)
		}
		result.SetUp = true
	case rules.StatusBusy:
		played, err := s.bot.Play(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("failed to play game %s: %w", id, err)
		}
		result.Moves, result.Value, result.Nodes = played.Moves, played.Value, played.Nodes
	default:
		return nil, fmt.Errorf("game %s: %w", id, game.ErrGameOver)
	}

	state := e.State()
	result.State = state
	result.Checksum = state.Checksum()
	s.record(state)
	if state.IsOver() {
		if stats, ok := s.stats.Stats(id); ok {
			result.Stats = &stats
			s.logStats(state, stats)
		}
		s.watchers.ResetWatchers(id)
	}

	if s.logger != nil {
		s.logger.Info("simulation step",
			zap.String("game_id", id),
			zap.Bool("created", result.Created),
			zap.Bool("setup", result.SetUp),
			zap.Any("moves", moveNames(result.Moves)),
			zap.String("status", state.Status.String()),
			zap.String("phase", state.Phase.String()),
			zap.Int("round", state.Round),
		)
	}
	return result, nil
}

// Run steps until the current game finishes or maxSteps is reached. A
// non-positive maxSteps means no limit.
func (s *Service) Run(ctx context.Context, maxSteps int) (*StepResult, int, error) {
	var last *StepResult
	steps := 0
	for maxSteps <= 0 || steps < maxSteps {
		if err := ctx.Err(); err != nil {
			return last, steps, err
		}
		result, err := s.Step(ctx)
		if err != nil {
			return last, steps, err
		}
		last = result
		steps++
		if result.State.IsOver() {
			break
		}
	}
	return last, steps, nil
}

// Game returns a stored game and its event log.
func (s *Service) Game(ctx context.Context, id string) (*game.GameState, []rules.Event, error) {
	state, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	events, err := s.repo.Events(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return state, events, nil
}

func (s *Service) engineOptions() []game.Option {
	s.rngMu.Lock()
	seed := s.rng.Uint64()
	s.rngMu.Unlock()

	opts := []game.Option{game.WithSeed(seed)}
	if s.logger != nil {
		opts = append(opts, game.WithLogger(s.logger))
	}
	if s.bus != nil {
		opts = append(opts, game.WithEventBus(s.bus))
	}
	return opts
}

func (s *Service) record(state *game.GameState) {
	if s.replay == nil {
		return
	}
	s.replay.Capture(state)
	if !state.IsOver() {
		return
	}
	if err := s.replay.Flush(state.ID); err != nil && s.logger != nil {
		s.logger.Warn("failed to save replay", zap.String("game_id", state.ID), zap.Error(err))
	}
}

func (s *Service) logStats(state *game.GameState, stats rules.GameStats) {
	if s.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("game_id", stats.GameID),
		zap.Int("events", stats.Events),
		zap.Int("rounds", stats.Rounds),
	}
	if winner, ok := state.Winner(); ok {
		fields = append(fields, zap.String("winner", winner.ID))
	}
	for _, p := range state.Players {
		ps := stats.Players[p.ID]
		fields = append(fields, zap.Dict(p.ID,
			zap.Int("plays", ps.Plays),
			zap.Int("attacks", ps.Attacks),
			zap.Int("damage", ps.DamageDealt),
			zap.Int("draws", ps.Draws),
		))
	}
	s.logger.Info("game finished", fields...)
}

func moveNames(moves []game.Move) []string {
	out := make([]string, len(moves))
	for i, m := range moves {
		out[i] = m.String()
	}
	return out
}
