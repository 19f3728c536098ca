package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/debatecards/debate-server-go/internal/game"
	"go.uber.org/zap"
)

const (
	DefaultDepth    = 5
	DefaultMaxNodes = 10000
)

// ErrNoLegalContinuation is returned when the root of a search has no children.
var ErrNoLegalContinuation = errors.New("no move found")

type Option func(b *Bot)

func WithDepth(depth int) Option {
	return func(b *Bot) {
		if depth > 0 {
			b.depth = depth
		}
	}
}

// WithMaxNodes caps how many nodes one search may create. Nodes past the cap
// are scored statically.
func WithMaxNodes(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.maxNodes = n
		}
	}
}

// WithTimeout bounds one search by wall clock. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Bot) {
		if d > 0 {
			b.timeout = d
		}
	}
}

func WithEvaluator(evaluate Evaluator) Option {
	return func(b *Bot) {
		if evaluate != nil {
			b.evaluate = evaluate
		}
	}
}

// WithSeed fixes the shuffle seed of the simulated engines.
func WithSeed(seed uint64) Option {
	return func(b *Bot) {
		b.seed = &seed
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// Bot picks moves with a depth-bounded minimax search using alpha-beta
// cutoffs. A Bot holds no per-search state and may be shared.
type Bot struct {
	depth    int
	maxNodes int
	timeout  time.Duration
	seed     *uint64
	evaluate Evaluator
	logger   *zap.Logger
}

func New(options ...Option) *Bot {
	b := &Bot{
		depth:    DefaultDepth,
		maxNodes: DefaultMaxNodes,
		evaluate: Evaluate,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Result is the outcome of one search.
type Result struct {
	// Moves is the best root child's move sequence.
	Moves []game.Move
	Value float64
	Root  *Node
	Nodes int
	// Truncated is set when the node or time budget cut the search short.
	Truncated bool
	Elapsed   time.Duration
}

type search struct {
	*Bot
	seat      int
	nodes     int
	truncated bool
}

// Analyze searches from state for the player on turn. The state is cloned
// and never modified.
func (b *Bot) Analyze(ctx context.Context, state *game.GameState) (*Result, error) {
	if state.IsOver() {
		return nil, game.ErrGameOver
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	var opts []game.Option
	if b.seed != nil {
		opts = append(opts, game.WithSeed(*b.seed))
	}
	root := &Node{
		Engine:     game.NewSimulation(state, opts...),
		Maximizing: true,
	}
	s := &search{Bot: b, seat: state.Turn, nodes: 1}

	start := time.Now()
	if err := s.expand(ctx, root); err != nil {
		return nil, fmt.Errorf("expand root: %w", err)
	}
	if len(root.Children) == 0 {
		return nil, ErrNoLegalContinuation
	}

	alpha, beta := math.Inf(-1), math.Inf(1)
	for _, child := range root.Children {
		value, err := s.minimax(ctx, child, b.depth-1, alpha, beta, child.Maximizing)
		if err != nil {
			return nil, err
		}
		alpha = math.Max(alpha, value)
	}

	best := root.Children[0]
	for _, child := range root.Children[1:] {
		if child.Value > best.Value {
			best = child
		}
	}
	root.Value, root.Evaluated = best.Value, true

	result := &Result{
		Moves:     best.Moves,
		Value:     best.Value,
		Root:      root,
		Nodes:     s.nodes,
		Truncated: s.truncated,
		Elapsed:   time.Since(start),
	}
	if b.logger != nil {
		b.logger.Debug("search complete",
			zap.String("game_id", state.ID),
			zap.Int("seat", s.seat),
			zap.Stringer("move", best.Moves[0]),
			zap.Float64("value", best.Value),
			zap.Int("nodes", s.nodes),
			zap.Bool("truncated", s.truncated),
			zap.Duration("elapsed", result.Elapsed),
		)
	}
	return result, nil
}

// minimax scores n from the root player's point of view.
func (s *search) minimax(ctx context.Context, n *Node, depth int, alpha, beta float64, maximizing bool) (float64, error) {
	if depth <= 0 || n.State().IsOver() || s.exhausted(ctx) {
		return s.leaf(n), nil
	}
	if err := s.expand(ctx, n); err != nil {
		return 0, err
	}
	if len(n.Children) == 0 {
		return s.leaf(n), nil
	}

	var value float64
	if maximizing {
		value = math.Inf(-1)
		for _, child := range n.Children {
			v, err := s.minimax(ctx, child, depth-1, alpha, beta, child.Maximizing)
			if err != nil {
				return 0, err
			}
			value = math.Max(value, v)
			alpha = math.Max(alpha, value)
			if alpha >= beta {
				break
			}
		}
	} else {
		value = math.Inf(1)
		for _, child := range n.Children {
			v, err := s.minimax(ctx, child, depth-1, alpha, beta, child.Maximizing)
			if err != nil {
				return 0, err
			}
			value = math.Min(value, v)
			beta = math.Min(beta, value)
			if alpha >= beta {
				break
			}
		}
	}
	n.Value, n.Evaluated = value, true
	return value, nil
}

func (s *search) leaf(n *Node) float64 {
	n.Value, n.Evaluated = s.evaluate(n.State(), s.seat), true
	return n.Value
}

func (s *search) exhausted(ctx context.Context) bool {
	if s.nodes >= s.maxNodes || ctx.Err() != nil {
		s.truncated = true
		return true
	}
	return false
}

// Play searches from the engine's state and applies the chosen move sequence
// through the engine.
func (b *Bot) Play(ctx context.Context, e *game.Engine) (*Result, error) {
	result, err := b.Analyze(ctx, e.State())
	if err != nil {
		return nil, err
	}
	for _, move := range result.Moves {
		if err := e.Apply(ctx, move); err != nil {
			return nil, fmt.Errorf("apply %s: %w", move, err)
		}
	}
	return result, nil
}
