package bot

import (
	"context"
	"errors"

	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// Node is one hypothetical state in the search tree. Each node owns its
// simulation engine; no state is shared between branches.
type Node struct {
	Parent   *Node
	Children []*Node
	// Moves is the sequence that produced this node from its parent.
	Moves      []game.Move
	Engine     *game.Engine
	Depth      int
	Maximizing bool
	Value      float64
	Evaluated  bool
}

// State returns the node's game state.
func (n *Node) State() *game.GameState {
	return n.Engine.State()
}

// SamePlayerAsParent reports whether the player on turn did not change
// between the parent and this node.
func (n *Node) SamePlayerAsParent() bool {
	if n.Parent == nil {
		return true
	}
	return n.State().Turn == n.Parent.State().Turn
}

// expand creates one child per legal move, plus a Pass child in action
// phases. Moves the engine rejects as recoverable are dropped; anything else
// aborts the search.
func (s *search) expand(ctx context.Context, n *Node) error {
	moves, err := n.Engine.AvailableMoves()
	if err != nil {
		return err
	}
	if rules.IsActionPhase(n.State().Phase) && !n.State().IsOver() {
		moves = append([]game.Move{{Kind: game.MovePass}}, moves...)
	}

	for _, move := range moves {
		child := &Node{
			Parent: n,
			Moves:  []game.Move{move},
			Engine: n.Engine.Simulate(),
			Depth:  n.Depth + 1,
		}
		if err := child.Engine.Apply(ctx, move); err != nil {
			if game.IsRecoverable(err) || errors.Is(err, game.ErrStall) {
				if s.logger != nil {
					s.logger.Debug("dropping branch", zap.String("move", move.String()), zap.Error(err))
				}
				continue
			}
			return err
		}
		// same player keeps the flag, a new player flips it
		child.Maximizing = n.Maximizing == child.SamePlayerAsParent()
		n.Children = append(n.Children, child)
		s.nodes++
	}
	return nil
}
