package game

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"golang.org/x/crypto/blake2b"
)

// Snapshot is a flat, gob-encodable copy of a GameState. Card definitions are
// referenced by id and resolved against a catalog on restore.
type Snapshot struct {
	Game      GameRecord
	Players   [2]PlayerRecord
	Cards     []CardRecord
	Timestamp time.Time
}

// NewSnapshot captures the current state.
func NewSnapshot(s *GameState) *Snapshot {
	g, players, cards := s.Records()
	return &Snapshot{
		Game:      g,
		Players:   players,
		Cards:     cards,
		Timestamp: time.Now(),
	}
}

// Restore rebuilds the GameState the snapshot was taken from.
func (snapshot *Snapshot) Restore(defs *catalog.Catalog) (*GameState, error) {
	return Restore(snapshot.Game, snapshot.Players[:], snapshot.Cards, defs)
}

// Checksum returns a hex BLAKE2b-256 digest of the canonical state
// representation. Timestamps are excluded, so equal states hash equally.
func (snapshot *Snapshot) Checksum() string {
	sum := blake2b.Sum256([]byte(snapshot.canonical()))
	return hex.EncodeToString(sum[:])
}

// canonical renders the snapshot with cards in seat, zone and position order.
func (snapshot *Snapshot) canonical() string {
	var b strings.Builder
	g := snapshot.Game
	fmt.Fprintf(&b, "GAME:%s|%s|%d|%d|%s|%s\n", g.ID, g.Status, g.Turn, g.Round, g.Phase, g.LastCombatActor)
	for _, p := range snapshot.Players {
		fmt.Fprintf(&b, "PLAYER:%s|%d|%d|%d|%d\n", p.ID, p.Seat, p.Health, p.ResourcePool, p.LastPersonTurn)
		for _, c := range snapshot.Cards {
			if c.PlayerID != p.ID {
				continue
			}
			fmt.Fprintf(&b, "CARD:%s|%s|%s|%d|%t\n", c.ID, c.CardID, c.Zone, c.Position, c.Tapped)
		}
	}
	return b.String()
}

// Checksum hashes the state's canonical form.
func (s *GameState) Checksum() string {
	return NewSnapshot(s).Checksum()
}

// Encode gob-encodes the snapshot.
func (snapshot *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snapshot); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot decodes a gob-encoded snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snapshot Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}
