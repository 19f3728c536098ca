package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const catalogBatchSize = 500

// Postgres is the PostgreSQL implementation of game.Store plus the match
// bookkeeping queries.
type Postgres struct {
	db     *DB
	logger *zap.Logger

	mu   sync.Mutex
	defs *catalog.Catalog
}

func NewPostgres(db *DB, logger *zap.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Load materializes a game with all its players and card instances.
func (p *Postgres) Load(ctx context.Context, gameID string) (*game.GameState, error) {
	defs, err := p.catalog(ctx)
	if err != nil {
		return nil, err
	}

	var (
		g             game.GameRecord
		status, phase string
	)
	err = p.db.Pool.QueryRow(ctx, `
		SELECT id, status, turn, round, phase, last_combat_actor
		FROM games WHERE id = $1
	`, gameID).Scan(&g.ID, &status, &g.Turn, &g.Round, &phase, &g.LastCombatActor)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", gameID, err)
	}
	if g.Status, err = rules.ParseStatus(status); err != nil {
		return nil, err
	}
	if g.Phase, err = rules.ParsePhase(phase); err != nil {
		return nil, err
	}

	players, err := p.loadPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	cards, err := p.loadCards(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return game.Restore(g, players, cards, defs)
}

func (p *Postgres) loadPlayers(ctx context.Context, gameID string) ([]game.PlayerRecord, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT id, game_id, seat, health, resource_pool, last_person_turn
		FROM players WHERE game_id = $1 ORDER BY seat
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	var players []game.PlayerRecord
	for rows.Next() {
		var rec game.PlayerRecord
		if err := rows.Scan(&rec.ID, &rec.GameID, &rec.Seat, &rec.Health, &rec.ResourcePool, &rec.LastPersonTurn); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, rec)
	}
	return players, rows.Err()
}

func (p *Postgres) loadCards(ctx context.Context, gameID string) ([]game.CardRecord, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT ci.id, ci.player_id, ci.card_id, ci.zone, ci.position, ci.tapped
		FROM card_instances ci
		JOIN players pl ON pl.id = ci.player_id
		WHERE pl.game_id = $1
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card instances: %w", err)
	}
	defer rows.Close()

	var cards []game.CardRecord
	for rows.Next() {
		var (
			rec  game.CardRecord
			zone string
		)
		if err := rows.Scan(&rec.ID, &rec.PlayerID, &rec.CardID, &zone, &rec.Position, &rec.Tapped); err != nil {
			return nil, fmt.Errorf("failed to scan card instance: %w", err)
		}
		if rec.Zone, err = game.ParseZone(zone); err != nil {
			return nil, err
		}
		cards = append(cards, rec)
	}
	return cards, rows.Err()
}

// SaveGameHeader upserts the game row and both player rows in one transaction.
func (p *Postgres) SaveGameHeader(ctx context.Context, state *game.GameState) error {
	return pgx.BeginFunc(ctx, p.db.Pool, func(tx pgx.Tx) error {
		return saveHeader(ctx, tx, state)
	})
}

func saveHeader(ctx context.Context, tx pgx.Tx, state *game.GameState) error {
	g, players := state.Header()
	_, err := tx.Exec(ctx, `
		INSERT INTO games (id, status, turn, round, phase, last_combat_actor)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			turn = EXCLUDED.turn,
			round = EXCLUDED.round,
			phase = EXCLUDED.phase,
			last_combat_actor = EXCLUDED.last_combat_actor,
			updated_at = now()
	`, g.ID, g.Status.String(), g.Turn, g.Round, g.Phase.String(), g.LastCombatActor)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}

	for _, rec := range players {
		_, err := tx.Exec(ctx, `
			INSERT INTO players (id, game_id, seat, health, resource_pool, last_person_turn)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				health = EXCLUDED.health,
				resource_pool = EXCLUDED.resource_pool,
				last_person_turn = EXCLUDED.last_person_turn
		`, rec.ID, rec.GameID, rec.Seat, rec.Health, rec.ResourcePool, rec.LastPersonTurn)
		if err != nil {
			return fmt.Errorf("failed to save player %s: %w", rec.ID, err)
		}
	}
	return nil
}

const upsertCardSQL = `
	INSERT INTO card_instances (id, player_id, card_id, zone, position, tapped)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		zone = EXCLUDED.zone,
		position = EXCLUDED.position,
		tapped = EXCLUDED.tapped
`

// SaveCardInstance upserts one card instance.
func (p *Postgres) SaveCardInstance(ctx context.Context, card *game.CardInstance) error {
	rec := game.NewCardRecord(card)
	_, err := p.db.Pool.Exec(ctx, upsertCardSQL, rec.ID, rec.PlayerID, rec.CardID, rec.Zone.String(), rec.Position, rec.Tapped)
	if err != nil {
		return fmt.Errorf("failed to save card instance %s: %w", rec.ID, err)
	}
	return nil
}

// AppendEvent inserts one event log row.
func (p *Postgres) AppendEvent(ctx context.Context, event rules.Event) error {
	return appendEvent(ctx, p.db.Pool, event)
}

// execer is the part of pgxpool.Pool, pgx.Conn and pgx.Tx used to append events.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const insertEventSQL = `
	INSERT INTO game_events (
		game_id, status, turn, round, phase,
		p1_health, p1_deck, p1_hand, p1_table, p1_grave,
		p2_health, p2_deck, p2_hand, p2_table, p2_grave,
		actor_id, command, card_instance_id, ability_id, error, comment, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
`

func appendEvent(ctx context.Context, db execer, event rules.Event) error {
	p1, p2 := event.Players[0], event.Players[1]
	_, err := db.Exec(ctx, insertEventSQL,
		event.GameID, event.Status.String(), event.Turn, event.Round, event.Phase.String(),
		p1.Health, p1.DeckSize, p1.HandSize, p1.TableSize, p1.GraveSize,
		p2.Health, p2.DeckSize, p2.HandSize, p2.TableSize, p2.GraveSize,
		event.ActorID, event.Command.String(), event.CardID, event.AbilityID, event.Error, event.Comment, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append %s event: %w", event.Command, err)
	}
	return nil
}

// Events returns a game's event log in insertion order.
func (p *Postgres) Events(ctx context.Context, gameID string) ([]rules.Event, error) {
	rows, err := p.db.Pool.Query(ctx, `
		SELECT game_id, status, turn, round, phase,
			p1_health, p1_deck, p1_hand, p1_table, p1_grave,
			p2_health, p2_deck, p2_hand, p2_table, p2_grave,
			actor_id, command, card_instance_id, ability_id, error, comment, created_at
		FROM game_events WHERE game_id = $1 ORDER BY id
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []rules.Event
	for rows.Next() {
		var (
			e                      rules.Event
			status, phase, command string
		)
		p1, p2 := &e.Players[0], &e.Players[1]
		err := rows.Scan(&e.GameID, &status, &e.Turn, &e.Round, &phase,
			&p1.Health, &p1.DeckSize, &p1.HandSize, &p1.TableSize, &p1.GraveSize,
			&p2.Health, &p2.DeckSize, &p2.HandSize, &p2.TableSize, &p2.GraveSize,
			&e.ActorID, &command, &e.CardID, &e.AbilityID, &e.Error, &e.Comment, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if e.Status, err = rules.ParseStatus(status); err != nil {
			return nil, err
		}
		if e.Phase, err = rules.ParsePhase(phase); err != nil {
			return nil, err
		}
		if e.Command, err = rules.ParseCommand(command); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CreateGame inserts a new game with its players and every card instance.
func (p *Postgres) CreateGame(ctx context.Context, state *game.GameState) error {
	return pgx.BeginFunc(ctx, p.db.Pool, func(tx pgx.Tx) error {
		if err := saveHeader(ctx, tx, state); err != nil {
			return err
		}
		_, _, cards := state.Records()
		batch := &pgx.Batch{}
		for _, rec := range cards {
			batch.Queue(upsertCardSQL, rec.ID, rec.PlayerID, rec.CardID, rec.Zone.String(), rec.Position, rec.Tapped)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert card instances: %w", err)
		}
		return nil
	})
}

// FindUnfinished returns the oldest simulated game that is not Done.
func (p *Postgres) FindUnfinished(ctx context.Context) (string, bool, error) {
	var id string
	err := p.db.Pool.QueryRow(ctx, `
		SELECT id FROM games
		WHERE status <> $1 AND is_simulation
		ORDER BY created_at, id LIMIT 1
	`, rules.StatusDone.String()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to find unfinished game: %w", err)
	}
	return id, true, nil
}

// ClearGames deletes every simulated game. Players, card instances and
// events go with them.
func (p *Postgres) ClearGames(ctx context.Context) (int64, error) {
	tag, err := p.db.Pool.Exec(ctx, `DELETE FROM games WHERE is_simulation`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear games: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReplaceCatalog swaps the stored catalog for c. Existing games reference the
// old definitions and are deleted with them.
func (p *Postgres) ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error {
	err := pgx.BeginFunc(ctx, p.db.Pool, func(tx pgx.Tx) error {
		for _, stmt := range []string{`DELETE FROM games`, `DELETE FROM cards`, `DELETE FROM abilities`} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear catalog: %w", err)
			}
		}

		batch := &pgx.Batch{}
		for _, a := range c.Abilities() {
			batch.Queue(`INSERT INTO abilities (id, cost, benefit) VALUES ($1, $2, $3)`, a.ID, string(a.Cost), string(a.Benefit))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert abilities: %w", err)
		}

		cards := c.Cards()
		for i := 0; i < len(cards); i += catalogBatchSize {
			end := min(i+catalogBatchSize, len(cards))
			batch := &pgx.Batch{}
			for _, card := range cards[i:end] {
				batch.Queue(`
					INSERT INTO cards (id, kind, support_cost, power, endurance)
					VALUES ($1, $2, $3, $4, $5)
				`, card.ID, string(card.Kind), card.SupportCost, card.Power, card.Endurance)
				for _, a := range card.Abilities {
					batch.Queue(`INSERT INTO card_abilities (card_id, ability_id) VALUES ($1, $2)`, card.ID, a.ID)
				}
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert cards %d-%d: %w", i, end, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.defs = c
	p.mu.Unlock()
	if p.logger != nil {
		p.logger.Info("catalog replaced",
			zap.Int("cards", c.Len()),
			zap.Int("abilities", len(c.Abilities())),
		)
	}
	return nil
}

// LoadCatalog reads every card and ability definition.
func (p *Postgres) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	abilities := make(map[string]*catalog.Ability)
	rows, err := p.db.Pool.Query(ctx, `SELECT id, cost, benefit FROM abilities`)
	if err != nil {
		return nil, fmt.Errorf("failed to query abilities: %w", err)
	}
	for rows.Next() {
		var id, cost, benefit string
		if err := rows.Scan(&id, &cost, &benefit); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan ability: %w", err)
		}
		abilities[id] = &catalog.Ability{ID: id, Cost: catalog.CostKind(cost), Benefit: catalog.BenefitKind(benefit)}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links := make(map[string][]*catalog.Ability)
	rows, err = p.db.Pool.Query(ctx, `SELECT card_id, ability_id FROM card_abilities ORDER BY card_id, ability_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query card abilities: %w", err)
	}
	for rows.Next() {
		var cardID, abilityID string
		if err := rows.Scan(&cardID, &abilityID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan card ability: %w", err)
		}
		links[cardID] = append(links[cardID], abilities[abilityID])
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = p.db.Pool.Query(ctx, `SELECT id, kind, support_cost, power, endurance FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	c := catalog.New()
	for rows.Next() {
		var (
			card             catalog.Card
			kind             string
			power, endurance *int
		)
		if err := rows.Scan(&card.ID, &kind, &card.SupportCost, &power, &endurance); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		if card.Kind, err = catalog.ParseKind(kind); err != nil {
			return nil, err
		}
		card.Power, card.Endurance = power, endurance
		card.Abilities = links[card.ID]
		if err := c.Add(&card); err != nil {
			return nil, err
		}
	}
	return c, rows.Err()
}

func (p *Postgres) catalog(ctx context.Context) (*catalog.Catalog, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.defs != nil {
		return p.defs, nil
	}
	defs, err := p.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	p.defs = defs
	return defs, nil
}

// LockGame takes a session-level advisory lock on gameID so only one live
// engine mutates it at a time. The returned func releases the lock.
func (p *Postgres) LockGame(ctx context.Context, gameID string) (func(), error) {
	conn, err := p.db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, gameID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to lock game %s: %w", gameID, err)
	}

	return func() {
		if _, err := conn.Exec(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, gameID); err != nil && p.logger != nil {
			p.logger.Warn("failed to release game lock", zap.String("game_id", gameID), zap.Error(err))
		}
		conn.Release()
	}, nil
}
