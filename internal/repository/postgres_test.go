package repository

import (
	"context"
	"os"
	"testing"

	"github.com/debatecards/debate-server-go/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestPostgresStore needs a disposable database; it wipes every game and the
// catalog.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DEBATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("DEBATE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	db, err := NewDB(ctx, config.DatabaseConfig{URL: url, MaxConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	exerciseStore(t, NewPostgres(db, logger))
}
