package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, "/events", cfg.Server.WebSocket.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, 5, cfg.Bot.Depth)
	assert.Equal(t, 30*time.Second, cfg.Bot.Timeout)
	assert.Equal(t, catalog.DefaultDeckSpec, cfg.Engine.DeckSpec())
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
storage:
  driver: memory
logging:
  level: debug
  format: json
bot:
  depth: 3
  timeout: 2s
engine:
  seed: 77
  persons: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DEBATE_BOT_MAX_NODES", "500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Bot.Depth)
	assert.Equal(t, 2*time.Second, cfg.Bot.Timeout)
	assert.Equal(t, 500, cfg.Bot.MaxNodes)
	assert.Equal(t, uint64(77), cfg.Engine.Seed)
	assert.Equal(t, 10, cfg.Engine.Persons)
	assert.Equal(t, catalog.DefaultDeckSpec.OpinionCopies, cfg.Engine.OpinionCopies)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := *cfg
	bad.Storage.Driver = "sqlite"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Database.URL = ""
	assert.Error(t, bad.Validate())

	bad.Storage.Driver = DriverMemory
	assert.NoError(t, bad.Validate())

	bad.Bot.Depth = 0
	assert.Error(t, bad.Validate())
}

func TestWebSocketEventCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  websocket:
    commands: [attack, " status "]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	commands, err := cfg.Server.WebSocket.EventCommands()
	require.NoError(t, err)
	assert.Equal(t, []rules.Command{rules.CommandAttack, rules.CommandStatus}, commands)

	defaults, err := Load("")
	require.NoError(t, err)
	commands, err = defaults.Server.WebSocket.EventCommands()
	require.NoError(t, err)
	assert.Empty(t, commands)

	cfg.Server.WebSocket.Commands = []string{"cast"}
	assert.ErrorContains(t, cfg.Validate(), "server.websocket.commands")
}
