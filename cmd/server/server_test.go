// cmd/server/server_test.go
package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/protocol"
	"cyton-service/internal/service"
	"cyton-service/internal/simulator"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "ports", "impedance"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup(ConfigOptionName))
	assert.NotNil(t, root.PersistentFlags().Lookup(LogLevelOptionName))
}

func TestRootOptions_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  type: simulator\nlogging:\n  output: stderr\n"), 0o644))

	t.Run("bad log level", func(t *testing.T) {
		_, _, err := (&rootOptions{configPath: path, logLevel: "loud"}).load()
		assert.Error(t, err)
	})

	t.Run("simulator transport registered", func(t *testing.T) {
		cfg, logger, err := (&rootOptions{configPath: path, logLevel: "error"}).load()
		require.NoError(t, err)
		assert.Equal(t, "error", cfg.Logging.Level)
		assert.Contains(t, protocol.Kinds(), simulator.TransportName)

		tr, err := protocol.NewTransport(cfg.TransportConfig(), logger)
		require.NoError(t, err)
		assert.Equal(t, simulator.TransportName, tr.Name())
	})
}

func TestRunSweep(t *testing.T) {
	cfg := simulator.DefaultConfig()
	cfg.AlphaMicroV = 0
	cfg.NoiseMicroV = 0.05
	bs := service.NewBoardService(simulator.NewBoard(cfg, zap.NewNop()), cyton.DefaultOptions(), zap.NewNop())
	bs.SetHealthInterval(0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := runSweep(ctx, bs, "p-------", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Channel)
	assert.InDelta(t, 4000, results[0].P.Raw, 1500)

	var out bytes.Buffer
	printImpedance(&out, results)
	assert.Contains(t, out.String(), "channel")
	assert.Contains(t, out.String(), results[0].P.Text)
}
