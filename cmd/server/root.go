// cmd/server/root.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cyton-service/internal/config"
	"cyton-service/internal/protocol"
	"cyton-service/internal/simulator"
	"cyton-service/internal/utils"
)

const (
	ConfigOptionName   = "config"
	LogLevelOptionName = "log-level"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

// NewRootCommand builds the cyton-service command tree
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "cyton-service",
		Short:         "OpenBCI Cyton board service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, ConfigOptionName, "", "Path to config file. Defaults to ./config.yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, LogLevelOptionName, "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(
		NewServeCommand(opts),
		NewPortsCommand(opts),
		NewImpedanceCommand(opts),
	)
	return cmd
}

// load reads the configuration, applies flag overrides and builds the logger
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.logLevel != "" {
		if _, err := utils.ParseLevel(o.logLevel); err != nil {
			return nil, nil, err
		}
		cfg.Logging.Level = o.logLevel
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	registerSimulator(cfg)
	return cfg, logger, nil
}

// registerSimulator makes transport.type "simulator" resolve to the built-in
// board model configured by the simulator section.
func registerSimulator(cfg *config.Config) {
	simCfg := cfg.SimulatorConfig()
	protocol.Register(simulator.TransportName, func(_ protocol.TransportConfig, logger *zap.Logger) (protocol.Transport, error) {
		return simulator.NewBoard(simCfg, logger), nil
	})
}
