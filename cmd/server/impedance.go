// cmd/server/impedance.go
package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/protocol"
	"cyton-service/internal/service"
)

const LayoutOptionName = "layout"

// NewImpedanceCommand connects, runs one impedance sweep and prints it
func NewImpedanceCommand(opts *rootOptions) *cobra.Command {
	var layout string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "impedance",
		Short: "Measure electrode impedance once and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			transport, err := protocol.NewTransport(cfg.TransportConfig(), logger)
			if err != nil {
				return err
			}
			bs := service.NewBoardService(transport, cfg.SessionOptions(), logger)
			bs.SetHealthInterval(0)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			results, err := runSweep(ctx, bs, layout, logger)
			if err != nil {
				return err
			}
			printImpedance(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().StringVar(&layout, LayoutOptionName, "", "One of p, n, b or - per channel. Empty tests every input")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up after this long")
	return cmd
}

func runSweep(ctx context.Context, bs *service.BoardService, layout string, logger *zap.Logger) ([]cyton.ChannelImpedance, error) {
	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- bs.Run(runCtx) }()
	defer func() {
		stop()
		<-done
	}()

	if _, err := bs.Connect(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := bs.Disconnect(context.Background()); err != nil {
			logger.Debug("Disconnect after sweep", zap.Error(err))
		}
	}()
	if err := bs.StreamStart(ctx); err != nil {
		return nil, err
	}
	if layout != "" {
		return bs.ImpedanceTestChannels(ctx, layout)
	}
	return bs.ImpedanceTestAll(ctx)
}

func printImpedance(w io.Writer, results []cyton.ChannelImpedance) {
	fmt.Fprintf(w, "%-8s %14s %-8s %14s %-8s\n", "channel", "P ohms", "P", "N ohms", "N")
	for _, r := range results {
		fmt.Fprintf(w, "%-8d %14.0f %-8s %14.0f %-8s\n", r.Channel, r.P.Raw, r.P.Text, r.N.Raw, r.N.Text)
	}
}
