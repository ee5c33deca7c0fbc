// cmd/server/ports.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cyton-service/internal/discovery"
)

func NewPortsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports, likely dongles first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := opts.load()
			if err != nil {
				return err
			}
			ports, err := discovery.NewScanner(logger).Scan(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range ports {
				marker := " "
				if p.IsDongle {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-20s %4s:%-4s %-28s %.2f\n", marker, p.Name, p.VendorID, p.ProductID, p.Model, p.Confidence)
			}
			if len(ports) == 0 {
				fmt.Fprintln(out, "no serial ports found")
			}
			return nil
		},
	}
}
