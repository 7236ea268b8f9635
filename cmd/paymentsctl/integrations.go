package main

import (
	"fmt"

	"github.com/restpay/payments/internal/integration"
	"github.com/spf13/cobra"
)

func integrationsCmd(registry *integration.Registry) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Inspect the integration registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List identifiers usable in DEFAULT_INTEGRATION_CLASSES",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range registry.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	return cmd
}
