package main

import (
	"fmt"
	"strings"

	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/settings"
	"github.com/spf13/cobra"
)

func settingsCmd(load settingsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and validate payment settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get NAME",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}

			name := strings.ToUpper(args[0])
			value, err := s.Get(name)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, displayValue(name, value))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print every recognized setting",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}

			for _, name := range settings.Names() {
				value, err := s.Get(name)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: error: %v\n", name, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, displayValue(name, value))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Resolve every integration and validate typed settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load()
			if err != nil {
				return err
			}

			if err := s.Check(); err != nil {
				return fmt.Errorf("settings check failed: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "settings OK")
			return nil
		},
	})

	return cmd
}

// displayValue renders a setting for an operator. Secrets only report
// whether they are set.
func displayValue(name string, value any) string {
	if settings.IsSecret(name) {
		if value == nil || fmt.Sprint(value) == "" {
			return "not set"
		}
		return "(set)"
	}

	switch v := value.(type) {
	case nil:
		return "none"
	case domain.Integration:
		return v.Name()
	case []domain.Integration:
		names := make([]string, 0, len(v))
		for _, i := range v {
			names = append(names, i.Name())
		}
		return "[" + strings.Join(names, ", ") + "]"
	case []string:
		return "[" + strings.Join(v, ", ") + "]"
	}
	return fmt.Sprint(value)
}
