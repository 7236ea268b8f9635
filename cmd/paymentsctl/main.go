// Command paymentsctl inspects the payment settings of a deployment
// without starting the API.
package main

import (
	"fmt"
	"os"

	"github.com/restpay/payments/internal/config"
	_ "github.com/restpay/payments/internal/infrastructure/gateway/dummy"
	_ "github.com/restpay/payments/internal/infrastructure/gateway/stripe"
	"github.com/restpay/payments/internal/integration"
	"github.com/restpay/payments/internal/settings"
	"github.com/spf13/cobra"
)

var Version = "dev"

// settingsLoader builds the Settings a command works against.
type settingsLoader func() (*settings.Settings, error)

func main() {
	rootCmd := newRootCmd(loadSettings, integration.Default)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(load settingsLoader, registry *integration.Registry) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Inspect payment settings and integrations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(settingsCmd(load))
	rootCmd.AddCommand(integrationsCmd(registry))

	return rootCmd
}

func loadSettings() (*settings.Settings, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return settings.New(cfg.Payments, integration.Default), nil
}
