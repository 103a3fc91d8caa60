package main

import (
	"os"

	"github.com/spf13/cobra"

	"checkoutgo/internal/interfaces/cli/migrate"
	"checkoutgo/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "checkoutgo",
		Short: "CheckoutGo - payment checkout orchestration service",
		Long:  `CheckoutGo drives hosted checkout sessions across multiple payment providers with webhook confirmation and exactly-once fulfillment.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
