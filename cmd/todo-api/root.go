package main

import (
	"os"

	"github.com/ryanvade/infra-demo-lnl/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "todo-api",
		Short:         "Todo API with JWKS bearer authentication",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCmd()
	rootCmd.RunE = serve.RunE
	rootCmd.AddCommand(serve, newJWKSCmd())

	return rootCmd
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func initLogger() (*zap.Logger, error) {
	return observability.NewLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}
