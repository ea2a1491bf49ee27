package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/ryanvade/infra-demo-lnl/jwks"
	"github.com/spf13/cobra"
)

func newJWKSCmd() *cobra.Command {
	var (
		authority string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Fetch the authority's signing keys and list them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if authority == "" {
				_ = godotenv.Load(".env")
				authority = os.Getenv("AUTHORITY")
			}
			if authority == "" {
				return errors.New("AUTHORITY is required")
			}

			logger, err := initLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			endpoint, err := jwks.Endpoint(authority)
			if err != nil {
				return err
			}

			set, err := jwks.NewClient(jwks.Config{Timeout: timeout}, logger).FetchBlocking(endpoint)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d keys\n", endpoint, len(set.Keys))
			for _, key := range set.Keys {
				fmt.Fprintf(out, "%s\t%s\t%s\n", key.Kid, key.Alg, key.Use)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&authority, "authority", "", "issuer base URL (defaults to $AUTHORITY)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "fetch timeout")

	return cmd
}
