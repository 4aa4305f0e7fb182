// Package main is the recipegen command line: it serves the HTTP API and
// generates recipes from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/container"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var (
	cfgFile  string
	envFiles []string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", userMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "recipegen",
		Short:         "Generate recipes from the ingredients you have",
		Long:          "Streams recipes from a chat model, extracts them into structured form and serves them over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(envFiles...)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default: .env)")

	rootCmd.AddCommand(
		serveCmd(),
		generateCmd(),
		optionsCmd(),
	)

	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.NopLogger,
				fx.Supply(container.Options{ConfigPath: cfgFile}),
				container.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := app.Start(ctx); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}

			<-ctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer stopCancel()

			if err := app.Stop(stopCtx); err != nil {
				return fmt.Errorf("failed to stop gracefully: %w", err)
			}
			return nil
		},
	}
}
