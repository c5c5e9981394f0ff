// Package cmd defines the CLI commands of the crowley executable.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/crowley/internal/app"
	"github.com/JakeFAU/crowley/internal/config"
	"github.com/JakeFAU/crowley/internal/logging"
)

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It is a variable so tests can swap in
// their own wiring.
var newApp = app.New

// newRootCmd creates and configures the root command. The returned cleanup
// closes whatever application the command built, whether or not it failed.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile     string
		appInstance *app.App
	)

	cmd := &cobra.Command{
		Use:   "crowley",
		Short: "A single-domain web crawler with a small HTTP control surface.",
		Long: `crowley crawls every page reachable from a root URL without leaving that
URL's domain, stores the discovered URLs, and reports them back by domain.
Run "crowley serve" for the HTTP API, or use the scrape, count and list
commands directly against the configured store.`,
		SilenceUsage: true,

		// Builds the application once config is known and hands it to the
		// subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err = newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); CROWLEY_* env vars override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newCountCmd())
	cmd.AddCommand(newListCmd())

	cleanup := func() {
		if appInstance == nil {
			return
		}
		if err := appInstance.Close(); err != nil {
			appInstance.Logger.Warn("error closing application services", zap.Error(err))
		}
		logging.Sync(appInstance.Logger)
		appInstance = nil
	}
	return cmd, cleanup
}

// resolveApp fetches the App placed in ctx by the root command.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application not initialized")
	}
	return appInstance, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root, cleanup := newRootCmd()
	defer cleanup()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx) //nolint:wrapcheck // cobra already printed it
}

// Execute is the main entry point.
func Execute() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
