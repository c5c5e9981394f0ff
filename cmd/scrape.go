package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <url>",
		Short: "Crawls the domain of a root URL and stores what it finds",
		Long: `Crawls every page reachable from <url> within its domain and stores the
discovered URLs. A domain is only ever crawled once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Service.Scrape(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("scrape %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}
