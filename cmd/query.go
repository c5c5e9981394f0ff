package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <url>",
		Short: "Prints how many URLs are stored for a URL's domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			n, err := appInstance.Service.Count(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("count %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list <url>",
		Short: "Prints the URLs stored for a URL's domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			links, err := appInstance.Service.List(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list %s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				if err := json.NewEncoder(out).Encode(links); err != nil {
					return fmt.Errorf("encode links: %w", err)
				}
				return nil
			}
			for _, link := range links {
				fmt.Fprintln(out, link)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print a JSON array instead of one URL per line")
	return cmd
}
