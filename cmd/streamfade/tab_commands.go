package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"streamfade/internal/ipc"
)

func newTabCommand(ctx *commandContext) *cobra.Command {
	tabCmd := &cobra.Command{
		Use:   "tab",
		Short: "Drive a tab's availability run",
	}

	tabCmd.AddCommand(newTabSubmitCommand(ctx))
	tabCmd.AddCommand(newTabCommandsCommand(ctx))
	tabCmd.AddCommand(newTabRetryCommand(ctx))
	tabCmd.AddCommand(newTabCloseCommand(ctx))

	return tabCmd
}

func parseTabID(arg string) (int64, error) {
	tabID, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || tabID <= 0 {
		return 0, fmt.Errorf("invalid tab id %q", arg)
	}
	return tabID, nil
}

func newTabSubmitCommand(ctx *commandContext) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "submit <tab-id>",
		Short: "Submit a crawled film list for a tab",
		Long: "Reads a JSON array of crawl entries ({title, year, positions}) from --file\n" +
			"or stdin and starts an availability run for the tab.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}

			var payload []byte
			if filePath != "" {
				payload, err = os.ReadFile(filePath)
			} else {
				payload, err = readAll(cmd)
			}
			if err != nil {
				return fmt.Errorf("read crawl payload: %w", err)
			}

			var films []ipc.CrawlEntry
			if err := json.Unmarshal(payload, &films); err != nil {
				return fmt.Errorf("decode crawl payload: %w", err)
			}

			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SubmitCrawl(ipc.SubmitCrawlRequest{TabID: tabID, Films: films})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Accepted %d films for tab %d\n", resp.Films, tabID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "JSON file with crawl entries (defaults to stdin)")
	return cmd
}

func newTabCommandsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "commands <tab-id>",
		Short: "Drain the pending collaborator commands for a tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Commands(tabID)
				if err != nil {
					return err
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(resp.Commands)
			})
		},
	}
}

func newTabRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <tab-id>",
		Short: "Fire a tab's deferred retry immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.RetryNow(tabID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Retry triggered for tab %d\n", tabID)
				return nil
			})
		},
	}
}

func newTabCloseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "close <tab-id>",
		Short: "Drop all state for a closed tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tabID, err := parseTabID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.CloseTab(tabID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Closed tab %d\n", tabID)
				return nil
			})
		},
	}
}
