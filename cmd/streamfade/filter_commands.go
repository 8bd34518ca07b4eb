package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"streamfade/internal/ipc"
)

func newFilterCommand(ctx *commandContext) *cobra.Command {
	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Inspect or change the provider filter",
	}

	filterCmd.AddCommand(newFilterShowCommand(ctx))
	filterCmd.AddCommand(newFilterSetCommand(ctx))
	filterCmd.AddCommand(newFilterEnableCommand(ctx, true))
	filterCmd.AddCommand(newFilterEnableCommand(ctx, false))

	return filterCmd
}

func newFilterShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective filter selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				filter, err := client.GetFilter()
				if err != nil {
					return err
				}
				printFilter(cmd, filter)
				return nil
			})
		},
	}
}

func newFilterSetCommand(ctx *commandContext) *cobra.Command {
	var country string
	var providerID int64
	var providerName string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Select the country and streaming provider to filter by",
		RunE: func(cmd *cobra.Command, args []string) error {
			if providerID <= 0 && providerName == "" {
				return fmt.Errorf("either --provider-id or --provider is required")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.GetFilter()
				if err != nil {
					return err
				}

				id := providerID
				if id <= 0 {
					found, err := client.FindProvider(providerName)
					if err != nil {
						return err
					}
					id = found.Provider.ID
					fmt.Fprintf(cmd.OutOrStdout(), "Matched provider %q (id %d)\n", found.Provider.Name, id)
				}

				code := strings.ToUpper(strings.TrimSpace(country))
				if code == "" {
					code = current.CountryCode
				}

				updated, err := client.SetFilter(ipc.SetFilterRequest{
					CountryCode: code,
					ProviderID:  id,
					Enabled:     current.Enabled,
				})
				if err != nil {
					return err
				}
				printFilter(cmd, updated)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "Two-letter country code")
	cmd.Flags().Int64Var(&providerID, "provider-id", 0, "Watch-provider id")
	cmd.Flags().StringVar(&providerName, "provider", "", "Provider name (fuzzy matched)")
	return cmd
}

func newFilterEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable"
	short := "Enable availability filtering"
	if !enable {
		use = "disable"
		short = "Disable availability filtering"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				current, err := client.GetFilter()
				if err != nil {
					return err
				}
				updated, err := client.SetFilter(ipc.SetFilterRequest{
					CountryCode: current.CountryCode,
					ProviderID:  current.ProviderID,
					Enabled:     enable,
				})
				if err != nil {
					return err
				}
				printFilter(cmd, updated)
				return nil
			})
		},
	}
}

func printFilter(cmd *cobra.Command, filter *ipc.FilterResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Country: %s\n", filter.CountryCode)
	fmt.Fprintf(out, "Provider id: %d\n", filter.ProviderID)
	fmt.Fprintf(out, "Enabled: %s\n", yesNo(filter.Enabled))
}
