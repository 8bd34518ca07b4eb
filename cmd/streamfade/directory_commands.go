package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"streamfade/internal/ipc"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var country string
	var find string

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List or search the watch-provider directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				out := cmd.OutOrStdout()

				if find != "" {
					found, err := client.FindProvider(find)
					if err != nil {
						return err
					}
					provider := found.Provider
					fmt.Fprintf(out, "Provider: %s (id %d)\n", provider.Name, provider.ID)
					fmt.Fprintf(out, "Display priority: %d\n", provider.DisplayPriority)
					fmt.Fprintf(out, "Countries: %s\n", strings.Join(provider.Countries, ", "))
					return nil
				}

				resp, err := client.Providers(ipc.ProvidersRequest{Country: strings.ToUpper(strings.TrimSpace(country))})
				if err != nil {
					return err
				}
				if len(resp.Providers) == 0 {
					fmt.Fprintln(out, "No providers found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Providers))
				for _, provider := range resp.Providers {
					rows = append(rows, []string{
						strconv.FormatInt(provider.ID, 10),
						provider.Name,
						strconv.Itoa(provider.DisplayPriority),
						strconv.Itoa(len(provider.Countries)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Priority", "Countries"}, rows, 0, 2, 3))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&country, "country", "", "Restrict to providers serving this country")
	cmd.Flags().StringVar(&find, "find", "", "Resolve a single provider by name (fuzzy matched)")
	return cmd
}

func newRegionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the watch-provider regions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Regions()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Regions) == 0 {
					fmt.Fprintln(out, "No regions found")
					return nil
				}
				rows := make([][]string, 0, len(resp.Regions))
				for _, region := range resp.Regions {
					rows = append(rows, []string{region.Code, region.Name})
				}
				fmt.Fprintln(out, renderTable([]string{"Code", "Name"}, rows))
				return nil
			})
		},
	}
}
