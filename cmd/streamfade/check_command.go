package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"streamfade/internal/availability"
	"streamfade/internal/match"
	"streamfade/internal/services/offers"
	"streamfade/internal/services/tmdb"
)

func readAll(cmd *cobra.Command) ([]byte, error) {
	return io.ReadAll(cmd.InOrStdin())
}

// newCheckCommand runs the availability lookup for a single title without a
// daemon, useful for verifying credentials and catalog reachability.
func newCheckCommand(ctx *commandContext) *cobra.Command {
	var year int
	var country string
	var providerID int64

	cmd := &cobra.Command{
		Use:   "check <title>",
		Short: "Check one film's availability directly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return fmt.Errorf("title required")
			}
			if year <= 0 {
				year = match.YearUnknown
			}
			code := strings.ToUpper(strings.TrimSpace(country))
			if code == "" {
				code = cfg.Filter.CountryCode
			}
			if providerID <= 0 {
				providerID = cfg.Filter.ProviderID
			}

			window := time.Duration(cfg.HTTP.WindowSeconds) * time.Second
			timeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
			searchClient, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
				tmdb.WithRateLimit(cfg.HTTP.RequestsPerWindow, window),
				tmdb.WithTimeout(timeout))
			if err != nil {
				return fmt.Errorf("create metadata client: %w", err)
			}
			offerClient, err := offers.New(cfg.Offers.BaseURL, cfg.Offers.PageSize,
				offers.WithRateLimit(cfg.HTTP.RequestsPerWindow, window),
				offers.WithTimeout(timeout))
			if err != nil {
				return fmt.Errorf("create offer-catalog client: %w", err)
			}

			pipeline := availability.NewPipeline(searchClient, offerClient, nil)
			outcome := pipeline.Check(cmd.Context(), availability.Film{Title: title, Year: year}, code, providerID)

			out := cmd.OutOrStdout()
			yearLabel := "unknown"
			if year != match.YearUnknown {
				yearLabel = strconv.Itoa(year)
			}
			fmt.Fprintf(out, "Title: %s (%s)\n", title, yearLabel)
			fmt.Fprintf(out, "Country: %s, provider id: %d\n", code, providerID)
			switch {
			case outcome.Available:
				fmt.Fprintln(out, "Available: yes")
			case outcome.RateLimited:
				fmt.Fprintln(out, "Available: unknown (catalog rate limited, try again later)")
			default:
				fmt.Fprintln(out, "Available: no")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Release year (omit when unknown)")
	cmd.Flags().StringVar(&country, "country", "", "Two-letter country code (defaults to configured filter)")
	cmd.Flags().Int64Var(&providerID, "provider-id", 0, "Watch-provider id (defaults to configured filter)")
	return cmd
}
