package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"streamfade/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and per-tab run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				state := "stopped"
				if status.Running {
					state = "running"
				}
				if shouldColorize(out) {
					color := text.FgRed
					if status.Running {
						color = text.FgGreen
					}
					state = color.Sprint(state)
				}
				fmt.Fprintf(out, "Daemon: %s (pid %d)\n", state, status.PID)
				fmt.Fprintf(out, "State database: %s\n", status.StateDBPath)
				fmt.Fprintf(out, "Lock file: %s\n", status.LockPath)

				if len(status.Tabs) == 0 {
					fmt.Fprintln(out, "No active tabs")
					return nil
				}

				rows := make([][]string, 0, len(status.Tabs))
				for _, tab := range status.Tabs {
					rows = append(rows, []string{
						strconv.FormatInt(tab.TabID, 10),
						tab.SessionID,
						fmt.Sprintf("%d/%d", tab.Resolved, tab.Total),
						yesNo(tab.Running),
						strconv.Itoa(tab.Available),
						strconv.Itoa(tab.PendingRetry),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Tab", "Session", "Resolved", "Running", "Available", "Pending Retry"},
					rows, 0, 2, 4, 5))
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("daemon refused to stop")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				return nil
			})
		},
	}
}
