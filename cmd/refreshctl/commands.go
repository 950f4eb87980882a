package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"nof0-refresh/internal/types"
	refreshpkg "nof0-refresh/pkg/refresh"
)

var (
	triggerAt    string
	callbackErr  string
	showItems    bool
	requestLimit time.Duration
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <timeframe>",
	Short: "Start or resume the cycle of a timeframe",
	Long:  "Asks the orchestrator to refresh one timeframe (4h, 1h, 15m, 5m, 1m) for the current slot or the slot containing --at.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tf, err := refreshpkg.ParseTimeframe(args[0])
		if err != nil {
			return err
		}
		if triggerAt != "" {
			if _, err := time.Parse(time.RFC3339, triggerAt); err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var run types.RunResponse
		req := types.TriggerRequest{Timeframe: tf.String(), At: triggerAt}
		if err := call(ctx, http.MethodPost, "/refresh/trigger", req, &run); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), run)
	},
}

var callbackCmd = &cobra.Command{
	Use:   "callback <run-id> <symbol> <DONE|FAILED|SKIPPED>",
	Short: "Report a terminal outcome for one symbol",
	Long:  "Settles one item of a run as a fetch worker would. Useful when a worker died without reporting.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		status, err := refreshpkg.ParseTerminalStatus(args[2])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var resp types.CallbackResponse
		req := types.CallbackRequest{RunID: runID, Symbol: args[1], Status: string(status), Error: callbackErr}
		if err := call(ctx, http.MethodPost, "/refresh/callback", req, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its counters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", args[0], err)
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var run types.RunResponse
		req := types.RunRequest{ID: runID, Items: showItems}
		if err := call(ctx, http.MethodGet, "/refresh/runs/:id", req, &run); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), run)
	},
}

var universeCmd = &cobra.Command{
	Use:   "universe <provider> <symbol>...",
	Short: "Replace the listed symbols of a provider",
	Long:  "Lists every given symbol for the provider and delists the rest. The base-stage universe cache is dropped afterwards.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols := refreshpkg.NormalizeSymbols(args[1:])
		if len(symbols) == 0 {
			return fmt.Errorf("no valid symbols given")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var resp types.UniverseResponse
		req := types.UniverseRequest{Provider: args[0], Symbols: symbols}
		if err := call(ctx, http.MethodPost, "/refresh/universe", req, &resp); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	triggerCmd.Flags().StringVar(&triggerAt, "at", "", "Pick the slot containing this RFC3339 instant instead of now")
	callbackCmd.Flags().StringVarP(&callbackErr, "error", "e", "", "Error message recorded with FAILED or SKIPPED")
	showCmd.Flags().BoolVar(&showItems, "items", false, "Include per-symbol items")
	rootCmd.PersistentFlags().DurationVar(&requestLimit, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(triggerCmd, callbackCmd, showCmd, universeCmd)
}
