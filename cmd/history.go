package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crosswallet/config"
	"crosswallet/pkg/history"
	"crosswallet/pkg/monitor"
)

var historyStatusFilter string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List locally recorded swaps",
	Long: `List the swaps recorded by this wallet, newest first.

Examples:
  crosswallet history
  crosswallet history --status completed
  crosswallet history --json`,
	Run: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (pending, confirming, completed, failed, refunded, ...)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.HistoryFile)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var entries []*history.Entry
	if historyStatusFilter != "" {
		entries = store.ListByStatus(strings.ToLower(historyStatusFilter))
	} else {
		entries = store.List()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(entries) == 0 {
		fmt.Println("\nNo swaps recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                 SWAP HISTORY")
	fmt.Println(strings.Repeat("=", 90))

	for _, entry := range entries {
		fmt.Printf("\n  %s  %s\n",
			entry.CreatedAt.Format("2006-01-02 15:04"),
			coloredHistoryStatus(entry.Status))
		fmt.Printf("    %s %s (%s) -> %s (%s)\n",
			entry.AmountIn,
			color.YellowString(entry.FromToken), entry.FromChain,
			color.YellowString(entry.ToToken), entry.ToChain)
		if entry.TxHash != "" {
			fmt.Printf("    Deposit Tx: %s\n", color.HiBlackString(entry.TxHash))
		}
		if entry.OutboundTxHash != "" {
			fmt.Printf("    Output Tx:  %s\n", color.HiBlackString(entry.OutboundTxHash))
		}
	}

	fmt.Printf("\n%s\n\nTotal: %d swaps\n\n", strings.Repeat("=", 90), len(entries))
}

func coloredHistoryStatus(status string) string {
	token := monitor.StatusToken(status)
	switch {
	case token.Succeeded():
		return color.GreenString(status)
	case token == monitor.StatusFailed:
		return color.RedString(status)
	case token == monitor.StatusRefunded:
		return color.MagentaString(status)
	default:
		return color.YellowString(status)
	}
}
