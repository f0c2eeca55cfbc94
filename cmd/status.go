package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crosswallet/config"
	"crosswallet/pkg/client"
	"crosswallet/pkg/monitor"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <deposit-address>",
	Short: "Check the status of a swap",
	Long: `Check the execution status of a cross-chain swap by its deposit address.
The upstream status is shown alongside the wallet's normalized view of it,
using the same vocabulary as the live 'watch' screen.

For a live view with progress and countdown, use 'crosswallet watch' instead.

Examples:
  crosswallet status 0x1234...abcd
  crosswallet status 0x1234...abcd --watch
  crosswallet status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	depositAddress := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	apiClient := client.NewOneClickClient(cfg.JWTToken)

	if !watchStatus {
		checkSwapStatus(apiClient, depositAddress, jsonOutput)
		return
	}

	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	checkAndDisplayStatus(apiClient, depositAddress)
	for range ticker.C {
		checkAndDisplayStatus(apiClient, depositAddress)
	}
}

func checkSwapStatus(apiClient *client.OneClickClient, depositAddress string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking swap status..."
		s.Start()
	}

	status, err := apiClient.GetSwapStatus(depositAddress)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, depositAddress)
	}
}

func checkAndDisplayStatus(apiClient *client.OneClickClient, depositAddress string) {
	status, err := apiClient.GetSwapStatus(depositAddress)
	if err != nil {
		color.Red("Error: %v", err)
		return
	}

	displayStatus(status, depositAddress)
}

// displayStatus renders the one-shot view in the same normalized vocabulary
// the live watch screen uses: the upstream token is mapped through
// pkg/client and classified into a stage rather than echoed raw.
func displayStatus(status *oneclick.GetExecutionStatusResponse, depositAddress string) {
	update := client.NormalizeExecutionStatus(status)

	token := monitor.StatusPending
	if update.Status != nil {
		token = *update.Status
	}
	stage := monitor.NewClassifier(monitor.NopAnomalyRecorder{}).Classify("", token, 0, 0)

	upstream := ""
	outboundTx := ""
	if update.RouterData != nil {
		upstream = update.RouterData.RouterStatus
		outboundTx = update.RouterData.OutboundTxHash
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s  (upstream: %s)\n", coloredStatusToken(token), color.HiBlackString(upstream))
	fmt.Printf("  Stage:           %d/3 %s\n", int(stage), stageLabel(stage))
	fmt.Printf("  Last Updated:    %s\n", status.GetUpdatedAt().Format("2006-01-02 15:04:05"))

	details := status.GetSwapDetails()
	for _, tx := range details.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}
	if outboundTx != "" {
		fmt.Printf("  Output Tx:       %s\n", color.HiBlackString(outboundTx))
	}

	if details.HasAmountInFormatted() {
		fmt.Printf("  Amount In:       %s\n", details.GetAmountInFormatted())
	}
	if details.HasAmountOutFormatted() {
		fmt.Printf("  Amount Out:      %s\n", details.GetAmountOutFormatted())
	}

	if update.Error != nil {
		color.Red("\n  %s", update.Error.Error())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
