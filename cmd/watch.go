package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crosswallet/config"
	"crosswallet/pkg/client"
	"crosswallet/pkg/history"
	"crosswallet/pkg/monitor"
)

var watchDepositAddress string

var watchCmd = &cobra.Command{
	Use:   "watch <deposit-tx-hash>",
	Short: "Follow a swap live from broadcast to settlement",
	Long: `Follow an in-flight swap live. The view combines push events, periodic
polling, and a local countdown into a single monotonic picture of progress:
current status, stage, confirmations, and estimated time remaining.

Press Enter at any time to force a refresh. Press Ctrl+C to stop watching;
the swap itself keeps going.

Examples:
  crosswallet watch 0xdeadbeef... --deposit-address 0x1234...abcd`,
	Args: cobra.ExactArgs(1),
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchDepositAddress, "deposit-address", "", "Deposit address of the swap (REQUIRED)")
	_ = watchCmd.MarkFlagRequired("deposit-address")
}

func runWatch(cmd *cobra.Command, args []string) {
	txHash := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	logger := newLogger(verbose)
	defer func() { _ = logger.Sync() }()

	if err := runMonitor(cfg, logger, txHash, watchDepositAddress, jsonOutput); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// runMonitor drives the live swap view until the swap settles or the user
// interrupts. Shared by `watch` and the post-deposit phase of `swap`.
func runMonitor(cfg *config.Config, logger *zap.Logger, txHash, depositAddress string, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiClient := client.NewOneClickClient(cfg.JWTToken)
	source := client.NewSwapStatusSource(apiClient, depositAddress)

	var stream monitor.EventStream
	if cfg.EventsURL != "" {
		events := client.NewSwapEventStream(cfg.EventsURL, logger)
		events.Start(ctx)
		defer events.Close()
		stream = events
	}

	store, err := history.NewStore(cfg.HistoryFile)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		store = nil
	}

	view := newSwapView(txHash, jsonOutput)
	done := make(chan struct{})
	var doneOnce sync.Once

	handlers := monitor.Handlers{
		OnUpdate: func(rec monitor.SwapRecord) {
			view.Render(rec)
			if store != nil && view.StatusChanged() {
				if err := store.UpdateFromRecord(&rec); err != nil {
					logger.Warn("failed to update history", zap.Error(err))
				}
			}
			if rec.Status.Terminal() {
				doneOnce.Do(func() { close(done) })
			}
		},
		OnComplete: func() {
			view.Celebrate()
		},
		OnError: func(e monitor.SwapError) {
			view.ShowError(e)
		},
	}

	sched, err := monitor.NewScheduler(txHash, source, stream, monitor.NewCompletionGate(), logger, handlers)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Printf("\nWatching swap %s\n", color.CyanString(txHash))
		fmt.Println("Press Enter to refresh, Ctrl+C to stop.")
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	// Manual refresh: every line on stdin forces a coalesced re-check.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			sched.ForceRefresh()
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	sched.Stop()

	if rec, ok := sched.Record(); ok {
		view.Final(rec)
	}
	return nil
}

// swapView renders SwapRecord snapshots to the terminal. Status changes get
// a full block; timing ticks rewrite a single line in place.
type swapView struct {
	mu            sync.Mutex
	txHash        string
	jsonOutput    bool
	lastStatus    monitor.StatusToken
	lastStage     monitor.Stage
	statusChanged bool
}

func newSwapView(txHash string, jsonOutput bool) *swapView {
	return &swapView{txHash: txHash, jsonOutput: jsonOutput}
}

func (v *swapView) Render(rec monitor.SwapRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := rec.Status != v.lastStatus || rec.Stage != v.lastStage
	v.statusChanged = changed
	v.lastStatus = rec.Status
	v.lastStage = rec.Stage

	if v.jsonOutput {
		if changed {
			data, _ := json.Marshal(rec)
			fmt.Println(string(data))
		}
		return
	}

	if changed {
		fmt.Printf("\n\n  Status:  %s\n", coloredStatusToken(rec.Status))
		fmt.Printf("  Stage:   %d/3 %s\n", int(rec.Stage), stageLabel(rec.Stage))
		if rec.RequiredConfirmations > 0 {
			fmt.Printf("  Deposit: %d/%d confirmations (%d%%)\n",
				rec.Confirmations, rec.RequiredConfirmations,
				monitor.ConfirmationPercentage(rec.Confirmations, rec.RequiredConfirmations))
		}
		if rec.OutboundRequiredConfirmations > 0 {
			fmt.Printf("  Output:  %d/%d confirmations (%d%%)\n",
				rec.OutboundConfirmations, rec.OutboundRequiredConfirmations,
				monitor.ConfirmationPercentage(rec.OutboundConfirmations, rec.OutboundRequiredConfirmations))
		}
		if rec.RouterData.OutboundTxHash != "" {
			fmt.Printf("  Out Tx:  %s\n", color.HiBlackString(rec.RouterData.OutboundTxHash))
		}
		fmt.Println()
	}

	v.renderTickLine(rec)
}

func (v *swapView) renderTickLine(rec monitor.SwapRecord) {
	if rec.Status.Terminal() {
		return
	}

	elapsed := monitor.FormatDuration(rec.Timing.ElapsedSeconds)
	pct := monitor.Percentage(rec.Timing.ElapsedSeconds, rec.Timing.StageExpectedSeconds)
	line := fmt.Sprintf("  %s elapsed · ~%s remaining (%d%%) · %s",
		elapsed, rec.Timing.RemainingFormatted, pct, rec.Timing.ReassuranceMessage)

	// Pad to clear leftovers from a longer previous line.
	fmt.Printf("\r%-100s", line)
}

// StatusChanged reports whether the most recent Render saw a status or
// stage transition.
func (v *swapView) StatusChanged() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusChanged
}

func (v *swapView) Celebrate() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jsonOutput {
		return
	}
	fmt.Println()
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                   SWAP COMPLETED 🎉")
	fmt.Println(strings.Repeat("=", 60))
}

func (v *swapView) ShowError(e monitor.SwapError) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jsonOutput {
		return
	}
	fmt.Println()
	color.Red("\n  %s", e.Error())
	if e.Actionable {
		color.Yellow("  Action may be required. Check your refund address.")
	}
}

func (v *swapView) Final(rec monitor.SwapRecord) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.jsonOutput {
		data, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("\n\n  Final status: %s\n", coloredStatusToken(rec.Status))
	if rec.RouterData.OutboundTxHash != "" {
		fmt.Printf("  Output tx:    %s\n", color.CyanString(rec.RouterData.OutboundTxHash))
	}
	fmt.Printf("  Elapsed:      %s", monitor.FormatDuration(rec.Timing.ElapsedSeconds))
	if rec.Status.Succeeded() && rec.Timing.StageExpectedSeconds > 0 {
		ratio := rec.Timing.ElapsedSeconds / rec.Timing.StageExpectedSeconds
		fmt.Printf(" (%s)", performanceNote(monitor.LabelPerformance(ratio)))
	}
	fmt.Println()
	fmt.Println()
}

func performanceNote(label monitor.PerformanceLabel) string {
	switch label {
	case monitor.PerformanceAhead:
		return "faster than expected"
	case monitor.PerformanceOnTrack:
		return "on track"
	case monitor.PerformanceSlightlyDelayed:
		return "slightly slower than expected"
	default:
		return "slower than expected"
	}
}

func stageLabel(stage monitor.Stage) string {
	switch stage {
	case monitor.StageInput:
		return "confirming your deposit"
	case monitor.StageProcessing:
		return "swapping across chains"
	case monitor.StageOutput:
		return "delivering to destination"
	default:
		return "starting"
	}
}

func coloredStatusToken(status monitor.StatusToken) string {
	s := string(status)
	switch {
	case status.Succeeded():
		return color.GreenString(s)
	case status == monitor.StatusFailed:
		return color.RedString(s)
	case status == monitor.StatusRefunded:
		return color.MagentaString(s)
	default:
		return color.YellowString(s)
	}
}
