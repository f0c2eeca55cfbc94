package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:   "crosswallet",
	Short: "A cross-chain wallet CLI built on the NEAR Intents 1Click API",
	Long: `crosswallet is a command-line wallet for cross-chain token swaps. It quotes
and executes swaps through the NEAR Intents 1Click API, sends deposits from
configured EVM and Solana wallets, and follows each swap live from broadcast
to settlement.

Examples:
  crosswallet swap 100 USDC on base to SOL on solana --recipient <solana-addr>
  crosswallet watch <deposit-tx-hash> --deposit-address <addr>
  crosswallet status <deposit-address>
  crosswallet list-tokens
  crosswallet history`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// newLogger builds the CLI logger. Quiet by default so log lines don't fight
// the interactive display; verbose switches to full development output.
func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
