package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crosswallet/config"
	"crosswallet/pkg/wallet"
)

var receiveAddress string

var receiveCmd = &cobra.Command{
	Use:   "receive <chain>",
	Short: "Show a receiving address and its balance",
	Long: `Show the configured wallet address for a chain, validated against the
chain's address format, together with its current native balance.

Use --address to inspect a different address instead of the configured wallet.

Examples:
  crosswallet receive eth
  crosswallet receive solana
  crosswallet receive base --address 0x1234...abcd`,
	Args: cobra.ExactArgs(1),
	Run:  runReceive,
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().StringVar(&receiveAddress, "address", "", "Inspect this address instead of the configured wallet")
}

func runReceive(cmd *cobra.Command, args []string) {
	chain := strings.ToLower(args[0])
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	walletMgr := wallet.NewManager(cfg.Wallet)
	if !walletMgr.IsConfiguredForChain(chain) {
		printError(fmt.Errorf("no wallet configured for chain: %s (configured: %s)",
			chain, strings.Join(walletMgr.SupportedChains(), ", ")))
		os.Exit(1)
	}

	addr := receiveAddress
	if addr == "" {
		w, err := walletMgr.WalletFor(chain)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		addr, err = w.Address()
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if err := walletMgr.ValidateAddress(chain, addr); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balance..."
		s.Start()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	balance, err := walletMgr.FormattedBalance(ctx, chain, addr)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]string{
			"chain":   chain,
			"address": addr,
			"balance": balance,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                  RECEIVING ADDRESS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("\n  Chain:   %s\n", chain)
	fmt.Printf("  Address: %s\n", color.CyanString(addr))
	fmt.Printf("  Balance: %s\n", color.YellowString(balance))
	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
