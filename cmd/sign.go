package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"crosswallet/config"
	"crosswallet/pkg/wallet"
)

var signCmd = &cobra.Command{
	Use:   "sign <chain> <message...>",
	Short: "Sign a message with a wallet key",
	Long: `Sign an arbitrary message with the configured wallet key for a chain.

EVM chains sign EIP-191 personal messages (verifiable with standard tooling);
Solana signs the raw message bytes and returns a base58 signature.

Examples:
  crosswallet sign eth "I control this address"
  crosswallet sign solana login-challenge-42`,
	Args: cobra.MinimumNArgs(2),
	Run:  runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
}

func runSign(cmd *cobra.Command, args []string) {
	chain := strings.ToLower(args[0])
	message := strings.Join(args[1:], " ")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	walletMgr := wallet.NewManager(cfg.Wallet)
	if !walletMgr.CanSendOnChain(chain) {
		printError(fmt.Errorf("no signing key configured for chain: %s", chain))
		os.Exit(1)
	}

	signature, err := walletMgr.SignMessage(chain, []byte(message))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		out, _ := json.MarshalIndent(map[string]string{
			"chain":     chain,
			"message":   message,
			"signature": signature,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("\n  Message:   %s\n", message)
	fmt.Printf("  Signature: %s\n\n", color.CyanString(signature))
}
