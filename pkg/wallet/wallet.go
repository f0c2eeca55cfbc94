package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"crosswallet/config"
)

// Wallet is the chain-agnostic surface the CLI works against.
type Wallet interface {
	Address() (string, error)
	SignMessage(message []byte) (string, error)
	SendDeposit(ctx context.Context, address string, amount string) (string, error)
}

// Manager routes wallet operations to the right chain backend.
type Manager struct {
	config config.WalletConfig
}

// NewManager creates a wallet manager from configuration.
func NewManager(cfg config.WalletConfig) *Manager {
	return &Manager{config: cfg}
}

// evmNetworkFor maps a chain alias to a configured EVM network name.
// Returns "" when the chain is not EVM or not configured.
func (m *Manager) evmNetworkFor(chain string) string {
	chain = strings.ToLower(chain)

	aliases := map[string]string{
		"eth":      "ethereum",
		"ethereum": "ethereum",
		"arb":      "arbitrum",
		"arbitrum": "arbitrum",
		"base":     "base",
		"bsc":      "bsc",
		"bnb":      "bsc",
		"pol":      "polygon",
		"polygon":  "polygon",
		"matic":    "polygon",
	}
	name, ok := aliases[chain]
	if !ok {
		// Fall back to a direct network name match so new networks work
		// without touching the alias table.
		name = chain
	}
	if _, exists := m.config.EVM.Networks[name]; !exists {
		return ""
	}
	return name
}

func isSolanaChain(chain string) bool {
	chain = strings.ToLower(chain)
	return chain == "sol" || chain == "solana"
}

// ValidateAddress checks addr against the chain's address format.
func (m *Manager) ValidateAddress(chain, addr string) error {
	if isSolanaChain(chain) {
		if !ValidateSolanaAddress(addr) {
			return fmt.Errorf("invalid Solana address: %s", addr)
		}
		return nil
	}
	if !ValidateEVMAddress(addr) {
		return fmt.Errorf("invalid address for chain %s: %s", chain, addr)
	}
	return nil
}

// WalletFor builds the wallet backend for the given chain.
func (m *Manager) WalletFor(chain string) (Wallet, error) {
	if isSolanaChain(chain) {
		return NewSolanaWallet(m.config.Solana)
	}
	network := m.evmNetworkFor(chain)
	if network == "" {
		return nil, fmt.Errorf("no wallet configured for chain: %s", chain)
	}
	return NewEVMWallet(m.config.EVM, network)
}

// IsConfiguredForChain reports whether a wallet backend exists for the chain.
func (m *Manager) IsConfiguredForChain(chain string) bool {
	if isSolanaChain(chain) {
		return m.config.Solana.RPCUrl != ""
	}
	return m.evmNetworkFor(chain) != ""
}

// CanSendOnChain reports whether the chain has a spending key configured.
func (m *Manager) CanSendOnChain(chain string) bool {
	if isSolanaChain(chain) {
		return m.config.Solana.RPCUrl != "" && m.config.Solana.PrivateKey != ""
	}
	network := m.evmNetworkFor(chain)
	if network == "" {
		return false
	}
	return m.config.EVM.Networks[network].PrivateKey != ""
}

// SendDeposit sends a deposit on the given chain and returns the tx hash.
func (m *Manager) SendDeposit(ctx context.Context, chain, address, amount string) (string, error) {
	if !m.CanSendOnChain(chain) {
		return "", fmt.Errorf("no spending key configured for chain: %s", chain)
	}
	w, err := m.WalletFor(chain)
	if err != nil {
		return "", err
	}
	return w.SendDeposit(ctx, address, amount)
}

// SignMessage signs a message with the chain's wallet key.
func (m *Manager) SignMessage(chain string, message []byte) (string, error) {
	w, err := m.WalletFor(chain)
	if err != nil {
		return "", err
	}
	return w.SignMessage(message)
}

// FormattedBalance reads addr's native balance on the chain and formats it
// in whole-coin units.
func (m *Manager) FormattedBalance(ctx context.Context, chain, addr string) (string, error) {
	if isSolanaChain(chain) {
		w, err := NewSolanaWallet(m.config.Solana)
		if err != nil {
			return "", err
		}
		lamports, err := w.NativeBalance(ctx, addr)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%.9f SOL", float64(lamports)/lamportsPerSOL), nil
	}

	network := m.evmNetworkFor(chain)
	if network == "" {
		return "", fmt.Errorf("no wallet configured for chain: %s", chain)
	}
	w, err := NewEVMWallet(m.config.EVM, network)
	if err != nil {
		return "", err
	}
	wei, err := w.NativeBalance(ctx, addr)
	if err != nil {
		return "", err
	}
	ether := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18))
	return fmt.Sprintf("%s ETH", ether.Text('f', 6)), nil
}

// SupportedChains lists the chains with a configured backend, sorted.
func (m *Manager) SupportedChains() []string {
	chains := make([]string, 0, len(m.config.EVM.Networks)+1)
	for name := range m.config.EVM.Networks {
		chains = append(chains, name)
	}
	if m.config.Solana.RPCUrl != "" {
		chains = append(chains, "solana")
	}
	sort.Strings(chains)
	return chains
}
