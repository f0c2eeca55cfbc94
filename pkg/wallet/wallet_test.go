package wallet

import (
	"math/big"
	"testing"

	"crosswallet/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEVMAddress(t *testing.T) {
	assert.True(t, ValidateEVMAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
	assert.True(t, ValidateEVMAddress("0x0000000000000000000000000000000000000000"))
	assert.False(t, ValidateEVMAddress(""))
	assert.False(t, ValidateEVMAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA7"))
	assert.False(t, ValidateEVMAddress("8ba1f109551bD432803012645Ac136ddd64DBA72ZZ"))
	assert.False(t, ValidateEVMAddress("not-an-address"))
}

func TestValidateSolanaAddress(t *testing.T) {
	assert.True(t, ValidateSolanaAddress("11111111111111111111111111111111"))
	assert.True(t, ValidateSolanaAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"))
	assert.False(t, ValidateSolanaAddress(""))
	assert.False(t, ValidateSolanaAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
	assert.False(t, ValidateSolanaAddress("Il0"))
}

func TestParseEtherAmount(t *testing.T) {
	tests := []struct {
		amount  string
		want    string
		wantErr bool
	}{
		{amount: "1", want: "1000000000000000000"},
		{amount: "0.5", want: "500000000000000000"},
		{amount: "0", want: "0"},
		{amount: "-1", wantErr: true},
		{amount: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := parseEtherAmount(tt.amount)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			want, ok := new(big.Int).SetString(tt.want, 10)
			require.True(t, ok)
			assert.Equal(t, 0, got.Cmp(want))
		})
	}
}

func testWalletConfig() config.WalletConfig {
	return config.WalletConfig{
		EVM: config.EVMConfig{
			Networks: map[string]config.EVMNetwork{
				"ethereum": {RPCUrl: "http://localhost:8545", ChainID: 1, PrivateKey: "ab"},
				"base":     {RPCUrl: "http://localhost:8546", ChainID: 8453},
			},
		},
		Solana: config.SolanaConfig{RPCUrl: "http://localhost:8899"},
	}
}

func TestManagerChainRouting(t *testing.T) {
	m := NewManager(testWalletConfig())

	assert.True(t, m.IsConfiguredForChain("eth"))
	assert.True(t, m.IsConfiguredForChain("ethereum"))
	assert.True(t, m.IsConfiguredForChain("base"))
	assert.True(t, m.IsConfiguredForChain("sol"))
	assert.True(t, m.IsConfiguredForChain("solana"))
	assert.False(t, m.IsConfiguredForChain("arbitrum"))
	assert.False(t, m.IsConfiguredForChain("near"))

	// Direct network name fallback keeps new networks usable.
	assert.Equal(t, "base", m.evmNetworkFor("base"))
	assert.Equal(t, "", m.evmNetworkFor("avalanche"))
}

func TestManagerCanSendOnChain(t *testing.T) {
	m := NewManager(testWalletConfig())

	assert.True(t, m.CanSendOnChain("eth"))
	assert.False(t, m.CanSendOnChain("base"))   // no private key
	assert.False(t, m.CanSendOnChain("solana")) // no private key
	assert.False(t, m.CanSendOnChain("near"))
}

func TestManagerSupportedChains(t *testing.T) {
	m := NewManager(testWalletConfig())
	assert.Equal(t, []string{"base", "ethereum", "solana"}, m.SupportedChains())
}

func TestManagerValidateAddress(t *testing.T) {
	m := NewManager(testWalletConfig())

	assert.NoError(t, m.ValidateAddress("eth", "0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
	assert.Error(t, m.ValidateAddress("eth", "11111111111111111111111111111111"))
	assert.NoError(t, m.ValidateAddress("solana", "11111111111111111111111111111111"))
	assert.Error(t, m.ValidateAddress("solana", "0x8ba1f109551bD432803012645Ac136ddd64DBA72"))
}
