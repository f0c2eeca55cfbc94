package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"crosswallet/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Minimal ERC20 ABI: transfers out, balance reads in.
const erc20ABI = `[
  {"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
  {"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

// EVMWallet exposes the wallet operations crosswallet needs on an
// EVM-compatible chain: address validation, balance reads, EIP-191 message
// signing, and deposit sends. A wallet built without a private key is
// read-only.
type EVMWallet struct {
	networkName string
	network     config.EVMNetwork
	client      *ethclient.Client
	privateKey  *ecdsa.PrivateKey
}

// NewEVMWallet connects to the configured network. The private key is
// optional; signing and sending require it, balance reads do not.
func NewEVMWallet(cfg config.EVMConfig, networkName string) (*EVMWallet, error) {
	network, exists := cfg.Networks[networkName]
	if !exists {
		return nil, fmt.Errorf("network %s not configured", networkName)
	}
	if network.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", networkName)
	}

	client, err := ethclient.Dial(network.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	w := &EVMWallet{
		networkName: networkName,
		network:     network,
		client:      client,
	}

	if network.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		w.privateKey = privateKey
	}

	return w, nil
}

// ValidateAddress reports whether addr is a well-formed EVM address.
func ValidateEVMAddress(addr string) bool {
	return common.IsHexAddress(addr)
}

// Address returns the wallet's own address. Empty for read-only wallets.
func (w *EVMWallet) Address() (string, error) {
	addr, err := w.fromAddress()
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// NativeBalance reads the native token balance of addr in wei.
func (w *EVMWallet) NativeBalance(ctx context.Context, addr string) (*big.Int, error) {
	if !common.IsHexAddress(addr) {
		return nil, fmt.Errorf("invalid address: %s", addr)
	}
	balance, err := w.client.BalanceAt(ctx, common.HexToAddress(addr), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TokenBalance reads holder's ERC20 balance in the token's smallest unit.
func (w *EVMWallet) TokenBalance(ctx context.Context, tokenContract, holder string) (*big.Int, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}
	if !common.IsHexAddress(holder) {
		return nil, fmt.Errorf("invalid holder address: %s", holder)
	}
	return w.erc20Balance(ctx, common.HexToAddress(tokenContract), common.HexToAddress(holder))
}

// SignMessage signs an EIP-191 personal message and returns the signature
// hex-encoded with the legacy recovery id offset applied.
func (w *EVMWallet) SignMessage(message []byte) (string, error) {
	if w.privateKey == nil {
		return "", fmt.Errorf("no private key configured for network %s", w.networkName)
	}

	hash := accounts.TextHash(message)
	signature, err := crypto.Sign(hash, w.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	signature[64] += 27

	return hexutil.Encode(signature), nil
}

// SendDeposit sends a deposit to the specified address.
// For native tokens, address is the recipient.
// For ERC20 tokens, address format is: "recipient|tokenContract".
func (w *EVMWallet) SendDeposit(ctx context.Context, address string, amount string) (string, error) {
	if w.privateKey == nil {
		return "", fmt.Errorf("no private key configured for network %s", w.networkName)
	}

	parts := strings.Split(address, "|")
	recipientAddr := parts[0]
	var tokenContract string
	if len(parts) > 1 {
		tokenContract = parts[1]
	}

	if !common.IsHexAddress(recipientAddr) {
		return "", fmt.Errorf("invalid recipient address: %s", recipientAddr)
	}

	fromAddress, err := w.fromAddress()
	if err != nil {
		return "", err
	}

	nonce, err := w.client.PendingNonceAt(ctx, fromAddress)
	if err != nil {
		return "", fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get gas price: %w", err)
	}

	var tx *types.Transaction
	if tokenContract == "" {
		tx, err = w.sendNativeToken(ctx, fromAddress, recipientAddr, amount, nonce, gasPrice)
	} else {
		tx, err = w.sendERC20Token(ctx, fromAddress, recipientAddr, tokenContract, amount, nonce, gasPrice)
	}
	if err != nil {
		return "", err
	}

	if err := w.client.SendTransaction(ctx, tx); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	return tx.Hash().Hex(), nil
}

func (w *EVMWallet) fromAddress() (common.Address, error) {
	if w.privateKey == nil {
		return common.Address{}, fmt.Errorf("no private key configured for network %s", w.networkName)
	}
	publicKey := w.privateKey.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return common.Address{}, fmt.Errorf("failed to get public key")
	}
	return crypto.PubkeyToAddress(*publicKeyECDSA), nil
}

func (w *EVMWallet) sendNativeToken(ctx context.Context, from common.Address, to string, amount string, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	toAddress := common.HexToAddress(to)

	amountWei, err := parseEtherAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	balance, err := w.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Cmp(amountWei) < 0 {
		return nil, fmt.Errorf("insufficient balance: have %s wei, need %s wei", balance.String(), amountWei.String())
	}

	gasLimit := uint64(21000)
	if w.network.GasLimit != nil {
		gasLimit = *w.network.GasLimit
	}

	tx := types.NewTransaction(nonce, toAddress, amountWei, gasLimit, gasPrice, nil)

	chainID := big.NewInt(w.network.ChainID)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}

func (w *EVMWallet) sendERC20Token(ctx context.Context, from common.Address, to string, tokenContract string, amount string, nonce uint64, gasPrice *big.Int) (*types.Transaction, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}
	toAddress := common.HexToAddress(to)
	tokenAddress := common.HexToAddress(tokenContract)

	// Assumes 18 decimals; tokens with fewer need the amount pre-scaled.
	amountTokens, err := parseEtherAmount(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	balance, err := w.erc20Balance(ctx, tokenAddress, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance.Cmp(amountTokens) < 0 {
		return nil, fmt.Errorf("insufficient token balance: have %s, need %s", balance.String(), amountTokens.String())
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("transfer", toAddress, amountTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}

	gasLimit := uint64(100000)
	if w.network.GasLimit != nil {
		gasLimit = *w.network.GasLimit
	} else {
		estimated, err := w.client.EstimateGas(ctx, ethereum.CallMsg{
			From: from,
			To:   &tokenAddress,
			Data: data,
		})
		if err == nil {
			gasLimit = estimated
		}
	}

	tx := types.NewTransaction(nonce, tokenAddress, big.NewInt(0), gasLimit, gasPrice, data)

	chainID := big.NewInt(w.network.ChainID)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}

func (w *EVMWallet) erc20Balance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}

	data, err := parsedABI.Pack("balanceOf", holder)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := w.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}

	values, err := parsedABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf result: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("empty balanceOf result")
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", values[0])
	}
	return balance, nil
}

// parseEtherAmount converts a decimal amount to wei (18 decimals).
func parseEtherAmount(amount string) (*big.Int, error) {
	amountFloat, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return nil, err
	}
	if amountFloat < 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	wei := new(big.Float).Mul(big.NewFloat(amountFloat), big.NewFloat(1e18))
	result, _ := wei.Int(nil)
	return result, nil
}
