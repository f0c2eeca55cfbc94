package wallet

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"crosswallet/config"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

const lamportsPerSOL = 1e9

// solanaFeeLamports is the typical per-signature fee reserved when
// checking balances before a send.
const solanaFeeLamports = 5000

// SolanaWallet exposes wallet operations on Solana: address validation,
// balance reads, message signing, and deposit sends (native SOL and SPL
// tokens). A wallet built without a private key is read-only.
type SolanaWallet struct {
	config     config.SolanaConfig
	client     *rpc.Client
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	hasKey     bool
}

// NewSolanaWallet connects to the configured RPC endpoint. The private key
// is optional; signing and sending require it.
func NewSolanaWallet(cfg config.SolanaConfig) (*SolanaWallet, error) {
	if cfg.RPCUrl == "" {
		return nil, fmt.Errorf("RPC URL not configured for Solana")
	}

	w := &SolanaWallet{
		config: cfg,
		client: rpc.New(cfg.RPCUrl),
	}

	if cfg.PrivateKey != "" {
		privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		w.privateKey = privateKey
		w.publicKey = privateKey.PublicKey()
		w.hasKey = true
	}

	return w, nil
}

// ValidateSolanaAddress reports whether addr is a well-formed Solana
// public key.
func ValidateSolanaAddress(addr string) bool {
	_, err := solana.PublicKeyFromBase58(addr)
	return err == nil
}

// Address returns the wallet's own address. Errors for read-only wallets.
func (s *SolanaWallet) Address() (string, error) {
	if !s.hasKey {
		return "", fmt.Errorf("no private key configured for Solana")
	}
	return s.publicKey.String(), nil
}

// NativeBalance reads the SOL balance of addr in lamports.
func (s *SolanaWallet) NativeBalance(ctx context.Context, addr string) (uint64, error) {
	pubkey, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %w", err)
	}
	balance, err := s.client.GetBalance(ctx, pubkey, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance.Value, nil
}

// TokenBalance reads holder's balance of the given SPL token mint, in the
// token's smallest unit.
func (s *SolanaWallet) TokenBalance(ctx context.Context, mintAddr, holderAddr string) (uint64, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return 0, fmt.Errorf("invalid token mint address: %w", err)
	}
	holder, err := solana.PublicKeyFromBase58(holderAddr)
	if err != nil {
		return 0, fmt.Errorf("invalid holder address: %w", err)
	}

	tokenAccount, _, err := solana.FindAssociatedTokenAddress(holder, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return s.tokenAccountBalance(ctx, tokenAccount)
}

// SignMessage signs an arbitrary message with the wallet's key and returns
// the base58 signature.
func (s *SolanaWallet) SignMessage(message []byte) (string, error) {
	if !s.hasKey {
		return "", fmt.Errorf("no private key configured for Solana")
	}
	signature, err := s.privateKey.Sign(message)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	return signature.String(), nil
}

// SendDeposit sends a deposit to the specified address.
// For native SOL, address is the recipient.
// For SPL tokens, address format is: "recipient|tokenMint".
func (s *SolanaWallet) SendDeposit(ctx context.Context, address string, amount string) (string, error) {
	if !s.hasKey {
		return "", fmt.Errorf("no private key configured for Solana")
	}

	parts := strings.Split(address, "|")
	recipientAddr := parts[0]
	var tokenMint string
	if len(parts) > 1 {
		tokenMint = parts[1]
	}

	recipient, err := solana.PublicKeyFromBase58(recipientAddr)
	if err != nil {
		return "", fmt.Errorf("invalid recipient address: %w", err)
	}

	var signature solana.Signature
	if tokenMint == "" {
		signature, err = s.sendNativeSOL(ctx, recipient, amount)
	} else {
		signature, err = s.sendSPLToken(ctx, recipient, tokenMint, amount)
	}
	if err != nil {
		return "", err
	}

	return signature.String(), nil
}

func (s *SolanaWallet) sendNativeSOL(ctx context.Context, recipient solana.PublicKey, amount string) (solana.Signature, error) {
	amountFloat, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid amount: %w", err)
	}
	lamports := uint64(amountFloat * lamportsPerSOL)

	balance, err := s.client.GetBalance(ctx, s.publicKey, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get balance: %w", err)
	}

	minRequired := lamports + solanaFeeLamports
	if balance.Value < minRequired {
		return solana.Signature{}, fmt.Errorf("insufficient balance: have %.9f SOL, need %.9f SOL (including fees)",
			float64(balance.Value)/lamportsPerSOL, float64(minRequired)/lamportsPerSOL)
	}

	instruction := system.NewTransferInstruction(
		lamports,
		s.publicKey,
		recipient,
	).Build()

	return s.buildSignAndSend(ctx, []solana.Instruction{instruction})
}

func (s *SolanaWallet) sendSPLToken(ctx context.Context, recipient solana.PublicKey, tokenMintStr string, amount string) (solana.Signature, error) {
	tokenMint, err := solana.PublicKeyFromBase58(tokenMintStr)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid token mint address: %w", err)
	}

	amountFloat, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid amount: %w", err)
	}

	decimals, err := s.mintDecimals(ctx, tokenMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get token decimals: %w", err)
	}

	multiplier := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		multiplier *= 10
	}
	tokenAmount := uint64(amountFloat * float64(multiplier))

	sourceTokenAccount, _, err := solana.FindAssociatedTokenAddress(s.publicKey, tokenMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive source token account: %w", err)
	}

	balance, err := s.tokenAccountBalance(ctx, sourceTokenAccount)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get token balance: %w", err)
	}
	if balance < tokenAmount {
		return solana.Signature{}, fmt.Errorf("insufficient token balance: have %f, need %f",
			float64(balance)/float64(multiplier), float64(tokenAmount)/float64(multiplier))
	}

	destTokenAccount, _, err := solana.FindAssociatedTokenAddress(recipient, tokenMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to derive destination token account: %w", err)
	}

	destExists, err := s.accountExists(ctx, destTokenAccount)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to check destination account: %w", err)
	}

	instructions := []solana.Instruction{}
	if !destExists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			s.publicKey, // payer
			recipient,   // wallet
			tokenMint,   // mint
		).Build())
	}
	instructions = append(instructions, token.NewTransferInstruction(
		tokenAmount,
		sourceTokenAccount,
		destTokenAccount,
		s.publicKey,
		[]solana.PublicKey{},
	).Build())

	return s.buildSignAndSend(ctx, instructions)
}

func (s *SolanaWallet) buildSignAndSend(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.publicKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.config.SkipPreflight,
		PreflightCommitment: s.commitment(),
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (s *SolanaWallet) tokenAccountBalance(ctx context.Context, tokenAccount solana.PublicKey) (uint64, error) {
	accountInfo, err := s.client.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentFinalized)
	if err != nil {
		return 0, fmt.Errorf("failed to get token balance: %w", err)
	}
	amount, err := strconv.ParseUint(accountInfo.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return amount, nil
}

func (s *SolanaWallet) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	accountInfo, err := s.client.GetAccountInfo(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to get mint account info: %w", err)
	}
	if accountInfo.Value == nil {
		return 0, fmt.Errorf("mint account not found")
	}

	// The decimals field sits at byte offset 44 of the mint account data.
	data := accountInfo.Value.Data.GetBinary()
	if len(data) < 45 {
		return 0, fmt.Errorf("invalid mint account data")
	}
	return data[44], nil
}

func (s *SolanaWallet) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	accountInfo, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return accountInfo.Value != nil, nil
}

func (s *SolanaWallet) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.config.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
