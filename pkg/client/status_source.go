package client

import (
	"context"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"crosswallet/pkg/monitor"
)

// SwapStatusSource adapts the 1Click execution-status API to the monitor's
// pull channel. The monitor keys everything by the deposit transaction
// hash; 1Click looks swaps up by deposit address, so the source carries
// both sides of that mapping.
type SwapStatusSource struct {
	client         *OneClickClient
	depositAddress string
}

// NewSwapStatusSource binds a status source to one swap's deposit address.
func NewSwapStatusSource(client *OneClickClient, depositAddress string) *SwapStatusSource {
	return &SwapStatusSource{
		client:         client,
		depositAddress: depositAddress,
	}
}

// InitialStatus pulls the current execution status and maps it to a partial
// swap update.
func (s *SwapStatusSource) InitialStatus(_ context.Context, txHash string) (monitor.StatusUpdate, error) {
	resp, err := s.client.GetSwapStatus(s.depositAddress)
	if err != nil {
		return monitor.StatusUpdate{}, err
	}
	return mapExecutionStatus(txHash, resp), nil
}

// RequestRecheck re-submits the deposit transaction hash, which nudges the
// upstream to re-query the swap before our next pull.
func (s *SwapStatusSource) RequestRecheck(_ context.Context, txHash string) error {
	return s.client.SubmitDepositTx(s.depositAddress, txHash)
}

// NormalizeExecutionStatus maps a raw execution-status response onto the
// monitor's status vocabulary. The one-shot status display renders through
// this same mapping as the live view's pull channel, so the two cannot
// drift apart.
func NormalizeExecutionStatus(resp *oneclick.GetExecutionStatusResponse) monitor.StatusUpdate {
	return mapExecutionStatus("", resp)
}

func mapExecutionStatus(txHash string, resp *oneclick.GetExecutionStatusResponse) monitor.StatusUpdate {
	details := resp.GetSwapDetails()

	outboundTxHash := ""
	destTxs := details.GetDestinationChainTxHashes()
	if len(destTxs) > 0 {
		outboundTxHash = destTxs[0].GetHash()
	}

	return mapStatus(txHash, resp.GetStatus(), outboundTxHash)
}

// mapStatus translates a raw upstream status token plus the observed
// destination transaction hash into the monitor's vocabulary. The raw token
// always rides along as router data so nothing upstream reports is lost.
func mapStatus(txHash, rawStatus, outboundTxHash string) monitor.StatusUpdate {
	raw := strings.ToUpper(strings.TrimSpace(rawStatus))

	var token monitor.StatusToken
	switch raw {
	case "PENDING_DEPOSIT", "INCOMPLETE_DEPOSIT":
		token = monitor.StatusPending
	case "KNOWN_DEPOSIT_TX":
		token = monitor.StatusConfirming
	case "PROCESSING":
		if outboundTxHash != "" {
			token = monitor.StatusOutputDetected
		} else {
			token = monitor.StatusConfirming
		}
	case "SUCCESS", "COMPLETED":
		token = monitor.StatusCompleted
	case "FAILED":
		token = monitor.StatusFailed
	case "REFUNDED":
		token = monitor.StatusRefunded
	default:
		// Passed through as-is; the monitor records an anomaly and keeps
		// rendering rather than stalling on a token it has never seen.
		token = monitor.StatusToken(strings.ToLower(raw))
	}

	u := monitor.StatusUpdate{
		TxHash: txHash,
		Status: &token,
		RouterData: &monitor.RouterData{
			OutboundTxHash: outboundTxHash,
			RouterStatus:   raw,
		},
	}

	switch token {
	case monitor.StatusFailed:
		u.Error = &monitor.SwapError{
			Kind:        "swap_failed",
			Severity:    "error",
			UserMessage: "The swap failed. Your deposit will be refunded to the refund address.",
			Actionable:  false,
			Raw:         raw,
		}
	case monitor.StatusRefunded:
		u.Error = &monitor.SwapError{
			Kind:        "refund_triggered",
			Severity:    "warning",
			UserMessage: "The swap was refunded to your refund address.",
			Actionable:  false,
			Raw:         raw,
		}
	}

	return u
}
