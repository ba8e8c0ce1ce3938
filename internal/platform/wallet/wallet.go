// Package wallet talks to the payment collaborators: a Base JSON-RPC node
// for USDC balance reads and receipt checks, and the x402 facilitator for
// payment submission.
package wallet

import (
	"context"
	"errors"
)

// ErrPaymentInvalid marks a definitive verification failure: the
// transaction reverted or carries no matching transfer. Transient RPC
// errors are returned without this sentinel.
var ErrPaymentInvalid = errors.New("payment invalid")

// PaymentOrder describes a single USDC transfer to execute.
type PaymentOrder struct {
	AmountCents int64
	Recipient   string
	Metadata    map[string]string
}

// Receipt is the opaque result of a submitted payment.
type Receipt struct {
	TxHash string
}

// Client is the narrow boundary the purchase flow depends on.
type Client interface {
	// BalanceCents returns the USDC balance of address in USD cents.
	BalanceCents(ctx context.Context, address string) (int64, error)

	// SubmitPayment executes the transfer. Not idempotent: callers must not
	// retry a submission whose outcome is unknown.
	SubmitPayment(ctx context.Context, order PaymentOrder) (*Receipt, error)

	// VerifyPayment checks that txHash is a confirmed USDC transfer of the
	// expected amount to the expected recipient. Returns (false, nil) when
	// the transaction is not yet mined.
	VerifyPayment(ctx context.Context, txHash string, amountCents int64, recipient string) (bool, error)
}
