package escrow

import (
	"context"

	"github.com/shopspring/decimal"
)

// Party is one side of an escrow as seen by a provider.
type Party struct {
	UserID uint
	Email  string
	Name   string
}

// CreateRequest carries everything a provider needs to open a hold. The
// orchestrator resolves parties from storage so adapters never read it.
type CreateRequest struct {
	TransactionID uint
	Amount        decimal.Decimal
	Currency      string
	Buyer         Party
	Seller        Party
	Description   string
	// AttemptID is unique per create call. Providers that deduplicate
	// requests scope their idempotency keys to it.
	AttemptID string
}

// Capabilities describes optional provider behaviour.
type Capabilities struct {
	// History means GetEscrowStatus returns the provider's own release and
	// refund history.
	History bool
	// PartialRelease means ReleaseEscrow accepts an amount below the total.
	PartialRelease bool
	// ExplicitConfirmation means ConfirmPayment must run before ReleaseEscrow.
	ExplicitConfirmation bool
}

// Provider translates canonical escrow calls into one external backend.
// Implementations never touch storage and return only *Error failures.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	// OwnsReference reports whether ref looks like one of this provider's
	// native ids.
	OwnsReference(ref string) bool

	CreateEscrow(ctx context.Context, req CreateRequest) (*Account, error)
	ConfirmPayment(ctx context.Context, escrowID, paymentMethodID string) (*Account, error)
	// ReleaseEscrow captures funds. A nil amount releases everything held.
	ReleaseEscrow(ctx context.Context, escrowID string, amount *decimal.Decimal) (*Transaction, error)
	RefundEscrow(ctx context.Context, escrowID, reason string) (*Transaction, error)
	GetEscrowStatus(ctx context.Context, escrowID string) (*StatusView, error)
}
