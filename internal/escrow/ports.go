package escrow

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"SafeHold/internal/models"
)

// Store is the persistence the orchestrator needs. It is the only writer of
// a transaction's escrow fields.
type Store interface {
	GetTransaction(ctx context.Context, id uint) (*models.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, id uint, status models.TransactionStatus) error
	// UpdateTransactionStripeID links a provider reference, and the provider
	// that issued it, to the transaction.
	UpdateTransactionStripeID(ctx context.Context, id uint, providerRef, provider string) error
	GetDisputesByTransaction(ctx context.Context, transactionID uint) ([]models.Dispute, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	RecordLedgerEntry(ctx context.Context, entry *models.EscrowLedgerEntry) error
	ListLedgerEntries(ctx context.Context, transactionID uint) ([]models.EscrowLedgerEntry, error)
}

// RiskEngine is the external trust and risk scoring service.
type RiskEngine interface {
	CalculateUserTrustScore(ctx context.Context, userID uint) (*TrustScore, error)
	CalculateTransactionRiskScore(ctx context.Context, transactionID uint) (*RiskScore, error)
}

type EventType string

const (
	EventCreated  EventType = "escrow.created"
	EventFunded   EventType = "escrow.funded"
	EventReleased EventType = "escrow.released"
	EventRefunded EventType = "escrow.refunded"
)

// Event describes a completed escrow state change.
type Event struct {
	Type          EventType       `json:"type"`
	TransactionID uint            `json:"transaction_id"`
	ProviderID    string          `json:"provider_id"`
	EscrowID      string          `json:"escrow_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	BuyerID       uint            `json:"buyer_id"`
	SellerID      uint            `json:"seller_id"`
	Reason        string          `json:"reason,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
