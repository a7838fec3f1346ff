package escrow

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the canonical, provider-independent escrow lifecycle state.
type Status string

const (
	StatusCreated  Status = "created"
	StatusFunded   Status = "funded"
	StatusHeld     Status = "held"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
)

// Holding reports whether funds are secured and waiting for release.
func (s Status) Holding() bool {
	return s == StatusFunded || s == StatusHeld
}

type LedgerType string

const (
	LedgerRelease        LedgerType = "release"
	LedgerRefund         LedgerType = "refund"
	LedgerPartialRelease LedgerType = "partial_release"
)

type LedgerStatus string

const (
	LedgerPending   LedgerStatus = "pending"
	LedgerCompleted LedgerStatus = "completed"
	LedgerFailed    LedgerStatus = "failed"
)

// Account is the funds held for one transaction at one provider.
type Account struct {
	ID         string          `json:"id"`
	ProviderID string          `json:"provider_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Status     Status          `json:"status"`
	BuyerID    uint            `json:"buyer_id"`
	SellerID   uint            `json:"seller_id"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
}

// Transaction is a single release or refund entry against an Account. It is
// never updated once returned.
type Transaction struct {
	ID          string          `json:"id"`
	EscrowID    string          `json:"escrow_id"`
	Type        LedgerType      `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Status      LedgerStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// StatusView is a point-in-time projection of a provider escrow. Status is
// the provider-native string.
type StatusView struct {
	EscrowID        string          `json:"escrow_id"`
	ProviderID      string          `json:"provider_id"`
	Status          string          `json:"status"`
	CanonicalStatus Status          `json:"canonical_status"`
	AvailableAmount decimal.Decimal `json:"available_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Transactions    []Transaction   `json:"transactions"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return 0
	}
}

// Elevated reports whether the level is high or critical.
func (r RiskLevel) Elevated() bool {
	return r.rank() >= RiskHigh.rank()
}

// AtLeast reports whether r is at or above other.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

// RiskScore is what the risk engine reports for a transaction.
type RiskScore struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Score     float64   `json:"score"`
	Factors   []string  `json:"factors,omitempty"`
}

// TrustScore is what the trust engine reports for a user.
type TrustScore struct {
	UserID uint    `json:"userId"`
	Score  float64 `json:"score"`
	Level  string  `json:"level,omitempty"`
}

type Recommendation struct {
	Recommended bool      `json:"recommended"`
	Reason      string    `json:"reason"`
	RiskLevel   RiskLevel `json:"risk_level"`
}
