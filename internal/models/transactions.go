package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionActive    TransactionStatus = "active"
	TransactionEscrow    TransactionStatus = "escrow"
	TransactionCompleted TransactionStatus = "completed"
	TransactionRefunded  TransactionStatus = "refunded"
	TransactionDisputed  TransactionStatus = "disputed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Transaction is a marketplace deal between a buyer and a seller. It is the
// record of which escrow, if any, holds its funds.
type Transaction struct {
	ID          uint              `gorm:"primarykey" json:"id"`
	BuyerID     uint              `gorm:"not null;index" json:"buyer_id"`
	SellerID    uint              `gorm:"not null;index" json:"seller_id"`
	Amount      decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency    string            `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	Status      TransactionStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// StripePaymentIntentID holds whichever provider's native reference backs
	// the escrow; the column name predates multi-provider support.
	StripePaymentIntentID string `gorm:"column:stripe_payment_intent_id;type:varchar(255);index" json:"stripe_payment_intent_id,omitempty"`
	EscrowProvider        string `gorm:"type:varchar(50)" json:"escrow_provider,omitempty"`

	BufferEndTime *time.Time     `json:"buffer_end_time,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Buyer  User `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	Seller User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// HasEscrow reports whether a provider reference has been linked.
func (t *Transaction) HasEscrow() bool {
	return t.StripePaymentIntentID != ""
}
