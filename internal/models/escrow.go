package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EscrowLedgerEntry is an immutable record of one release or refund call
// against a provider escrow.
type EscrowLedgerEntry struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TransactionID uint            `gorm:"not null;index" json:"transaction_id"`
	EscrowID      string          `gorm:"type:varchar(255);not null;index" json:"escrow_id"`
	Provider      string          `gorm:"type:varchar(50);not null" json:"provider"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status        string          `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

func (EscrowLedgerEntry) TableName() string {
	return "escrow_ledger_entries"
}
