package models

import (
	"time"

	"gorm.io/gorm"
)

type DisputeStatus string
type DisputeReason string

const (
	DisputeOpen          DisputeStatus = "open"
	DisputeInvestigating DisputeStatus = "investigating"
	DisputeResolved      DisputeStatus = "resolved"
	DisputeClosed        DisputeStatus = "closed"
)

const (
	ReasonNotReceived    DisputeReason = "item_not_received"
	ReasonNotAsDescribed DisputeReason = "item_significantly_not_as_described"
	ReasonDamaged        DisputeReason = "item_arrived_damaged"
	ReasonIncorrectItem  DisputeReason = "incorrect_item_received"
	ReasonOther          DisputeReason = "other"
)

type Dispute struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	TransactionID uint           `gorm:"not null;index" json:"transaction_id"`
	RaisedBy      uint           `gorm:"not null;index" json:"raised_by"`
	Reason        DisputeReason  `gorm:"type:varchar(50);not null" json:"reason"`
	Description   string         `gorm:"type:text" json:"description,omitempty"`
	Status        DisputeStatus  `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Resolution    string         `gorm:"type:text" json:"resolution,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Dispute) TableName() string {
	return "disputes"
}

// Pending reports whether the dispute still blocks a release.
func (d Dispute) Pending() bool {
	return d.Status == DisputeOpen || d.Status == DisputeInvestigating
}
