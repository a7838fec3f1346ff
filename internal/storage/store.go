package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"SafeHold/internal/escrow"
	"SafeHold/internal/models"
)

// Store is the GORM-backed persistence for escrow orchestration.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	if err := s.db.WithContext(ctx).First(&tx, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, escrow.NotFound("get transaction", "transaction %d not found", id)
		}
		return nil, err
	}
	return &tx, nil
}

func (s *Store) UpdateTransactionStatus(ctx context.Context, id uint, status models.TransactionStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return escrow.NotFound("update transaction status", "transaction %d not found", id)
	}
	return nil
}

func (s *Store) UpdateTransactionStripeID(ctx context.Context, id uint, providerRef, provider string) error {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stripe_payment_intent_id": providerRef,
			"escrow_provider":          provider,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return escrow.NotFound("link escrow", "transaction %d not found", id)
	}
	return nil
}

func (s *Store) GetDisputesByTransaction(ctx context.Context, transactionID uint) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&disputes).Error
	return disputes, err
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, escrow.NotFound("get user", "user %d not found", id)
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) RecordLedgerEntry(ctx context.Context, entry *models.EscrowLedgerEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) ListLedgerEntries(ctx context.Context, transactionID uint) ([]models.EscrowLedgerEntry, error) {
	var entries []models.EscrowLedgerEntry
	err := s.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}
