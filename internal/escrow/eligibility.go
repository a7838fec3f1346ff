package escrow

import (
	"context"
	"time"

	"SafeHold/internal/models"
)

// DisputeLoader returns every dispute raised against a transaction.
type DisputeLoader func(ctx context.Context, transactionID uint) ([]models.Dispute, error)

// CheckReleaseEligibility runs the release gates in order: transaction
// status, pending disputes, buffer period. The first failure is returned and
// later gates are not evaluated.
func CheckReleaseEligibility(ctx context.Context, tx *models.Transaction, loadDisputes DisputeLoader, now time.Time) error {
	const op = "release eligibility"

	if tx.Status != models.TransactionEscrow && tx.Status != models.TransactionActive {
		return NotEligible(op, "transaction not eligible for release (status %s)", tx.Status)
	}

	disputes, err := loadDisputes(ctx, tx.ID)
	if err != nil {
		return err
	}
	for _, d := range disputes {
		if d.Pending() {
			return NotEligible(op, "cannot release funds with pending disputes")
		}
	}

	if tx.BufferEndTime != nil && tx.BufferEndTime.After(now) {
		return NotEligible(op, "cannot release funds during buffer period (ends %s)", tx.BufferEndTime.UTC().Format(time.RFC3339))
	}
	return nil
}
