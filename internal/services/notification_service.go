package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"SafeHold/internal/escrow"
	"SafeHold/internal/models"
)

// Mailer sends a single email.
type Mailer interface {
	Send(to, subject, htmlBody string) (string, error)
}

// NotificationService records in-app notifications and emails the affected
// party. It consumes escrow lifecycle events as an escrow.Publisher.
type NotificationService struct {
	db     *gorm.DB
	mailer Mailer
	log    *slog.Logger
}

func NewNotificationService(db *gorm.DB, mailer Mailer, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{db: db, mailer: mailer, log: logger}
}

type notice struct {
	userID  uint
	kind    models.NotificationType
	title   string
	message string
}

// noticesFor decides who hears about an event and what they are told.
func noticesFor(evt escrow.Event) []notice {
	amount := fmt.Sprintf("%s %s", evt.Currency, evt.Amount.StringFixed(2))
	switch evt.Type {
	case escrow.EventCreated:
		return []notice{{
			userID:  evt.SellerID,
			kind:    models.NotificationEscrowCreated,
			title:   "Escrow Opened",
			message: fmt.Sprintf("An escrow of %s has been opened for transaction #%d.", amount, evt.TransactionID),
		}}
	case escrow.EventFunded:
		return []notice{{
			userID:  evt.SellerID,
			kind:    models.NotificationEscrowFunded,
			title:   "Escrow Funded",
			message: fmt.Sprintf("The buyer has funded %s for transaction #%d. You can now deliver.", amount, evt.TransactionID),
		}}
	case escrow.EventReleased:
		return []notice{
			{
				userID:  evt.SellerID,
				kind:    models.NotificationEscrowReleased,
				title:   "Funds Released",
				message: fmt.Sprintf("%s has been released to you for transaction #%d.", amount, evt.TransactionID),
			},
			{
				userID:  evt.BuyerID,
				kind:    models.NotificationEscrowReleased,
				title:   "Escrow Completed",
				message: fmt.Sprintf("You released %s to the seller for transaction #%d.", amount, evt.TransactionID),
			},
		}
	case escrow.EventRefunded:
		message := fmt.Sprintf("%s has been refunded for transaction #%d.", amount, evt.TransactionID)
		if evt.Reason != "" {
			message += " Reason: " + evt.Reason
		}
		return []notice{
			{userID: evt.BuyerID, kind: models.NotificationEscrowRefunded, title: "Escrow Refunded", message: message},
			{userID: evt.SellerID, kind: models.NotificationEscrowRefunded, title: "Escrow Refunded", message: message},
		}
	}
	return nil
}

// Publish implements escrow.Publisher.
func (s *NotificationService) Publish(ctx context.Context, evt escrow.Event) error {
	var errs []error
	for _, n := range noticesFor(evt) {
		if err := s.CreateNotification(ctx, n.userID, n.kind, n.title, n.message, map[string]interface{}{
			"transaction_id": evt.TransactionID,
			"escrow_id":      evt.EscrowID,
			"provider":       evt.ProviderID,
			"amount":         evt.Amount.String(),
			"currency":       evt.Currency,
		}); err != nil {
			errs = append(errs, err)
			continue
		}
		s.email(ctx, n)
	}
	return errors.Join(errs...)
}

// CreateNotification creates a new notification
func (s *NotificationService) CreateNotification(ctx context.Context, userID uint, notifType models.NotificationType, title, message string, data map[string]interface{}) error {
	dataJSON := "{}"
	if data != nil {
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		dataJSON = string(jsonBytes)
	}

	notification := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (s *NotificationService) email(ctx context.Context, n notice) {
	if s.mailer == nil {
		return
	}
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&user, n.userID).Error; err != nil {
		s.log.WarnContext(ctx, "notification email skipped", "user_id", n.userID, "error", err)
		return
	}
	if _, err := s.mailer.Send(user.Email, "SafeHold - "+n.title, escrowEmailHTML(n.title, n.message)); err != nil {
		s.log.WarnContext(ctx, "notification email failed", "user_id", n.userID, "error", err)
	}
}

// ListForUser returns the newest notifications first.
func (s *NotificationService) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": &now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return escrow.NotFound("mark notification read", "notification %d not found", notificationID)
	}
	return nil
}
