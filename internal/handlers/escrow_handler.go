package handlers

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"SafeHold/internal/escrow"
)

// EscrowService is the orchestrator contract exposed over HTTP.
type EscrowService interface {
	CreateEscrowTransaction(ctx context.Context, transactionID uint, preference string) (*escrow.Account, error)
	ConfirmPaymentIntent(ctx context.Context, transactionID uint, paymentMethodID string) (*escrow.Account, error)
	ReleaseEscrowFunds(ctx context.Context, transactionID uint, amount *decimal.Decimal) (*escrow.Transaction, error)
	RefundEscrowFunds(ctx context.Context, transactionID uint, reason string) (*escrow.Transaction, error)
	GetEscrowStatus(ctx context.Context, transactionID uint) (*escrow.StatusView, error)
	IsEscrowRecommended(ctx context.Context, transactionID uint) (*escrow.Recommendation, error)
	Parties(ctx context.Context, transactionID uint) (buyerID, sellerID uint, err error)
}

type partyRole int

const (
	anyParty partyRole = iota
	buyerOnly
)

type CreateEscrowRequest struct {
	Provider string `json:"provider" validate:"omitempty,max=50"`
}

type ConfirmPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"omitempty,max=255"`
}

type ReleaseFundsRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type RefundFundsRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type EscrowHandler struct {
	svc      EscrowService
	validate *validator.Validate
}

func NewEscrowHandler(svc EscrowService) *EscrowHandler {
	return &EscrowHandler{svc: svc, validate: validator.New()}
}

// CreateEscrow opens an escrow for a transaction
func (h *EscrowHandler) CreateEscrow(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, anyParty); err != nil {
		return err
	}
	req := new(CreateEscrowRequest)
	if err := h.parse(c, req, false); err != nil {
		return err
	}

	account, err := h.svc.CreateEscrowTransaction(c.UserContext(), id, req.Provider)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Escrow created successfully",
		"escrow":  account,
	})
}

// ConfirmPayment confirms the buyer's payment into the hold
func (h *EscrowHandler) ConfirmPayment(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, buyerOnly); err != nil {
		return err
	}
	req := new(ConfirmPaymentRequest)
	if err := h.parse(c, req, false); err != nil {
		return err
	}

	account, err := h.svc.ConfirmPaymentIntent(c.UserContext(), id, req.PaymentMethodID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"escrow": account})
}

// ReleaseFunds pays the seller once release checks pass
func (h *EscrowHandler) ReleaseFunds(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, buyerOnly); err != nil {
		return err
	}
	req := new(ReleaseFundsRequest)
	if err := h.parse(c, req, false); err != nil {
		return err
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "amount must be greater than zero")
	}

	result, err := h.svc.ReleaseEscrowFunds(c.UserContext(), id, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Escrow release processed",
		"transaction": result,
	})
}

// RefundFunds returns escrowed funds to the buyer
func (h *EscrowHandler) RefundFunds(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, anyParty); err != nil {
		return err
	}
	req := new(RefundFundsRequest)
	if err := h.parse(c, req, true); err != nil {
		return err
	}

	result, err := h.svc.RefundEscrowFunds(c.UserContext(), id, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":     "Escrow refund processed",
		"transaction": result,
	})
}

// GetStatus reports the provider's current view of the escrow
func (h *EscrowHandler) GetStatus(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, anyParty); err != nil {
		return err
	}
	view, err := h.svc.GetEscrowStatus(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": view})
}

// GetRecommendation advises whether escrow should be used
func (h *EscrowHandler) GetRecommendation(c *fiber.Ctx) error {
	id, err := transactionID(c)
	if err != nil {
		return err
	}
	if err := h.authorize(c, id, anyParty); err != nil {
		return err
	}
	rec, err := h.svc.IsEscrowRecommended(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rec)
}

// authorize checks the caller is a party to the transaction, and the buyer
// where role requires it.
func (h *EscrowHandler) authorize(c *fiber.Ctx, id uint, role partyRole) error {
	userID, ok := c.Locals("user_id").(uint)
	if !ok || userID == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
	}
	buyerID, sellerID, err := h.svc.Parties(c.UserContext(), id)
	if err != nil {
		return err
	}
	switch {
	case userID == buyerID:
		return nil
	case userID == sellerID && role == anyParty:
		return nil
	case userID == sellerID:
		return fiber.NewError(fiber.StatusForbidden, "Only the buyer can perform this action")
	default:
		return fiber.NewError(fiber.StatusForbidden, "You are not a party to this transaction")
	}
}

// parse decodes and validates an optional JSON body.
func (h *EscrowHandler) parse(c *fiber.Ctx, out interface{}, required bool) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	} else if required {
		return fiber.NewError(fiber.StatusBadRequest, "Request body is required")
	}
	if err := h.validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func transactionID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid transaction id")
	}
	return uint(id), nil
}

// ErrorHandler renders errors that escape a handler as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return respondError(c, err)
}

var statusByKind = map[escrow.Kind]int{
	escrow.KindNotFound:            fiber.StatusNotFound,
	escrow.KindInvalidParty:        fiber.StatusUnprocessableEntity,
	escrow.KindInvalidState:        fiber.StatusConflict,
	escrow.KindNotEligible:         fiber.StatusPreconditionFailed,
	escrow.KindProviderUnavailable: fiber.StatusServiceUnavailable,
	escrow.KindUpstream:            fiber.StatusBadGateway,
	escrow.KindConflict:            fiber.StatusConflict,
}

func respondError(c *fiber.Ctx, err error) error {
	var e *escrow.Error
	if !errors.As(err, &e) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":      "Internal server error",
			"retry_safe": false,
		})
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(fiber.Map{
		"error":      e.Error(),
		"code":       e.Kind,
		"retry_safe": escrow.RetrySafe(err),
	})
}
