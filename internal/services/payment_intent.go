package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"SafeHold/internal/config"
	"SafeHold/internal/escrow"
)

const PaymentIntentProviderName = "stripe"

// Native payment intent states.
const (
	piRequiresPaymentMethod = "requires_payment_method"
	piRequiresConfirmation  = "requires_confirmation"
	piRequiresAction        = "requires_action"
	piProcessing            = "processing"
	piRequiresCapture       = "requires_capture"
	piSucceeded             = "succeeded"
	piCanceled              = "canceled"
)

// Currencies whose smallest unit is the whole unit.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

type paymentIntent struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	AmountCapturable int64             `json:"amount_capturable"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Created          int64             `json:"created"`
	Metadata         map[string]string `json:"metadata"`
}

type refundObject struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
	Created int64  `json:"created"`
}

// PaymentIntentProvider holds funds with manual-capture payment intents:
// confirmation authorizes the card, capture releases to the platform.
type PaymentIntentProvider struct {
	client     *providerClient
	configured bool
	now        func() time.Time
}

func NewPaymentIntentProvider(cfg config.StripeConfig, timeout time.Duration) *PaymentIntentProvider {
	secret := cfg.SecretKey
	return &PaymentIntentProvider{
		client: newProviderClient(PaymentIntentProviderName, cfg.BaseURL, timeout, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+secret)
		}),
		configured: secret != "",
		now:        time.Now,
	}
}

func (p *PaymentIntentProvider) Name() string { return PaymentIntentProviderName }

func (p *PaymentIntentProvider) Capabilities() escrow.Capabilities {
	return escrow.Capabilities{PartialRelease: true, ExplicitConfirmation: true}
}

func (p *PaymentIntentProvider) OwnsReference(ref string) bool {
	return strings.HasPrefix(ref, "pi_")
}

func (p *PaymentIntentProvider) CreateEscrow(ctx context.Context, req escrow.CreateRequest) (*escrow.Account, error) {
	const op = "create escrow"
	if !p.configured {
		return nil, escrow.ProviderUnavailable(op, p.Name(), "secret key not configured")
	}
	currency := strings.ToLower(req.Currency)
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toMinorUnits(req.Amount, currency), 10))
	form.Set("currency", currency)
	form.Set("capture_method", "manual")
	form.Set("metadata[transaction_id]", strconv.FormatUint(uint64(req.TransactionID), 10))
	form.Set("metadata[buyer_id]", strconv.FormatUint(uint64(req.Buyer.UserID), 10))
	form.Set("metadata[seller_id]", strconv.FormatUint(uint64(req.Seller.UserID), 10))
	if req.Description != "" {
		form.Set("description", req.Description)
	}
	if req.Buyer.Email != "" {
		form.Set("receipt_email", req.Buyer.Email)
	}

	var pi paymentIntent
	err := p.client.makeRequest(ctx, request{
		op:          op,
		method:      http.MethodPost,
		endpoint:    "/v1/payment_intents",
		form:        form,
		idempotency: createIdempotencyKey(req),
	}, &pi)
	if err != nil {
		return nil, err
	}
	account := p.account(&pi)
	account.BuyerID = req.Buyer.UserID
	account.SellerID = req.Seller.UserID
	return account, nil
}

// ConfirmPayment is a no-op for intents that are already authorized.
func (p *PaymentIntentProvider) ConfirmPayment(ctx context.Context, escrowID, paymentMethodID string) (*escrow.Account, error) {
	const op = "confirm payment"
	pi, err := p.fetch(ctx, op, escrowID)
	if err != nil {
		return nil, err
	}
	switch pi.Status {
	case piRequiresCapture, piSucceeded, piProcessing:
		return p.account(pi), nil
	case piCanceled:
		return nil, escrow.InvalidState(op, "payment intent %s is canceled", escrowID)
	}
	if pi.Status == piRequiresPaymentMethod && paymentMethodID == "" {
		return nil, escrow.InvalidState(op, "payment intent %s needs a payment method before confirmation", escrowID)
	}

	form := url.Values{}
	if paymentMethodID != "" {
		form.Set("payment_method", paymentMethodID)
	}
	var confirmed paymentIntent
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodPost,
		endpoint: "/v1/payment_intents/" + url.PathEscape(escrowID) + "/confirm",
		form:     form,
	}, &confirmed); err != nil {
		return nil, err
	}
	return p.account(&confirmed), nil
}

func (p *PaymentIntentProvider) ReleaseEscrow(ctx context.Context, escrowID string, amount *decimal.Decimal) (*escrow.Transaction, error) {
	const op = "release escrow"
	pi, err := p.fetch(ctx, op, escrowID)
	if err != nil {
		return nil, err
	}

	switch pi.Status {
	case piSucceeded:
		// Already captured; report it without a second capture.
		return p.ledger(escrowID, escrow.LedgerRelease, pi.AmountReceived, pi.Currency, escrow.LedgerCompleted), nil
	case piRequiresPaymentMethod, piRequiresConfirmation:
		return nil, escrow.InvalidState(op, "payment intent %s is %s; confirm payment before release (expected %s)", escrowID, pi.Status, piRequiresCapture)
	case piRequiresCapture:
	default:
		return nil, escrow.InvalidState(op, "payment intent %s is %s, expected %s", escrowID, pi.Status, piRequiresCapture)
	}

	form := url.Values{}
	ledgerType := escrow.LedgerRelease
	if amount != nil {
		minor := toMinorUnits(*amount, pi.Currency)
		if minor > pi.AmountCapturable {
			return nil, escrow.InvalidState(op, "release of %s exceeds capturable amount on %s", amount, escrowID)
		}
		if minor < pi.AmountCapturable {
			ledgerType = escrow.LedgerPartialRelease
		}
		form.Set("amount_to_capture", strconv.FormatInt(minor, 10))
	}

	var captured paymentIntent
	if err := p.client.makeRequest(ctx, request{
		op:          op,
		method:      http.MethodPost,
		endpoint:    "/v1/payment_intents/" + url.PathEscape(escrowID) + "/capture",
		form:        form,
		idempotency: "escrow-release-" + escrowID,
	}, &captured); err != nil {
		return nil, err
	}

	status := escrow.LedgerPending
	if captured.Status == piSucceeded {
		status = escrow.LedgerCompleted
	}
	return p.ledger(escrowID, ledgerType, captured.AmountReceived, captured.Currency, status), nil
}

// RefundEscrow cancels an uncaptured intent, or refunds a captured one.
func (p *PaymentIntentProvider) RefundEscrow(ctx context.Context, escrowID, reason string) (*escrow.Transaction, error) {
	const op = "refund escrow"
	pi, err := p.fetch(ctx, op, escrowID)
	if err != nil {
		return nil, err
	}

	switch pi.Status {
	case piCanceled:
		return p.ledger(escrowID, escrow.LedgerRefund, pi.Amount, pi.Currency, escrow.LedgerCompleted), nil
	case piProcessing:
		return nil, escrow.InvalidState(op, "payment intent %s is processing; retry once it settles", escrowID)
	case piSucceeded:
		form := url.Values{}
		form.Set("payment_intent", escrowID)
		if reason != "" {
			form.Set("metadata[reason]", reason)
		}
		var refund refundObject
		if err := p.client.makeRequest(ctx, request{
			op:          op,
			method:      http.MethodPost,
			endpoint:    "/v1/refunds",
			form:        form,
			idempotency: "escrow-refund-" + escrowID,
		}, &refund); err != nil {
			return nil, err
		}
		status := escrow.LedgerPending
		switch refund.Status {
		case "succeeded":
			status = escrow.LedgerCompleted
		case "failed", "canceled":
			status = escrow.LedgerFailed
		}
		return p.ledger(escrowID, escrow.LedgerRefund, refund.Amount, pi.Currency, status), nil
	}

	form := url.Values{}
	form.Set("cancellation_reason", "requested_by_customer")
	var canceled paymentIntent
	if err := p.client.makeRequest(ctx, request{
		op:          op,
		method:      http.MethodPost,
		endpoint:    "/v1/payment_intents/" + url.PathEscape(escrowID) + "/cancel",
		form:        form,
		idempotency: "escrow-cancel-" + escrowID,
	}, &canceled); err != nil {
		return nil, err
	}
	status := escrow.LedgerPending
	if canceled.Status == piCanceled {
		status = escrow.LedgerCompleted
	}
	return p.ledger(escrowID, escrow.LedgerRefund, canceled.Amount, canceled.Currency, status), nil
}

func (p *PaymentIntentProvider) GetEscrowStatus(ctx context.Context, escrowID string) (*escrow.StatusView, error) {
	pi, err := p.fetch(ctx, "escrow status", escrowID)
	if err != nil {
		return nil, err
	}
	return &escrow.StatusView{
		EscrowID:        pi.ID,
		ProviderID:      p.Name(),
		Status:          pi.Status,
		CanonicalStatus: canonicalPaymentIntentStatus(pi.Status),
		AvailableAmount: fromMinorUnits(pi.AmountCapturable, pi.Currency),
		TotalAmount:     fromMinorUnits(pi.Amount, pi.Currency),
		Transactions:    []escrow.Transaction{},
	}, nil
}

func (p *PaymentIntentProvider) fetch(ctx context.Context, op, escrowID string) (*paymentIntent, error) {
	if !p.configured {
		return nil, escrow.ProviderUnavailable(op, p.Name(), "secret key not configured")
	}
	var pi paymentIntent
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodGet,
		endpoint: "/v1/payment_intents/" + url.PathEscape(escrowID),
	}, &pi); err != nil {
		return nil, err
	}
	return &pi, nil
}

func (p *PaymentIntentProvider) account(pi *paymentIntent) *escrow.Account {
	created := p.now()
	if pi.Created > 0 {
		created = time.Unix(pi.Created, 0)
	}
	account := &escrow.Account{
		ID:         pi.ID,
		ProviderID: p.Name(),
		Amount:     fromMinorUnits(pi.Amount, pi.Currency),
		Currency:   strings.ToUpper(pi.Currency),
		Status:     canonicalPaymentIntentStatus(pi.Status),
		CreatedAt:  created.UTC(),
	}
	if id, err := strconv.ParseUint(pi.Metadata["buyer_id"], 10, 64); err == nil {
		account.BuyerID = uint(id)
	}
	if id, err := strconv.ParseUint(pi.Metadata["seller_id"], 10, 64); err == nil {
		account.SellerID = uint(id)
	}
	return account
}

func (p *PaymentIntentProvider) ledger(escrowID string, typ escrow.LedgerType, minor int64, currency string, status escrow.LedgerStatus) *escrow.Transaction {
	now := p.now().UTC()
	t := &escrow.Transaction{
		ID:        newLedgerID(),
		EscrowID:  escrowID,
		Type:      typ,
		Amount:    fromMinorUnits(minor, currency),
		Status:    status,
		CreatedAt: now,
	}
	if status == escrow.LedgerCompleted {
		t.CompletedAt = &now
	}
	return t
}

func canonicalPaymentIntentStatus(native string) escrow.Status {
	switch native {
	case piProcessing:
		return escrow.StatusFunded
	case piRequiresCapture:
		return escrow.StatusHeld
	case piSucceeded:
		return escrow.StatusReleased
	case piCanceled:
		return escrow.StatusRefunded
	default:
		return escrow.StatusCreated
	}
}

func toMinorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(minor int64, currency string) decimal.Decimal {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}

// createIdempotencyKey dedupes retries of one create attempt without
// replaying an older intent for the same transaction.
func createIdempotencyKey(req escrow.CreateRequest) string {
	if req.AttemptID == "" {
		return fmt.Sprintf("escrow-create-%d", req.TransactionID)
	}
	return fmt.Sprintf("escrow-create-%d-%s", req.TransactionID, req.AttemptID)
}
