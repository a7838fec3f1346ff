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

const EscrowComProviderName = "escrowcom"

// escrowComStatuses maps native transaction states onto the canonical
// lifecycle. Anything missing is treated as created.
var escrowComStatuses = map[string]escrow.Status{
	"pending_acceptance": escrow.StatusCreated,
	"pending_agreement":  escrow.StatusCreated,
	"awaiting_payment":   escrow.StatusCreated,
	"funded":             escrow.StatusFunded,
	"payment_approved":   escrow.StatusFunded,
	"shipped":            escrow.StatusHeld,
	"received":           escrow.StatusHeld,
	"in_inspection":      escrow.StatusHeld,
	"in_dispute":         escrow.StatusHeld,
	"released":           escrow.StatusReleased,
	"completed":          escrow.StatusReleased,
	"cancelled":          escrow.StatusRefunded,
	"refunded":           escrow.StatusRefunded,
}

// Native states from which the buyer's acceptance releases funds.
var escrowComReleasable = map[string]bool{
	"funded":           true,
	"payment_approved": true,
	"shipped":          true,
	"received":         true,
	"in_inspection":    true,
}

type ecParty struct {
	Role     string `json:"role"`
	Customer string `json:"customer"`
}

type ecSchedule struct {
	Amount              float64 `json:"amount"`
	PayerCustomer       string  `json:"payer_customer"`
	BeneficiaryCustomer string  `json:"beneficiary_customer"`
}

type ecItem struct {
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	Type             string       `json:"type"`
	InspectionPeriod int          `json:"inspection_period"`
	Quantity         int          `json:"quantity"`
	Schedule         []ecSchedule `json:"schedule"`
}

type ecCreateRequest struct {
	Parties     []ecParty `json:"parties"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Items       []ecItem  `json:"items"`
}

type ecTransaction struct {
	ID           int64     `json:"id"`
	Currency     string    `json:"currency"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	CreationDate string    `json:"creation_date"`
	Parties      []ecParty `json:"parties"`
	Items        []struct {
		Schedule []struct {
			Amount float64 `json:"amount"`
		} `json:"schedule"`
	} `json:"items"`
}

func (t *ecTransaction) total() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range t.Items {
		for _, s := range item.Schedule {
			sum = sum.Add(decimal.NewFromFloat(s.Amount))
		}
	}
	return sum
}

// EscrowComProvider opens two-party escrow transactions with the platform
// acting as broker. The buyer's inspection period runs before release.
type EscrowComProvider struct {
	client            *providerClient
	platformEmail     string
	configured        bool
	inspectionSeconds int
	now               func() time.Time
}

func NewEscrowComProvider(cfg config.EscrowComConfig, timeout time.Duration) *EscrowComProvider {
	email, key := cfg.Email, cfg.APIKey
	inspection := cfg.InspectionSeconds
	if inspection <= 0 {
		inspection = 259200
	}
	return &EscrowComProvider{
		client: newProviderClient(EscrowComProviderName, cfg.BaseURL, timeout, func(r *http.Request) {
			r.SetBasicAuth(email, key)
		}),
		platformEmail:     email,
		configured:        email != "" && key != "",
		inspectionSeconds: inspection,
		now:               time.Now,
	}
}

func (p *EscrowComProvider) Name() string { return EscrowComProviderName }

func (p *EscrowComProvider) Capabilities() escrow.Capabilities {
	return escrow.Capabilities{}
}

// OwnsReference matches the provider's numeric transaction ids.
func (p *EscrowComProvider) OwnsReference(ref string) bool {
	if ref == "" {
		return false
	}
	_, err := strconv.ParseUint(ref, 10, 64)
	return err == nil
}

func (p *EscrowComProvider) CreateEscrow(ctx context.Context, req escrow.CreateRequest) (*escrow.Account, error) {
	const op = "create escrow"
	if !p.configured {
		return nil, escrow.ProviderUnavailable(op, p.Name(), "account email or api key not configured")
	}
	if err := p.checkParties(op, req); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Marketplace transaction #%d", req.TransactionID)
	}
	body := ecCreateRequest{
		Parties: []ecParty{
			{Role: "buyer", Customer: req.Buyer.Email},
			{Role: "seller", Customer: req.Seller.Email},
			{Role: "broker", Customer: "me"},
		},
		Currency:    strings.ToLower(req.Currency),
		Description: description,
		Items: []ecItem{{
			Title:            fmt.Sprintf("Transaction #%d", req.TransactionID),
			Description:      description,
			Type:             "general_merchandise",
			InspectionPeriod: p.inspectionSeconds,
			Quantity:         1,
			Schedule: []ecSchedule{{
				Amount:              req.Amount.InexactFloat64(),
				PayerCustomer:       req.Buyer.Email,
				BeneficiaryCustomer: req.Seller.Email,
			}},
		}},
	}

	var created ecTransaction
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodPost,
		endpoint: "/transaction",
		json:     body,
	}, &created); err != nil {
		return nil, err
	}

	account := p.account(&created)
	account.BuyerID = req.Buyer.UserID
	account.SellerID = req.Seller.UserID
	if account.Amount.IsZero() {
		account.Amount = req.Amount
	}
	return account, nil
}

// checkParties enforces that both parties have an email, that they differ,
// and that neither is the platform's own operating account.
func (p *EscrowComProvider) checkParties(op string, req escrow.CreateRequest) error {
	buyer := strings.TrimSpace(req.Buyer.Email)
	seller := strings.TrimSpace(req.Seller.Email)
	switch {
	case buyer == "":
		return escrow.InvalidParty(op, "buyer %d has no email address", req.Buyer.UserID)
	case seller == "":
		return escrow.InvalidParty(op, "seller %d has no email address", req.Seller.UserID)
	case strings.EqualFold(buyer, p.platformEmail) || strings.EqualFold(seller, p.platformEmail):
		return escrow.InvalidParty(op, "platform account cannot be a party to its own escrow")
	case strings.EqualFold(buyer, seller):
		return escrow.InvalidParty(op, "buyer and seller must be different accounts")
	}
	return nil
}

// ConfirmPayment has nothing to trigger here: the buyer funds the
// transaction directly with the provider. It reports the current state.
func (p *EscrowComProvider) ConfirmPayment(ctx context.Context, escrowID, _ string) (*escrow.Account, error) {
	t, err := p.fetch(ctx, "confirm payment", escrowID)
	if err != nil {
		return nil, err
	}
	return p.account(t), nil
}

func (p *EscrowComProvider) ReleaseEscrow(ctx context.Context, escrowID string, amount *decimal.Decimal) (*escrow.Transaction, error) {
	const op = "release escrow"
	t, err := p.fetch(ctx, op, escrowID)
	if err != nil {
		return nil, err
	}
	total := t.total()

	switch {
	case canonicalEscrowComStatus(t.Status) == escrow.StatusReleased:
		return p.ledger(escrowID, escrow.LedgerRelease, total, escrow.LedgerCompleted), nil
	case t.Status == "in_dispute":
		return nil, escrow.InvalidState(op, "escrow %s is in_dispute at the provider", escrowID)
	case !escrowComReleasable[t.Status]:
		return nil, escrow.InvalidState(op, "escrow %s is %s, expected funded or in_inspection", escrowID, t.Status)
	}
	if amount != nil && !total.IsZero() && !amount.Equal(total) {
		return nil, escrow.InvalidState(op, "escrow %s only supports releasing the full %s", escrowID, total)
	}

	var updated ecTransaction
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodPatch,
		endpoint: "/transaction/" + url.PathEscape(escrowID),
		json:     map[string]string{"action": "accept"},
	}, &updated); err != nil {
		return nil, err
	}

	status := escrow.LedgerPending
	if canonicalEscrowComStatus(updated.Status) == escrow.StatusReleased {
		status = escrow.LedgerCompleted
	}
	return p.ledger(escrowID, escrow.LedgerRelease, total, status), nil
}

func (p *EscrowComProvider) RefundEscrow(ctx context.Context, escrowID, reason string) (*escrow.Transaction, error) {
	const op = "refund escrow"
	t, err := p.fetch(ctx, op, escrowID)
	if err != nil {
		return nil, err
	}
	total := t.total()

	switch canonicalEscrowComStatus(t.Status) {
	case escrow.StatusRefunded:
		return p.ledger(escrowID, escrow.LedgerRefund, total, escrow.LedgerCompleted), nil
	case escrow.StatusReleased:
		return nil, escrow.InvalidState(op, "escrow %s is %s; released funds cannot be cancelled", escrowID, t.Status)
	}

	payload := map[string]string{"action": "cancel"}
	if reason != "" {
		payload["cancel_information"] = reason
	}
	var updated ecTransaction
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodPatch,
		endpoint: "/transaction/" + url.PathEscape(escrowID),
		json:     payload,
	}, &updated); err != nil {
		return nil, err
	}

	status := escrow.LedgerPending
	if canonicalEscrowComStatus(updated.Status) == escrow.StatusRefunded {
		status = escrow.LedgerCompleted
	}
	return p.ledger(escrowID, escrow.LedgerRefund, total, status), nil
}

func (p *EscrowComProvider) GetEscrowStatus(ctx context.Context, escrowID string) (*escrow.StatusView, error) {
	t, err := p.fetch(ctx, "escrow status", escrowID)
	if err != nil {
		return nil, err
	}
	canonical := canonicalEscrowComStatus(t.Status)
	total := t.total()
	available := decimal.Zero
	if canonical.Holding() {
		available = total
	}
	return &escrow.StatusView{
		EscrowID:        escrowID,
		ProviderID:      p.Name(),
		Status:          t.Status,
		CanonicalStatus: canonical,
		AvailableAmount: available,
		TotalAmount:     total,
		Transactions:    []escrow.Transaction{},
	}, nil
}

func (p *EscrowComProvider) fetch(ctx context.Context, op, escrowID string) (*ecTransaction, error) {
	if !p.configured {
		return nil, escrow.ProviderUnavailable(op, p.Name(), "account email or api key not configured")
	}
	var t ecTransaction
	if err := p.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodGet,
		endpoint: "/transaction/" + url.PathEscape(escrowID),
	}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *EscrowComProvider) account(t *ecTransaction) *escrow.Account {
	created, err := time.Parse(time.RFC3339, t.CreationDate)
	if err != nil {
		created = p.now()
	}
	return &escrow.Account{
		ID:         strconv.FormatInt(t.ID, 10),
		ProviderID: p.Name(),
		Amount:     t.total(),
		Currency:   strings.ToUpper(t.Currency),
		Status:     canonicalEscrowComStatus(t.Status),
		CreatedAt:  created.UTC(),
	}
}

func (p *EscrowComProvider) ledger(escrowID string, typ escrow.LedgerType, amount decimal.Decimal, status escrow.LedgerStatus) *escrow.Transaction {
	now := p.now().UTC()
	t := &escrow.Transaction{
		ID:        newLedgerID(),
		EscrowID:  escrowID,
		Type:      typ,
		Amount:    amount,
		Status:    status,
		CreatedAt: now,
	}
	if status == escrow.LedgerCompleted {
		t.CompletedAt = &now
	}
	return t
}

func canonicalEscrowComStatus(native string) escrow.Status {
	if s, ok := escrowComStatuses[native]; ok {
		return s
	}
	return escrow.StatusCreated
}
