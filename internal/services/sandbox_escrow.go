package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SafeHold/internal/escrow"
)

const SandboxProviderName = "sandbox"

type sandboxEscrow struct {
	account  escrow.Account
	released decimal.Decimal
	history  []escrow.Transaction
}

func (e *sandboxEscrow) remaining() decimal.Decimal {
	return e.account.Amount.Sub(e.released)
}

// SandboxProvider keeps escrows in memory and never calls out. It is meant
// for local development and demos.
type SandboxProvider struct {
	mu      sync.Mutex
	escrows map[string]*sandboxEscrow
	now     func() time.Time
}

func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{escrows: make(map[string]*sandboxEscrow), now: time.Now}
}

func (p *SandboxProvider) Name() string { return SandboxProviderName }

func (p *SandboxProvider) Capabilities() escrow.Capabilities {
	return escrow.Capabilities{History: true, PartialRelease: true, ExplicitConfirmation: true}
}

func (p *SandboxProvider) OwnsReference(ref string) bool {
	return strings.HasPrefix(ref, "sbx_")
}

func (p *SandboxProvider) CreateEscrow(_ context.Context, req escrow.CreateRequest) (*escrow.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct := escrow.Account{
		ID:         "sbx_" + uuid.NewString(),
		ProviderID: p.Name(),
		Amount:     req.Amount,
		Currency:   strings.ToUpper(req.Currency),
		Status:     escrow.StatusCreated,
		BuyerID:    req.Buyer.UserID,
		SellerID:   req.Seller.UserID,
		CreatedAt:  p.now().UTC(),
	}
	p.escrows[acct.ID] = &sandboxEscrow{account: acct}
	out := acct
	return &out, nil
}

func (p *SandboxProvider) ConfirmPayment(_ context.Context, escrowID, _ string) (*escrow.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.get("confirm payment", escrowID)
	if err != nil {
		return nil, err
	}
	if e.account.Status == escrow.StatusCreated {
		e.account.Status = escrow.StatusHeld
	}
	out := e.account
	return &out, nil
}

func (p *SandboxProvider) ReleaseEscrow(_ context.Context, escrowID string, amount *decimal.Decimal) (*escrow.Transaction, error) {
	const op = "release escrow"
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.get(op, escrowID)
	if err != nil {
		return nil, err
	}
	switch e.account.Status {
	case escrow.StatusReleased:
		return p.synthesize(e, escrow.LedgerRelease, e.account.Amount), nil
	case escrow.StatusRefunded:
		return nil, escrow.InvalidState(op, "sandbox escrow %s is refunded", escrowID)
	case escrow.StatusCreated:
		return nil, escrow.InvalidState(op, "sandbox escrow %s must be confirmed before release", escrowID)
	}

	remaining := e.remaining()
	typ, released := escrow.LedgerRelease, remaining
	if amount != nil {
		if amount.GreaterThan(remaining) {
			return nil, escrow.InvalidState(op, "release amount %s exceeds available %s", amount, remaining)
		}
		if amount.LessThan(remaining) {
			typ, released = escrow.LedgerPartialRelease, *amount
		}
	}
	e.released = e.released.Add(released)
	if !e.remaining().IsPositive() {
		e.account.Status = escrow.StatusReleased
	}
	return p.append(e, typ, released), nil
}

func (p *SandboxProvider) RefundEscrow(_ context.Context, escrowID, _ string) (*escrow.Transaction, error) {
	const op = "refund escrow"
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.get(op, escrowID)
	if err != nil {
		return nil, err
	}
	switch e.account.Status {
	case escrow.StatusRefunded:
		return p.synthesize(e, escrow.LedgerRefund, e.account.Amount), nil
	case escrow.StatusReleased:
		return nil, escrow.InvalidState(op, "sandbox escrow %s is already released", escrowID)
	}
	e.account.Status = escrow.StatusRefunded
	return p.append(e, escrow.LedgerRefund, e.remaining()), nil
}

func (p *SandboxProvider) GetEscrowStatus(_ context.Context, escrowID string) (*escrow.StatusView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, err := p.get("escrow status", escrowID)
	if err != nil {
		return nil, err
	}
	available := decimal.Zero
	if e.account.Status.Holding() {
		available = e.remaining()
	}
	return &escrow.StatusView{
		EscrowID:        escrowID,
		ProviderID:      p.Name(),
		Status:          string(e.account.Status),
		CanonicalStatus: e.account.Status,
		AvailableAmount: available,
		TotalAmount:     e.account.Amount,
		Transactions:    append([]escrow.Transaction{}, e.history...),
	}, nil
}

func (p *SandboxProvider) get(op, escrowID string) (*sandboxEscrow, error) {
	e, ok := p.escrows[escrowID]
	if !ok {
		return nil, &escrow.Error{Kind: escrow.KindNotFound, Op: op, Provider: p.Name(), Message: "unknown sandbox escrow " + escrowID}
	}
	return e, nil
}

func (p *SandboxProvider) append(e *sandboxEscrow, typ escrow.LedgerType, amount decimal.Decimal) *escrow.Transaction {
	t := p.synthesize(e, typ, amount)
	e.history = append(e.history, *t)
	return t
}

func (p *SandboxProvider) synthesize(e *sandboxEscrow, typ escrow.LedgerType, amount decimal.Decimal) *escrow.Transaction {
	now := p.now().UTC()
	return &escrow.Transaction{
		ID:          newLedgerID(),
		EscrowID:    e.account.ID,
		Type:        typ,
		Amount:      amount,
		Status:      escrow.LedgerCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
}
