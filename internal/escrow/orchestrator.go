package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"SafeHold/internal/models"
)

const defaultEscrowTTL = 30 * 24 * time.Hour

// Dependencies wires an Orchestrator. Registry, Store and Risk are required.
type Dependencies struct {
	Registry  *Registry
	Store     Store
	Risk      RiskEngine
	Locker    Locker
	Publisher Publisher
	Logger    *slog.Logger

	Thresholds Thresholds
	// LowTrustThreshold escalates selection to high risk when either party
	// scores below it. Zero disables trust lookups.
	LowTrustThreshold float64
	EscrowTTL         time.Duration
	Now               func() time.Time
}

// Orchestrator drives escrow creation, confirmation, release and refund
// across providers and keeps the transaction record in step.
type Orchestrator struct {
	registry   *Registry
	store      Store
	risk       RiskEngine
	locker     Locker
	publisher  Publisher
	log        *slog.Logger
	thresholds Thresholds
	lowTrust   float64
	ttl        time.Duration
	now        func() time.Time
}

func NewOrchestrator(deps Dependencies) (*Orchestrator, error) {
	if deps.Registry == nil || deps.Store == nil || deps.Risk == nil {
		return nil, errors.New("escrow: registry, store and risk engine are required")
	}
	o := &Orchestrator{
		registry:   deps.Registry,
		store:      deps.Store,
		risk:       deps.Risk,
		locker:     deps.Locker,
		publisher:  deps.Publisher,
		log:        deps.Logger,
		thresholds: deps.Thresholds,
		lowTrust:   deps.LowTrustThreshold,
		ttl:        deps.EscrowTTL,
		now:        deps.Now,
	}
	if o.locker == nil {
		o.locker = NewMemoryLocker()
	}
	if o.publisher == nil {
		o.publisher = nopPublisher{}
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.thresholds.HighValue.IsZero() && o.thresholds.VeryHighValue.IsZero() {
		o.thresholds = DefaultThresholds()
	}
	if o.ttl <= 0 {
		o.ttl = defaultEscrowTTL
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// CreateEscrowTransaction opens an escrow for the transaction at the provider
// chosen by risk, falling back once to the default provider when the
// high-risk provider fails.
func (o *Orchestrator) CreateEscrowTransaction(ctx context.Context, transactionID uint, preference string) (*Account, error) {
	const op = "create escrow"

	release, err := o.locker.Acquire(ctx, lockKey(transactionID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := o.checkReplaceable(ctx, op, tx); err != nil {
		return nil, err
	}

	buyer, err := o.store.GetUser(ctx, tx.BuyerID)
	if err != nil {
		return nil, err
	}
	seller, err := o.store.GetUser(ctx, tx.SellerID)
	if err != nil {
		return nil, err
	}

	risk, err := o.selectionRisk(ctx, tx)
	if err != nil {
		return nil, err
	}
	provider, err := SelectProvider(o.registry, risk, preference)
	if err != nil {
		return nil, err
	}

	req := CreateRequest{
		TransactionID: tx.ID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Buyer:         Party{UserID: buyer.ID, Email: buyer.Email, Name: buyer.FullName},
		Seller:        Party{UserID: seller.ID, Email: seller.Email, Name: seller.FullName},
		Description:   tx.Description,
		AttemptID:     uuid.NewString(),
	}

	account, err := provider.CreateEscrow(ctx, req)
	if err != nil {
		fallback, ok := o.registry.Default()
		if !ok || fallback.Name() == provider.Name() || !o.registry.IsHighRisk(provider.Name()) || !fallbackEligible(err) {
			return nil, err
		}
		o.log.WarnContext(ctx, "high-risk provider failed, falling back to default",
			"transaction_id", tx.ID, "provider", provider.Name(), "fallback", fallback.Name(), "error", err)
		provider = fallback
		account, err = provider.CreateEscrow(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if account.ExpiresAt == nil {
		exp := account.CreatedAt.Add(o.ttl)
		account.ExpiresAt = &exp
	}

	if err := o.store.UpdateTransactionStripeID(ctx, tx.ID, account.ID, provider.Name()); err != nil {
		o.log.ErrorContext(ctx, "escrow opened but provider reference not saved",
			"transaction_id", tx.ID, "provider", provider.Name(), "escrow_id", account.ID, "error", err)
		return nil, fmt.Errorf("%s: link escrow %s: %w", op, account.ID, err)
	}
	if err := o.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionEscrow); err != nil {
		return nil, fmt.Errorf("%s: mark transaction in escrow: %w", op, err)
	}

	o.log.InfoContext(ctx, "escrow created",
		"transaction_id", tx.ID, "provider", provider.Name(), "escrow_id", account.ID, "risk_level", risk)
	o.emit(ctx, EventCreated, tx, provider.Name(), account.ID, account.Amount, "")
	return account, nil
}

// ConfirmPaymentIntent moves a created hold into a funded state.
func (o *Orchestrator) ConfirmPaymentIntent(ctx context.Context, transactionID uint, paymentMethodID string) (*Account, error) {
	release, err := o.locker.Acquire(ctx, lockKey(transactionID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, provider, err := o.linked(ctx, "confirm payment", transactionID)
	if err != nil {
		return nil, err
	}

	account, err := provider.ConfirmPayment(ctx, tx.StripePaymentIntentID, paymentMethodID)
	if err != nil {
		return nil, err
	}
	if account.Status.Holding() {
		if tx.Status != models.TransactionEscrow {
			if err := o.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionEscrow); err != nil {
				return nil, fmt.Errorf("confirm payment: mark transaction in escrow: %w", err)
			}
		}
		o.emit(ctx, EventFunded, tx, provider.Name(), account.ID, account.Amount, "")
	}
	return account, nil
}

// ReleaseEscrowFunds pays the seller once the release gates pass. A nil
// amount releases the full transaction amount.
func (o *Orchestrator) ReleaseEscrowFunds(ctx context.Context, transactionID uint, amount *decimal.Decimal) (*Transaction, error) {
	const op = "release escrow"

	release, err := o.locker.Acquire(ctx, lockKey(transactionID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := CheckReleaseEligibility(ctx, tx, o.store.GetDisputesByTransaction, o.now()); err != nil {
		return nil, err
	}

	provider, err := o.providerFor(op, tx)
	if err != nil {
		return nil, err
	}
	if amount != nil {
		if !amount.IsPositive() {
			return nil, InvalidState(op, "release amount must be positive")
		}
		if amount.GreaterThan(tx.Amount) {
			return nil, InvalidState(op, "release amount %s exceeds escrowed %s", amount, tx.Amount)
		}
		if amount.LessThan(tx.Amount) && !provider.Capabilities().PartialRelease {
			return nil, InvalidState(op, "provider %s does not support partial release", provider.Name())
		}
		view, err := provider.GetEscrowStatus(ctx, tx.StripePaymentIntentID)
		if err != nil {
			return nil, err
		}
		if view.AvailableAmount.IsPositive() && amount.GreaterThan(view.AvailableAmount) {
			return nil, InvalidState(op, "release amount %s exceeds available %s", amount, view.AvailableAmount)
		}
	}

	result, err := provider.ReleaseEscrow(ctx, tx.StripePaymentIntentID, amount)
	if err != nil {
		o.log.ErrorContext(ctx, "escrow release failed; reconcile via status before retrying",
			"transaction_id", tx.ID, "provider", provider.Name(), "escrow_id", tx.StripePaymentIntentID, "error", err)
		return nil, err
	}
	o.record(ctx, tx, provider.Name(), result)

	if result.Status == LedgerCompleted {
		if !o.stillHolding(ctx, provider, tx, result) {
			if err := o.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionCompleted); err != nil {
				return nil, fmt.Errorf("%s: funds released at %s but transaction not updated: %w", op, provider.Name(), err)
			}
		}
		o.emit(ctx, EventReleased, tx, provider.Name(), result.EscrowID, result.Amount, "")
	}
	return result, nil
}

// stillHolding reports whether a partial release left funds at the provider
// that a later release can pay out. Providers that settle the remainder on
// the first capture report nothing available.
func (o *Orchestrator) stillHolding(ctx context.Context, provider Provider, tx *models.Transaction, result *Transaction) bool {
	if result.Type != LedgerPartialRelease {
		return false
	}
	view, err := provider.GetEscrowStatus(ctx, tx.StripePaymentIntentID)
	if err != nil {
		o.log.WarnContext(ctx, "escrow status unavailable after partial release",
			"transaction_id", tx.ID, "provider", provider.Name(), "error", err)
		return false
	}
	return view.CanonicalStatus.Holding() && view.AvailableAmount.IsPositive()
}

// RefundEscrowFunds returns funds to the buyer. Disputes do not block it.
func (o *Orchestrator) RefundEscrowFunds(ctx context.Context, transactionID uint, reason string) (*Transaction, error) {
	release, err := o.locker.Acquire(ctx, lockKey(transactionID))
	if err != nil {
		return nil, err
	}
	defer release()

	tx, provider, err := o.linked(ctx, "refund escrow", transactionID)
	if err != nil {
		return nil, err
	}

	result, err := provider.RefundEscrow(ctx, tx.StripePaymentIntentID, reason)
	if err != nil {
		o.log.ErrorContext(ctx, "escrow refund failed; reconcile via status before retrying",
			"transaction_id", tx.ID, "provider", provider.Name(), "escrow_id", tx.StripePaymentIntentID, "error", err)
		return nil, err
	}
	o.record(ctx, tx, provider.Name(), result)

	if result.Status == LedgerCompleted {
		if err := o.store.UpdateTransactionStatus(ctx, tx.ID, models.TransactionRefunded); err != nil {
			return nil, fmt.Errorf("refund escrow: funds refunded at %s but transaction not updated: %w", provider.Name(), err)
		}
		o.emit(ctx, EventRefunded, tx, provider.Name(), result.EscrowID, result.Amount, reason)
	}
	return result, nil
}

// GetEscrowStatus reads the provider's view of the escrow. Providers without
// their own history get the locally recorded ledger instead.
func (o *Orchestrator) GetEscrowStatus(ctx context.Context, transactionID uint) (*StatusView, error) {
	tx, provider, err := o.linked(ctx, "escrow status", transactionID)
	if err != nil {
		return nil, err
	}
	view, err := provider.GetEscrowStatus(ctx, tx.StripePaymentIntentID)
	if err != nil {
		return nil, err
	}
	if view.Transactions == nil {
		view.Transactions = []Transaction{}
	}
	if !provider.Capabilities().History && len(view.Transactions) == 0 {
		entries, err := o.store.ListLedgerEntries(ctx, tx.ID)
		if err != nil {
			o.log.WarnContext(ctx, "could not load local escrow ledger", "transaction_id", tx.ID, "error", err)
		}
		for _, e := range entries {
			view.Transactions = append(view.Transactions, Transaction{
				ID:          e.ID,
				EscrowID:    e.EscrowID,
				Type:        LedgerType(e.Type),
				Amount:      e.Amount,
				Status:      LedgerStatus(e.Status),
				CreatedAt:   e.CreatedAt,
				CompletedAt: e.CompletedAt,
			})
		}
	}
	return view, nil
}

// IsEscrowRecommended advises whether the transaction should use escrow.
func (o *Orchestrator) IsEscrowRecommended(ctx context.Context, transactionID uint) (*Recommendation, error) {
	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	score, err := o.risk.CalculateTransactionRiskScore(ctx, tx.ID)
	if err != nil {
		return nil, riskFailure("escrow recommendation", err)
	}
	rec := Recommend(tx.Amount, score.RiskLevel, o.thresholds)
	return &rec, nil
}

// Parties returns the buyer and seller of a transaction.
func (o *Orchestrator) Parties(ctx context.Context, transactionID uint) (buyerID, sellerID uint, err error) {
	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return 0, 0, err
	}
	return tx.BuyerID, tx.SellerID, nil
}

// selectionRisk is the transaction risk, escalated to high when either
// party's trust score is below the configured floor. Trust lookups are best
// effort.
func (o *Orchestrator) selectionRisk(ctx context.Context, tx *models.Transaction) (RiskLevel, error) {
	score, err := o.risk.CalculateTransactionRiskScore(ctx, tx.ID)
	if err != nil {
		return "", riskFailure("create escrow", err)
	}
	level := score.RiskLevel
	if o.lowTrust <= 0 || level.Elevated() {
		return level, nil
	}
	for _, userID := range []uint{tx.BuyerID, tx.SellerID} {
		trust, err := o.risk.CalculateUserTrustScore(ctx, userID)
		if err != nil {
			o.log.WarnContext(ctx, "trust score unavailable", "user_id", userID, "error", err)
			continue
		}
		if trust.Score < o.lowTrust {
			o.log.InfoContext(ctx, "low trust party, treating transaction as high risk",
				"transaction_id", tx.ID, "user_id", userID, "trust_score", trust.Score)
			return RiskHigh, nil
		}
	}
	return level, nil
}

// linked loads a transaction that must already carry an escrow reference
// and resolves its provider.
func (o *Orchestrator) linked(ctx context.Context, op string, transactionID uint) (*models.Transaction, Provider, error) {
	tx, err := o.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	p, err := o.providerFor(op, tx)
	if err != nil {
		return nil, nil, err
	}
	return tx, p, nil
}

// providerFor prefers the stored provider name, then the reference format,
// then the default provider.
func (o *Orchestrator) providerFor(op string, tx *models.Transaction) (Provider, error) {
	if !tx.HasEscrow() {
		return nil, NotFound(op, "no escrow linked to transaction %d", tx.ID)
	}
	if p, ok := o.registry.Get(tx.EscrowProvider); ok {
		return p, nil
	}
	if p, ok := o.registry.ByReference(tx.StripePaymentIntentID); ok {
		return p, nil
	}
	if p, ok := o.registry.Default(); ok {
		return p, nil
	}
	return nil, ProviderUnavailable(op, tx.EscrowProvider, "no provider can serve escrow %s", tx.StripePaymentIntentID)
}

func (o *Orchestrator) record(ctx context.Context, tx *models.Transaction, provider string, t *Transaction) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	entry := &models.EscrowLedgerEntry{
		ID:            t.ID,
		TransactionID: tx.ID,
		EscrowID:      t.EscrowID,
		Provider:      provider,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Status:        string(t.Status),
		CreatedAt:     t.CreatedAt,
		CompletedAt:   t.CompletedAt,
	}
	if err := o.store.RecordLedgerEntry(ctx, entry); err != nil {
		o.log.ErrorContext(ctx, "escrow ledger entry not recorded",
			"transaction_id", tx.ID, "escrow_id", t.EscrowID, "ledger_id", t.ID, "error", err)
	}
}

func (o *Orchestrator) emit(ctx context.Context, typ EventType, tx *models.Transaction, provider, escrowID string, amount decimal.Decimal, reason string) {
	evt := Event{
		Type:          typ,
		TransactionID: tx.ID,
		ProviderID:    provider,
		EscrowID:      escrowID,
		Amount:        amount,
		Currency:      tx.Currency,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		Reason:        reason,
		OccurredAt:    o.now().UTC(),
	}
	if err := o.publisher.Publish(ctx, evt); err != nil {
		o.log.WarnContext(ctx, "escrow event not published", "type", typ, "transaction_id", tx.ID, "error", err)
	}
}

// checkReplaceable allows a new escrow only when no funds can still be held
// under the linked reference. The stored reference is the only pointer to
// the existing hold, so anything short of a refunded or cancelled escrow
// keeps it.
func (o *Orchestrator) checkReplaceable(ctx context.Context, op string, tx *models.Transaction) error {
	if !tx.HasEscrow() {
		return nil
	}
	switch tx.Status {
	case models.TransactionRefunded, models.TransactionCancelled:
		return nil
	}
	provider, err := o.providerFor(op, tx)
	if err != nil {
		return err
	}
	view, err := provider.GetEscrowStatus(ctx, tx.StripePaymentIntentID)
	if err != nil {
		return err
	}
	if view.CanonicalStatus == StatusRefunded {
		return nil
	}
	return InvalidState(op, "transaction %d already has escrow %s at %s (status %s)",
		tx.ID, tx.StripePaymentIntentID, provider.Name(), view.CanonicalStatus)
}

func riskFailure(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindUpstream, Op: op, Provider: "risk-engine", Message: "risk score unavailable", Err: err}
}
