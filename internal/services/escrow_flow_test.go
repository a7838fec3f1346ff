package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"SafeHold/internal/escrow"
	"SafeHold/internal/models"
)

// memStore is an escrow.Store over plain maps.
type memStore struct {
	mu           sync.Mutex
	transactions map[uint]*models.Transaction
	ledger       []models.EscrowLedgerEntry
}

func newMemStore(txs ...models.Transaction) *memStore {
	s := &memStore{transactions: make(map[uint]*models.Transaction)}
	for i := range txs {
		tx := txs[i]
		s.transactions[tx.ID] = &tx
	}
	return s
}

func (s *memStore) GetTransaction(_ context.Context, id uint) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, escrow.NotFound("get transaction", "transaction %d not found", id)
	}
	cp := *tx
	return &cp, nil
}

func (s *memStore) UpdateTransactionStatus(_ context.Context, id uint, status models.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[id].Status = status
	return nil
}

func (s *memStore) UpdateTransactionStripeID(_ context.Context, id uint, ref, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[id].StripePaymentIntentID = ref
	s.transactions[id].EscrowProvider = provider
	return nil
}

func (s *memStore) GetDisputesByTransaction(context.Context, uint) ([]models.Dispute, error) {
	return nil, nil
}

func (s *memStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	return &models.User{ID: id, FullName: "User", Email: "user@example.com"}, nil
}

func (s *memStore) RecordLedgerEntry(_ context.Context, e *models.EscrowLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, *e)
	return nil
}

func (s *memStore) ListLedgerEntries(context.Context, uint) ([]models.EscrowLedgerEntry, error) {
	return nil, nil
}

type lowRisk struct{}

func (lowRisk) CalculateTransactionRiskScore(context.Context, uint) (*escrow.RiskScore, error) {
	return &escrow.RiskScore{RiskLevel: escrow.RiskLow}, nil
}

func (lowRisk) CalculateUserTrustScore(_ context.Context, id uint) (*escrow.TrustScore, error) {
	return &escrow.TrustScore{UserID: id, Score: 90}, nil
}

func newFlowOrchestrator(t *testing.T, store escrow.Store, providers ...escrow.Provider) *escrow.Orchestrator {
	t.Helper()
	reg := escrow.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	if err := reg.SetDefault(providers[0].Name()); err != nil {
		t.Fatal(err)
	}
	orch, err := escrow.NewOrchestrator(escrow.Dependencies{Registry: reg, Store: store, Risk: lowRisk{}})
	if err != nil {
		t.Fatal(err)
	}
	return orch
}

func TestRefundOfCancelledEscrowComHoldMarksTransactionRefunded(t *testing.T) {
	f := &fakeEscrowCom{status: "cancelled"}
	store := newMemStore(models.Transaction{
		ID: 80, BuyerID: 1, SellerID: 2, Amount: decimal.NewFromInt(250), Currency: "USD",
		Status: models.TransactionEscrow, StripePaymentIntentID: "1001", EscrowProvider: EscrowComProviderName,
	})
	orch := newFlowOrchestrator(t, store, newTestEscrowCom(t, f))

	result, err := orch.RefundEscrowFunds(context.Background(), 80, "buyer request")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.Type != escrow.LedgerRefund || result.Status != escrow.LedgerCompleted {
		t.Fatalf("result = %+v", result)
	}
	if got := store.transactions[80].Status; got != models.TransactionRefunded {
		t.Fatalf("status = %s, want refunded", got)
	}
	if len(f.patches) != 0 {
		t.Fatal("cancel must not be sent again")
	}
}

func TestSandboxPartialReleaseKeepsRemainderInEscrow(t *testing.T) {
	sandbox := NewSandboxProvider()
	store := newMemStore(models.Transaction{ID: 81, BuyerID: 1, SellerID: 2, Amount: decimal.NewFromInt(100), Currency: "USD", Status: models.TransactionPending})
	orch := newFlowOrchestrator(t, store, sandbox)
	ctx := context.Background()

	if _, err := orch.CreateEscrowTransaction(ctx, 81, ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := orch.ConfirmPaymentIntent(ctx, 81, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	part := decimal.NewFromInt(30)
	if _, err := orch.ReleaseEscrowFunds(ctx, 81, &part); err != nil {
		t.Fatalf("partial release: %v", err)
	}
	if got := store.transactions[81].Status; got != models.TransactionEscrow {
		t.Fatalf("status after partial = %s, want escrow", got)
	}

	tooMuch := decimal.NewFromInt(80)
	if _, err := orch.ReleaseEscrowFunds(ctx, 81, &tooMuch); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("over-release err = %v", err)
	}

	rest, err := orch.ReleaseEscrowFunds(ctx, 81, nil)
	if err != nil {
		t.Fatalf("release remainder: %v", err)
	}
	if !rest.Amount.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("remainder = %s, want 70", rest.Amount)
	}
	if got := store.transactions[81].Status; got != models.TransactionCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
}
