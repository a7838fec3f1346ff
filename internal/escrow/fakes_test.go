package escrow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"SafeHold/internal/models"
)

type fakeStore struct {
	mu           sync.Mutex
	transactions map[uint]*models.Transaction
	users        map[uint]*models.User
	disputes     map[uint][]models.Dispute
	ledger       []models.EscrowLedgerEntry

	disputeLoads int
	statusErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transactions: make(map[uint]*models.Transaction),
		users: map[uint]*models.User{
			1: {ID: 1, FullName: "Bola Buyer", Email: "buyer@example.com"},
			2: {ID: 2, FullName: "Sade Seller", Email: "seller@example.com"},
		},
		disputes: make(map[uint][]models.Dispute),
	}
}

func (s *fakeStore) add(tx models.Transaction) {
	if tx.BuyerID == 0 {
		tx.BuyerID = 1
	}
	if tx.SellerID == 0 {
		tx.SellerID = 2
	}
	if tx.Currency == "" {
		tx.Currency = "USD"
	}
	s.transactions[tx.ID] = &tx
}

func (s *fakeStore) tx(id uint) models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.transactions[id]
}

func (s *fakeStore) GetTransaction(_ context.Context, id uint) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, NotFound("get transaction", "transaction %d not found", id)
	}
	cp := *tx
	return &cp, nil
}

func (s *fakeStore) UpdateTransactionStatus(_ context.Context, id uint, status models.TransactionStatus) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[id].Status = status
	return nil
}

func (s *fakeStore) UpdateTransactionStripeID(_ context.Context, id uint, ref, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions[id].StripePaymentIntentID = ref
	s.transactions[id].EscrowProvider = provider
	return nil
}

func (s *fakeStore) GetDisputesByTransaction(_ context.Context, id uint) ([]models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disputeLoads++
	return s.disputes[id], nil
}

func (s *fakeStore) GetUser(_ context.Context, id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, NotFound("get user", "user %d not found", id)
	}
	return u, nil
}

func (s *fakeStore) RecordLedgerEntry(_ context.Context, e *models.EscrowLedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = append(s.ledger, *e)
	return nil
}

func (s *fakeStore) ListLedgerEntries(_ context.Context, id uint) ([]models.EscrowLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EscrowLedgerEntry
	for _, e := range s.ledger {
		if e.TransactionID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeRisk struct {
	level RiskLevel
	trust map[uint]float64
	err   error
}

func (r *fakeRisk) CalculateTransactionRiskScore(context.Context, uint) (*RiskScore, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &RiskScore{RiskLevel: r.level}, nil
}

func (r *fakeRisk) CalculateUserTrustScore(_ context.Context, userID uint) (*TrustScore, error) {
	score, ok := r.trust[userID]
	if !ok {
		score = 80
	}
	return &TrustScore{UserID: userID, Score: score}, nil
}

type fakeProvider struct {
	name   string
	prefix string
	caps   Capabilities

	createErr    error
	createCalls  int
	releaseCalls int
	refundCalls  int
	lastCreate   CreateRequest
	status       *StatusView
}

func (p *fakeProvider) Name() string               { return p.name }
func (p *fakeProvider) Capabilities() Capabilities { return p.caps }
func (p *fakeProvider) OwnsReference(ref string) bool {
	return p.prefix != "" && strings.HasPrefix(ref, p.prefix)
}

func (p *fakeProvider) CreateEscrow(_ context.Context, req CreateRequest) (*Account, error) {
	p.createCalls++
	p.lastCreate = req
	if p.createErr != nil {
		return nil, p.createErr
	}
	return &Account{
		ID:         p.prefix + "123",
		ProviderID: p.name,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     StatusCreated,
		BuyerID:    req.Buyer.UserID,
		SellerID:   req.Seller.UserID,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (p *fakeProvider) ConfirmPayment(_ context.Context, escrowID, _ string) (*Account, error) {
	return &Account{ID: escrowID, ProviderID: p.name, Status: StatusHeld}, nil
}

func (p *fakeProvider) ReleaseEscrow(_ context.Context, escrowID string, amount *decimal.Decimal) (*Transaction, error) {
	p.releaseCalls++
	amt := decimal.NewFromInt(100)
	typ := LedgerRelease
	if amount != nil {
		amt = *amount
		typ = LedgerPartialRelease
	}
	return &Transaction{ID: "rel-1", EscrowID: escrowID, Type: typ, Amount: amt, Status: LedgerCompleted, CreatedAt: time.Now()}, nil
}

func (p *fakeProvider) RefundEscrow(_ context.Context, escrowID, _ string) (*Transaction, error) {
	p.refundCalls++
	return &Transaction{ID: "ref-1", EscrowID: escrowID, Type: LedgerRefund, Amount: decimal.NewFromInt(100), Status: LedgerCompleted, CreatedAt: time.Now()}, nil
}

func (p *fakeProvider) GetEscrowStatus(_ context.Context, escrowID string) (*StatusView, error) {
	if p.status != nil {
		return p.status, nil
	}
	return &StatusView{EscrowID: escrowID, ProviderID: p.name, Status: "held", CanonicalStatus: StatusHeld}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingPublisher) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordingPublisher) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
