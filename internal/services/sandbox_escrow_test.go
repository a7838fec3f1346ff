package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"SafeHold/internal/escrow"
)

func TestSandboxLifecycle(t *testing.T) {
	p := NewSandboxProvider()
	ctx := context.Background()

	account, err := p.CreateEscrow(ctx, escrow.CreateRequest{TransactionID: 1, Amount: decimal.NewFromInt(80), Currency: "usd"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.OwnsReference(account.ID) || account.Status != escrow.StatusCreated || account.Currency != "USD" {
		t.Fatalf("account = %+v", account)
	}

	confirmed, err := p.ConfirmPayment(ctx, account.ID, "")
	if err != nil || confirmed.Status != escrow.StatusHeld {
		t.Fatalf("confirm = %+v, %v", confirmed, err)
	}

	view, err := p.GetEscrowStatus(ctx, account.ID)
	if err != nil || !view.AvailableAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("status = %+v, %v", view, err)
	}

	first, err := p.ReleaseEscrow(ctx, account.ID, nil)
	if err != nil || first.Status != escrow.LedgerCompleted {
		t.Fatalf("release = %+v, %v", first, err)
	}
	second, err := p.ReleaseEscrow(ctx, account.ID, nil)
	if err != nil || second.Status != escrow.LedgerCompleted {
		t.Fatalf("repeat release = %+v, %v", second, err)
	}

	view, _ = p.GetEscrowStatus(ctx, account.ID)
	if len(view.Transactions) != 1 || view.CanonicalStatus != escrow.StatusReleased {
		t.Fatalf("history = %+v", view)
	}

	if _, err := p.RefundEscrow(ctx, account.ID, ""); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("refund after release: %v", err)
	}
}

func TestSandboxRefundIsIdempotent(t *testing.T) {
	p := NewSandboxProvider()
	ctx := context.Background()
	account, _ := p.CreateEscrow(ctx, escrow.CreateRequest{Amount: decimal.NewFromInt(10), Currency: "USD"})

	for i := 0; i < 2; i++ {
		result, err := p.RefundEscrow(ctx, account.ID, "")
		if err != nil || result.Type != escrow.LedgerRefund {
			t.Fatalf("refund %d = %+v, %v", i, result, err)
		}
	}
	view, _ := p.GetEscrowStatus(ctx, account.ID)
	if len(view.Transactions) != 1 {
		t.Fatalf("history = %d entries", len(view.Transactions))
	}
}

func TestSandboxUnknownEscrow(t *testing.T) {
	if _, err := NewSandboxProvider().GetEscrowStatus(context.Background(), "sbx_missing"); !errors.Is(err, escrow.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSandboxReleaseRequiresConfirmation(t *testing.T) {
	p := NewSandboxProvider()
	ctx := context.Background()
	if !p.Capabilities().ExplicitConfirmation {
		t.Fatal("sandbox should require confirmation")
	}
	account, _ := p.CreateEscrow(ctx, escrow.CreateRequest{Amount: decimal.NewFromInt(40), Currency: "USD"})

	if _, err := p.ReleaseEscrow(ctx, account.ID, nil); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("release before confirm: %v", err)
	}
	view, _ := p.GetEscrowStatus(ctx, account.ID)
	if view.CanonicalStatus != escrow.StatusCreated || len(view.Transactions) != 0 {
		t.Fatalf("status = %+v", view)
	}
}

func TestSandboxPartialRelease(t *testing.T) {
	p := NewSandboxProvider()
	ctx := context.Background()
	account, _ := p.CreateEscrow(ctx, escrow.CreateRequest{Amount: decimal.NewFromInt(100), Currency: "USD"})
	if _, err := p.ConfirmPayment(ctx, account.ID, ""); err != nil {
		t.Fatal(err)
	}

	part := decimal.NewFromInt(25)
	result, err := p.ReleaseEscrow(ctx, account.ID, &part)
	if err != nil || result.Type != escrow.LedgerPartialRelease {
		t.Fatalf("partial = %+v, %v", result, err)
	}
	view, _ := p.GetEscrowStatus(ctx, account.ID)
	if view.CanonicalStatus != escrow.StatusHeld || !view.AvailableAmount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("after partial = %+v", view)
	}

	over := decimal.NewFromInt(80)
	if _, err := p.ReleaseEscrow(ctx, account.ID, &over); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("over release: %v", err)
	}

	refund, err := p.RefundEscrow(ctx, account.ID, "")
	if err != nil || !refund.Amount.Equal(decimal.NewFromInt(75)) {
		t.Fatalf("refund remainder = %+v, %v", refund, err)
	}
}
