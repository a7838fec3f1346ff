package services

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"SafeHold/internal/escrow"
	"SafeHold/internal/models"
)

func TestNoticesFor(t *testing.T) {
	base := escrow.Event{
		TransactionID: 9,
		Amount:        decimal.NewFromInt(120),
		Currency:      "USD",
		BuyerID:       1,
		SellerID:      2,
	}

	tests := []struct {
		typ        escrow.EventType
		reason     string
		recipients []uint
		kind       models.NotificationType
		contains   string
	}{
		{escrow.EventCreated, "", []uint{2}, models.NotificationEscrowCreated, "USD 120.00"},
		{escrow.EventFunded, "", []uint{2}, models.NotificationEscrowFunded, "You can now deliver"},
		{escrow.EventReleased, "", []uint{2, 1}, models.NotificationEscrowReleased, "transaction #9"},
		{escrow.EventRefunded, "damaged", []uint{1, 2}, models.NotificationEscrowRefunded, "Reason: damaged"},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			evt := base
			evt.Type = tt.typ
			evt.Reason = tt.reason

			got := noticesFor(evt)
			if len(got) != len(tt.recipients) {
				t.Fatalf("got %d notices, want %d", len(got), len(tt.recipients))
			}
			for i, n := range got {
				if n.userID != tt.recipients[i] || n.kind != tt.kind {
					t.Fatalf("notice %d = %+v", i, n)
				}
			}
			if !strings.Contains(got[0].message, tt.contains) {
				t.Fatalf("message %q missing %q", got[0].message, tt.contains)
			}
		})
	}

	if n := noticesFor(escrow.Event{Type: "escrow.unknown"}); n != nil {
		t.Fatalf("unexpected notices %+v", n)
	}
}

func TestEscrowEmailHTMLEscapes(t *testing.T) {
	out := escrowEmailHTML("Escrow Refunded", "Reason: <script>x</script>")
	if strings.Contains(out, "<script>") {
		t.Fatal("message not escaped")
	}
}
