package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SafeHold/internal/config"
	"SafeHold/internal/escrow"
)

func TestRiskClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer risk-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/api/risk/transactions/7":
			_, _ = w.Write([]byte(`{"riskLevel":"high","score":82.5,"factors":["new_account"]}`))
		case "/api/risk/transactions/8":
			_, _ = w.Write([]byte(`{"riskLevel":"extreme","score":99}`))
		case "/api/trust/users/3":
			_, _ = w.Write([]byte(`{"score":12,"level":"low"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	rc := NewRiskClient(config.RiskEngineConfig{URL: srv.URL, Token: "risk-token"}, time.Second)
	ctx := context.Background()

	risk, err := rc.CalculateTransactionRiskScore(ctx, 7)
	if err != nil {
		t.Fatalf("risk: %v", err)
	}
	if risk.RiskLevel != escrow.RiskHigh || len(risk.Factors) != 1 {
		t.Fatalf("risk = %+v", risk)
	}

	if _, err := rc.CalculateTransactionRiskScore(ctx, 8); escrow.KindOf(err) != escrow.KindUpstream {
		t.Fatalf("unknown level: %v", err)
	}

	trust, err := rc.CalculateUserTrustScore(ctx, 3)
	if err != nil {
		t.Fatalf("trust: %v", err)
	}
	if trust.UserID != 3 || trust.Score != 12 {
		t.Fatalf("trust = %+v", trust)
	}
}

func TestRiskClientUnconfigured(t *testing.T) {
	rc := NewRiskClient(config.RiskEngineConfig{}, time.Second)
	if _, err := rc.CalculateTransactionRiskScore(context.Background(), 1); !errors.Is(err, escrow.ErrProviderUnavailable) {
		t.Fatalf("err = %v", err)
	}
}
