package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"SafeHold/internal/config"
	"SafeHold/internal/escrow"
)

// RiskClient calls the external trust and risk engine.
type RiskClient struct {
	client     *providerClient
	configured bool
}

func NewRiskClient(cfg config.RiskEngineConfig, timeout time.Duration) *RiskClient {
	token := cfg.Token
	return &RiskClient{
		client: newProviderClient("risk-engine", cfg.URL, timeout, func(r *http.Request) {
			if token != "" {
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}),
		configured: cfg.URL != "",
	}
}

func (rc *RiskClient) CalculateUserTrustScore(ctx context.Context, userID uint) (*escrow.TrustScore, error) {
	const op = "trust score"
	if !rc.configured {
		return nil, escrow.ProviderUnavailable(op, "risk-engine", "risk engine url not configured")
	}
	var score escrow.TrustScore
	if err := rc.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodGet,
		endpoint: fmt.Sprintf("/api/trust/users/%d", userID),
	}, &score); err != nil {
		return nil, err
	}
	score.UserID = userID
	return &score, nil
}

func (rc *RiskClient) CalculateTransactionRiskScore(ctx context.Context, transactionID uint) (*escrow.RiskScore, error) {
	const op = "transaction risk"
	if !rc.configured {
		return nil, escrow.ProviderUnavailable(op, "risk-engine", "risk engine url not configured")
	}
	var score escrow.RiskScore
	if err := rc.client.makeRequest(ctx, request{
		op:       op,
		method:   http.MethodGet,
		endpoint: fmt.Sprintf("/api/risk/transactions/%d", transactionID),
	}, &score); err != nil {
		return nil, err
	}
	switch score.RiskLevel {
	case escrow.RiskLow, escrow.RiskMedium, escrow.RiskHigh, escrow.RiskCritical:
	default:
		return nil, escrow.Upstream(op, "risk-engine", fmt.Errorf("unknown risk level %q", score.RiskLevel))
	}
	return &score, nil
}
