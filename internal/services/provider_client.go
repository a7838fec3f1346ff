package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"SafeHold/internal/escrow"
)

// providerClient is the shared HTTP plumbing for external escrow backends.
// Every failure it returns is an *escrow.Error.
type providerClient struct {
	name      string
	baseURL   string
	http      *http.Client
	authorize func(*http.Request)
}

func newProviderClient(name, baseURL string, timeout time.Duration, authorize func(*http.Request)) *providerClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &providerClient{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		authorize: authorize,
	}
}

type request struct {
	op          string
	method      string
	endpoint    string
	json        any
	form        url.Values
	idempotency string
}

// makeRequest sends req and decodes a 2xx body into out.
func (pc *providerClient) makeRequest(ctx context.Context, req request, out any) error {
	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.json != nil:
		jsonData, err := json.Marshal(req.json)
		if err != nil {
			return escrow.Upstream(req.op, pc.name, fmt.Errorf("failed to marshal payload: %w", err))
		}
		body = bytes.NewReader(jsonData)
		contentType = "application/json"
	case req.form != nil:
		body = strings.NewReader(req.form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, pc.baseURL+req.endpoint, body)
	if err != nil {
		return escrow.Upstream(req.op, pc.name, fmt.Errorf("failed to create request: %w", err))
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.idempotency != "" {
		httpReq.Header.Set("Idempotency-Key", req.idempotency)
	}
	if pc.authorize != nil {
		pc.authorize(httpReq)
	}

	resp, err := pc.http.Do(httpReq)
	if err != nil {
		return escrow.Upstream(req.op, pc.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return escrow.Upstream(req.op, pc.name, fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &escrow.Error{Kind: escrow.KindNotFound, Op: req.op, Provider: pc.name, Message: providerMessage(raw, "escrow not found")}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &escrow.Error{Kind: escrow.KindProviderUnavailable, Op: req.op, Provider: pc.name, Message: "credentials rejected: " + providerMessage(raw, resp.Status)}
	case resp.StatusCode >= 400:
		return escrow.Upstream(req.op, pc.name, fmt.Errorf("status %d: %s", resp.StatusCode, providerMessage(raw, resp.Status)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return escrow.Upstream(req.op, pc.name, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// providerMessage pulls a human message out of the common error envelopes.
func providerMessage(raw []byte, fallback string) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fallback
	}
	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(envelope.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return fallback
}

func newLedgerID() string {
	return uuid.NewString()
}
