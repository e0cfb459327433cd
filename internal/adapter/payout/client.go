// Package payout calls the external provider that pays out approved withdrawals.
package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"investment-core/config"
	"investment-core/internal/core/domain"
	"investment-core/internal/core/ports"
	"investment-core/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const withdrawalsPath = "/withdrawals"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.PayoutGateway over the provider's REST API.
//
// Calls are made exactly once. A payout that times out may still have been
// executed by the provider, so retrying is left to an operator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	metrics    *metrics.PayoutMetrics
	log        zerolog.Logger
}

// NewClient creates a payout client. The caller's context carries the timeout.
func NewClient(cfg config.PayoutConfig, httpClient HTTPClient, m *metrics.PayoutMetrics, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		metrics:    m,
		log:        log,
	}
}

type createWithdrawalRequest struct {
	Amount             string `json:"amount"`
	DestinationKey     string `json:"destinationKey"`
	DestinationKeyType string `json:"destinationKeyType"`
	ExternalReference  string `json:"externalReference"`
}

type createWithdrawalResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ID        string          `json:"id"`
		Status    string          `json:"status"`
		Fee       decimal.Decimal `json:"fee"`
		NetAmount decimal.Decimal `json:"net_amount"`
	} `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// Send creates a withdrawal at the provider.
func (c *Client) Send(ctx context.Context, req ports.PayoutRequest) (*domain.PayoutResult, error) {
	if c.baseURL == "" {
		c.metrics.Inc("error")
		return nil, errors.New("payout gateway: base url not configured")
	}

	body, err := json.Marshal(createWithdrawalRequest{
		Amount:             req.Amount.StringFixed(2),
		DestinationKey:     req.DestinationKey,
		DestinationKeyType: req.DestinationKeyType,
		ExternalReference:  req.ExternalReference,
	})
	if err != nil {
		return nil, fmt.Errorf("payout gateway: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+withdrawalsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("payout gateway: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.metrics.Inc("timeout")
			return nil, fmt.Errorf("payout gateway: %w", context.DeadlineExceeded)
		}
		c.metrics.Inc("error")
		return nil, fmt.Errorf("payout gateway: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.Inc("error")
		return nil, fmt.Errorf("payout gateway: read response: %w", err)
	}

	c.log.Debug().
		Str("external_reference", req.ExternalReference).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(started)).
		Msg("payout gateway responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.Inc("error")
		return nil, fmt.Errorf("payout gateway: status %d: %s", resp.StatusCode, truncate(respBody))
	}

	var parsed createWithdrawalResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		c.metrics.Inc("error")
		return nil, fmt.Errorf("payout gateway: decode response: %w", err)
	}
	if !parsed.Success || parsed.Data == nil || parsed.Data.ID == "" {
		c.metrics.Inc("error")
		return nil, fmt.Errorf("payout gateway: rejected: %s", parsed.reason())
	}

	c.metrics.Inc("success")
	return &domain.PayoutResult{
		GatewayTransactionID: parsed.Data.ID,
		Status:               parsed.Data.Status,
		Fee:                  parsed.Data.Fee,
		NetAmount:            parsed.Data.NetAmount,
	}, nil
}

// reason extracts a readable message from error, which providers send either
// as a string or as {"message": "..."}.
func (r createWithdrawalResponse) reason() string {
	if len(r.Error) > 0 && string(r.Error) != "null" {
		var s string
		if err := json.Unmarshal(r.Error, &s); err == nil && s != "" {
			return s
		}
		var obj struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if err := json.Unmarshal(r.Error, &obj); err == nil && obj.Message != "" {
			return strings.TrimSpace(obj.Code + " " + obj.Message)
		}
		return truncate(r.Error)
	}
	if r.Message != "" {
		return r.Message
	}
	return "unsuccessful response"
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
