package handler

import (
	"context"
	"io"
	"sync"
	"time"

	"investment-core/internal/adapter/http/middleware"
	"investment-core/internal/core/ports"
	"investment-core/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultProcessTimeout = 30 * time.Second

// WebhookHandler acknowledges payment notifications and processes them in the
// background.
type WebhookHandler struct {
	ingest  ports.WebhookIngestionService
	timeout time.Duration
	log     zerolog.Logger

	wg sync.WaitGroup
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(ingest ports.WebhookIngestionService, timeout time.Duration, log zerolog.Logger) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	return &WebhookHandler{ingest: ingest, timeout: timeout, log: log}
}

// Receive handles POST /api/v1/webhooks/payments.
// The provider always gets 200 {"received": true}; outcomes are only logged,
// counted and audited.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	timestamp := c.GetHeader(middleware.HeaderTimestamp)
	signature := c.GetHeader(middleware.HeaderSignature)

	response.Received(c)

	if err != nil {
		h.log.Error().Err(err).Int("body_bytes", len(body)).Msg("webhook body unreadable")
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, h.timeout)
		defer cancel()

		// errors are already logged and audited by the ingestion service
		_, _ = h.ingest.Process(ctx, body, timestamp, signature)
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (h *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
