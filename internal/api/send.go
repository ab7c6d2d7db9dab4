package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	http "github.com/bogdanfinn/fhttp"

	apierrors "github.com/diogo/sentichat/internal/errors"
	"github.com/diogo/sentichat/internal/models"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// Send posts message to the webhook and returns the reply body as text.
// Any 2xx status is success; everything else is an *errors.APIError, and
// transport failures are *errors.NetworkError or *errors.TimeoutError.
func (c *WebhookClient) Send(ctx context.Context, message string, sentAt time.Time) (string, error) {
	if c.IsClosed() {
		return "", apierrors.ErrClientClosed
	}
	if c.endpoint == "" {
		return "", apierrors.ErrNoEndpoint
	}
	if message == "" {
		return "", apierrors.ErrEmptyMessage
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(models.NewWebhookRequest(message, sentAt))
	if err != nil {
		return "", fmt.Errorf("failed to build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range models.DefaultHeaders() {
		req.Header.Set(key, value)
	}

	c.logger.Printf("POST %s (%d bytes)", c.endpoint, len(payload))
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apierrors.NewTimeoutError(fmt.Sprintf("no response from %s within %s", c.endpoint, c.timeout))
		}
		return "", apierrors.NewNetworkErrorWithEndpoint("send message", c.endpoint, err)
	}
	defer func() {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	c.logger.Printf("response %d in %s", resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", apierrors.NewAPIErrorWithBody(resp.StatusCode, c.endpoint, "message processing failed", string(errorBody))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("read response", c.endpoint, err)
	}

	return extractReply(body, c.responseField), nil
}
