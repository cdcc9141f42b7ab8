package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WebhookValidator dispatches check requests to an external collaborator
// over HTTP. The collaborator looks the lobby up in Steam and reports
// back through the completions endpoint.
type WebhookValidator struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewWebhookValidator builds a validator posting to url.
func NewWebhookValidator(url string, timeout time.Duration, logger *zap.Logger) *WebhookValidator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookValidator{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type checkRequest struct {
	LobbyID uint64 `json:"lobby_id"`
}

// Request posts the lobby id to the collaborator. Any non-2xx answer
// counts as a rejected dispatch.
func (v *WebhookValidator) Request(ctx context.Context, lobbyID uint64) error {
	payload, err := json.Marshal(checkRequest{LobbyID: lobbyID})
	if err != nil {
		return fmt.Errorf("marshal check request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("dispatch check: unexpected status %d", resp.StatusCode)
	}
	v.logger.Debug("validation dispatched", zap.Uint64("lobby_id", lobbyID))
	return nil
}
