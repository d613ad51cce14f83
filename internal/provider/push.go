package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/masjidconnect/reminder-service/internal/config"
	"github.com/masjidconnect/reminder-service/internal/domain"
)

// PushProvider delivers web-push notifications through an HTTP push gateway.
// The gateway answers 410 when the browser subscription has expired.
type PushProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewPushProvider(cfg config.PushConfig) *PushProvider {
	return &PushProvider{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.GatewayURL,
		apiKey:  cfg.APIKey,
	}
}

type pushRequest struct {
	Endpoint string            `json:"endpoint"`
	Keys     *domain.PushKeys  `json:"keys,omitempty"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}

// Send sends a notification to the push gateway
func (p *PushProvider) Send(ctx context.Context, to domain.Recipient, msg domain.Message) (*domain.SendResult, error) {
	body, err := json.Marshal(pushRequest{
		Endpoint: to.Address,
		Keys:     to.PushKeys,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, domain.NewProviderError(0, fmt.Sprintf("request failed: %v", err), true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var result domain.SendResult
	if err := json.Unmarshal(respBody, &result); err != nil || result.MessageID == "" {
		result = domain.SendResult{
			MessageID: fmt.Sprintf("push-%d", time.Now().UnixNano()),
			Status:    "accepted",
			Timestamp: time.Now().UTC(),
		}
	}

	return &result, nil
}

// statusError maps a non-2xx answer onto a ProviderError. 5xx and 429 are
// worth retrying, everything else is not.
func statusError(status int, body []byte) error {
	retryable := status >= 500 || status == http.StatusTooManyRequests
	return domain.NewProviderError(status, truncate(body, 500), retryable)
}
