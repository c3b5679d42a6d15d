package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orbitlabs/orbit-api/internal/config"
)

// NotificationResult is the response shape of the completion email function.
type NotificationResult struct {
	Success        bool   `json:"success"`
	EmailID        string `json:"emailId,omitempty"`
	DeliveryStatus string `json:"deliveryStatus,omitempty"`
	Error          string `json:"error,omitempty"`
}

// EmailClient invokes the external order-completion email function.
type EmailClient struct {
	httpClient  *http.Client
	functionURL string
	secret      string
}

// NewEmailClient creates a completion notification client.
func NewEmailClient(cfg *config.EmailConfig) *EmailClient {
	return &EmailClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		functionURL: cfg.FunctionURL,
		secret:      cfg.Secret,
	}
}

// SendOrderCompletion asks the email function to notify the customer that
// their order is ready.
func (c *EmailClient) SendOrderCompletion(ctx context.Context, orderID string) (*NotificationResult, error) {
	bodyBytes, err := json.Marshal(map[string]string{"orderId": orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.functionURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("x-source-function", "orbit-orchestrator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notification error: failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notification error: email function status %d: %s", resp.StatusCode, string(respBody))
	}

	var result NotificationResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *EmailClient) IsConfigured() bool {
	return c.functionURL != ""
}
