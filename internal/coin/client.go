// Package coin talks to the community's coin service, which holds member
// balances. The review pipeline uses it to refund purchases on rejection.
package coin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client issues refunds against the coin service's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Client instance
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type refundRequest struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type refundResponse struct {
	NewBalance int64 `json:"new_balance"`
}

// Refund returns coins to a member. The coin service treats refunds as
// plain deposits, so callers must invoke it at most once per rejection.
func (c *Client) Refund(ctx context.Context, userID string, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	body, err := json.Marshal(refundRequest{
		UserID: userID,
		Amount: amount,
		Reason: reason,
	})
	if err != nil {
		return fmt.Errorf("failed to encode refund request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/refunds", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build refund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refund request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coin service returned status %d", resp.StatusCode)
	}

	var result refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode refund response: %w", err)
	}

	log.Printf("coin: refunded %d to user %s (new balance: %d)", amount, userID, result.NewBalance)
	return nil
}

// NoopRefunder satisfies the refund surface when no coin service is
// configured. Refunds are logged and dropped.
type NoopRefunder struct{}

// Refund logs the refund that would have been issued.
func (NoopRefunder) Refund(ctx context.Context, userID string, amount int64, reason string) error {
	log.Printf("coin: refund disabled, skipping %d for user %s (%s)", amount, userID, reason)
	return nil
}
