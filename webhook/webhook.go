// Package webhook delivers batch render completion notifications to a
// caller-supplied URL, signing the body with HMAC-SHA256 when a secret
// is configured.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Event is the payload posted to a job's webhook URL.
type Event struct {
	Type      string      `json:"type"` // "batch.completed", "batch.failed"
	JobID     string      `json:"jobId"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Client delivers webhook events with bounded retries.
type Client struct {
	http *retryablehttp.Client
}

// NewClient builds a webhook client with the retry schedule described
// in spec §4.G's supplemented batch feature: up to 3 retries with
// exponential backoff between 1s and 30s.
func NewClient() *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 1 * time.Second
	c.RetryWaitMax = 30 * time.Second
	c.Logger = nil
	return &Client{http: c}
}

// Deliver sends one webhook event synchronously, retrying transient
// failures per the client's schedule.
func (c *Client) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "AgentWeb-Webhook/0.2")

	if secret != "" {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		sig := hex.EncodeToString(mac.Sum(nil))
		req.Header.Set("X-AgentWeb-Signature", "sha256="+sig)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync fires Deliver in the background and logs the outcome.
// Failures after exhausting retries are logged, not returned, since
// the caller has already moved on to the next batch job.
func (c *Client) DeliverAsync(url, secret string, event *Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		if err := c.Deliver(ctx, url, secret, event); err != nil {
			slog.Error("webhook delivery failed",
				"url", url, "event", event.Type, "jobId", event.JobID, "error", err)
			return
		}
		slog.Info("webhook delivered",
			"url", url, "event", event.Type, "jobId", event.JobID)
	}()
}
