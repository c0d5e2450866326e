// webhook.go posts run reports to a configured HTTP endpoint.
//
// Delivery uses hashicorp/go-retryablehttp with linear jitter backoff:
// webhook receivers are typically behind flaky networks and a couple of
// retries avoids dropping reports on transient errors.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Webhook delivers run reports as JSON POSTs.
type Webhook struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWebhook creates a webhook notifier for the given URL.
func NewWebhook(url string, logger *slog.Logger) *Webhook {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Backoff = retryablehttp.LinearJitterBackoff

	// retryablehttp's own logging is off; slog covers it.
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return &Webhook{
		url:        url,
		httpClient: retryClient.StandardClient(),
		logger:     logger.With(slog.String("component", "webhook")),
	}
}

// NotifyRun POSTs the report. Non-2xx responses are errors.
func (w *Webhook) NotifyRun(ctx context.Context, report *Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cronrun")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.logger.Debug("run report delivered",
		slog.String("job", report.Job),
		slog.Int("status", resp.StatusCode),
	)
	return nil
}
