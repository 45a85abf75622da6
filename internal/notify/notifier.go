// Package notify implements best-effort outbound delivery: result uploads to
// pre-signed destinations and status webhooks. Failures are logged and
// reported as a boolean outcome, never escalated to the job itself.
package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/book-expert/logger"
)

// Default bounded timeouts for outbound calls.
const (
	DefaultUploadTimeout  = 5 * time.Minute
	DefaultWebhookTimeout = 30 * time.Second
)

// Query parameter names appended to callback URLs.
const (
	paramStatus       = "status"
	paramErrorMessage = "error_message"
)

const maxErrorBodyBytes = 2048

// Notifier issues uploads and status webhooks with bounded timeouts. It never
// retries; callers decide whether a false outcome matters.
type Notifier struct {
	uploadClient  *http.Client
	webhookClient *http.Client
	log           *logger.Logger
}

// New creates a Notifier. Non-positive timeouts fall back to the defaults.
func New(uploadTimeout, webhookTimeout time.Duration, log *logger.Logger) *Notifier {
	if uploadTimeout <= 0 {
		uploadTimeout = DefaultUploadTimeout
	}

	if webhookTimeout <= 0 {
		webhookTimeout = DefaultWebhookTimeout
	}

	return &Notifier{
		uploadClient:  &http.Client{Timeout: uploadTimeout},
		webhookClient: &http.Client{Timeout: webhookTimeout},
		log:           log,
	}
}

// UploadResult transfers data to a pre-signed destination URL via HTTP PUT.
// Success is any 2xx response. Transport and status errors return false.
func (n *Notifier) UploadResult(ctx context.Context, destination string, data []byte, contentType string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, destination, bytes.NewReader(data))
	if err != nil {
		n.log.Error("Upload request for %s could not be built: %v", destination, err)

		return false
	}

	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	resp, err := n.uploadClient.Do(req)
	if err != nil {
		n.log.Error("Upload to %s failed: %v", destination, err)

		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		n.log.Error("Upload to %s returned %s: %s", destination, resp.Status, string(body))

		return false
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return true
}

// NotifyStatus posts a status webhook to callbackURL with status and, when
// non-empty, error_message merged into the query string. Pre-existing query
// parameters other than those two pass through unchanged; status and
// error_message are always overwritten, never duplicated.
func (n *Notifier) NotifyStatus(ctx context.Context, callbackURL, status, errorMessage string) bool {
	target, err := mergeStatusQuery(callbackURL, status, errorMessage)
	if err != nil {
		n.log.Error("Callback URL %q is not usable: %v", callbackURL, err)

		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		n.log.Error("Webhook request for %s could not be built: %v", target, err)

		return false
	}

	resp, err := n.webhookClient.Do(req)
	if err != nil {
		n.log.Error("Webhook to %s failed: %v", target, err)

		return false
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		n.log.Error("Webhook to %s returned %s", target, resp.Status)

		return false
	}

	return true
}

func mergeStatusQuery(callbackURL, status, errorMessage string) (string, error) {
	parsed, err := url.Parse(callbackURL)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	query.Set(paramStatus, status)

	if errorMessage != "" {
		query.Set(paramErrorMessage, errorMessage)
	} else {
		query.Del(paramErrorMessage)
	}

	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
