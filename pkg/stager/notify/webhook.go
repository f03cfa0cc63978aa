package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/stager/internal/logger"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// secret is configured.
const SignatureHeader = "X-Stager-Signature"

// callbackPlaceholder in a webhook URL is replaced by the task's callback id.
const callbackPlaceholder = "{callback_id}"

// WebhookConfig configures the webhook notifier.
type WebhookConfig struct {
	// URL receives a POST per notification. It may contain {callback_id}.
	URL string `mapstructure:"url" validate:"omitempty,url" yaml:"url"`

	// Timeout bounds each delivery. Default: 10s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Secret signs each body when set.
	Secret string `mapstructure:"secret" yaml:"secret,omitempty"`

	// Headers are added to every request.
	Headers map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
}

// WebhookNotifier POSTs notifications as JSON.
type WebhookNotifier struct {
	config     WebhookConfig
	httpClient *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook notifier requires a url")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (*WebhookNotifier) Type() string { return "webhook" }

// target returns the delivery URL for a callback id.
func (w *WebhookNotifier) target(callbackID string) string {
	return strings.ReplaceAll(w.config.URL, callbackPlaceholder, url.PathEscape(callbackID))
}

// Sign returns the signature of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (w *WebhookNotifier) Notify(ctx context.Context, n TaskNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	target := w.target(n.CallbackID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}
	if w.config.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(w.config.Secret, body))
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}

	logger.DebugCtx(ctx, "Webhook delivered",
		logger.KeyTaskID, n.TaskID,
		logger.KeyCallbackID, n.CallbackID,
		logger.KeyHTTPStatus, resp.StatusCode)
	return nil
}
