package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/svillega/lastbite-backend/pkg/config"
	pkgerrors "github.com/svillega/lastbite-backend/pkg/errors"
	"github.com/svillega/lastbite-backend/pkg/logger"
)

var (
	errBaseURLRequired       = errors.New("gateway base url is required")
	errAPIKeyRequired        = errors.New("gateway api key is required")
	errWebhookSecretRequired = errors.New("gateway webhook secret is required")
	errLoggerRequired        = errors.New("gateway logger is required")
)

type httpDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the payment provider over its REST surface, with
// centralized auth, logging, idempotency keys, and error mapping. Callers
// must treat CreateCheckout as non-idempotent: a transport failure after the
// request was sent is ambiguous and compensated as "not created".
type Client struct {
	httpClient    httpDoer
	baseURL       string
	apiKey        string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient validates credentials and builds the provider client. A missing
// webhook secret is a startup failure, never a runtime bypass.
func NewClient(ctx context.Context, cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "gateway client initialized")
	return c, nil
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// VerifySignature checks a webhook signature against the configured secret.
func (c *Client) VerifySignature(body []byte, header string) bool {
	if c == nil {
		return false
	}
	return VerifySignature(body, header, c.webhookSecret)
}

// NewIdempotencyKey returns a unique key for provider operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "lb"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

type createCheckoutRequest struct {
	AmountCents    int               `json:"amount_cents"`
	Currency       string            `json:"currency"`
	Reference      string            `json:"reference"`
	SuccessURL     string            `json:"success_url"`
	CancelURL      string            `json:"cancel_url"`
	FailureURL     string            `json:"failure_url"`
	BuyerEmail     string            `json:"buyer_email,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key"`
}

// CreateCheckout opens a checkout session with the provider and returns the
// session handle plus the redirect URL for the buyer's browser.
func (c *Client) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body := createCheckoutRequest{
		AmountCents:    params.AmountCents,
		Currency:       params.Currency.String(),
		Reference:      params.OrderRef,
		SuccessURL:     params.RedirectTargets.SuccessURL,
		CancelURL:      params.RedirectTargets.CancelURL,
		FailureURL:     params.RedirectTargets.FailureURL,
		BuyerEmail:     params.BuyerEmail,
		Metadata:       params.Metadata,
		IdempotencyKey: c.ensureIdempotencyKey("checkout.create", params.IdempotencyKey),
	}
	c.log(ctx, "request", "create_checkout", map[string]any{
		"reference": params.OrderRef,
		"amount":    params.AmountCents,
		"currency":  params.Currency.String(),
	})

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", body, &session); err != nil {
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, err
	}
	if session.SessionID == "" || session.RedirectURL == "" {
		err := pkgerrors.New(pkgerrors.CodeDependency, "gateway returned incomplete checkout session")
		c.log(ctx, "error", "create_checkout", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_checkout", map[string]any{"session_id": session.SessionID})
	return &session, nil
}

// GetCheckoutStatus polls the provider for a session's normalized status.
func (c *Client) GetCheckoutStatus(ctx context.Context, sessionID string) (*StatusResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	c.log(ctx, "request", "get_checkout_status", map[string]any{"session_id": sessionID})

	var result StatusResult
	path := "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		c.log(ctx, "error", "get_checkout_status", map[string]any{"error": err.Error()})
		return nil, err
	}
	switch result.Status {
	case CheckoutStatusSucceeded, CheckoutStatusFailed, CheckoutStatusPending:
	default:
		err := pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway returned unknown status %q", result.Status))
		c.log(ctx, "error", "get_checkout_status", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "get_checkout_status", map[string]any{
		"session_id": sessionID,
		"status":     string(result.Status),
	})
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapStatusError(resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func (c *Client) mapStatusError(status int, payload []byte) error {
	var remote struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &remote)
	msg := strings.TrimSpace(remote.Message)
	if msg == "" {
		msg = http.StatusText(status)
	}

	code := pkgerrors.CodeDependency
	switch status {
	case http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
	case http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case http.StatusConflict:
		code = pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		code = pkgerrors.CodeRateLimit
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, fmt.Sprintf("gateway error (%d): %s", status, msg))
}

func (c *Client) ensureIdempotencyKey(prefix, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return c.NewIdempotencyKey(prefix)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("gateway %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("gateway %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
