package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/config"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/logger"
)

var (
	errKeyIDRequired  = errors.New("razorpay key id is required")
	errSecretRequired = errors.New("razorpay key secret is required")
)

// Client is a thin wrapper over the Razorpay Orders REST API. There is no
// first-party Go SDK, so the surface the core needs is hand-rolled.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	webhookSig string
	logger     *logger.Logger
}

// Order is the gateway-side order a checkout creates before collecting
// payment. Amount is in minor currency units (paise).
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// CreateOrderParams describes the gateway order to open.
type CreateOrderParams struct {
	AmountPaise int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// NewClient validates credentials and builds the wrapper.
func NewClient(cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errSecretRequired
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		webhookSig: strings.TrimSpace(cfg.SigningSecret()),
		logger:     logg,
	}, nil
}

// CreateOrder opens a gateway order for the payable amount.
func (c *Client) CreateOrder(ctx context.Context, params CreateOrderParams) (*Order, error) {
	if params.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order amount must be positive")
	}
	currency := params.Currency
	if currency == "" {
		currency = "INR"
	}

	body := map[string]any{
		"amount":   params.AmountPaise,
		"currency": currency,
		"receipt":  params.Receipt,
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway order")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment gateway")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.logger != nil {
			ctx = c.logger.WithFields(ctx, map[string]any{
				"gateway_status": resp.StatusCode,
				"gateway_body":   string(raw),
			})
			c.logger.Warn(ctx, "gateway order creation rejected")
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("payment gateway returned %d", resp.StatusCode))
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway order")
	}
	if order.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway order id missing in response")
	}
	return &order, nil
}

// VerifyPaymentSignature checks the HMAC the gateway computes over
// "orderID|paymentID" with the signing secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	secret := c.webhookSig
	if secret == "" {
		secret = c.keySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the HMAC the gateway computes over the
// raw webhook body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(body) == 0 || signature == "" {
		return false
	}
	secret := c.webhookSig
	if secret == "" {
		secret = c.keySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayment mirrors the gateway-side signature; exported for tests and
// sandbox tooling.
func (c *Client) SignPayment(orderID, paymentID string) string {
	secret := c.webhookSig
	if secret == "" {
		secret = c.keySecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
