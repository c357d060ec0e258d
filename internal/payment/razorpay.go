package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"shophub/internal/apperr"
	"shophub/internal/config"

	"github.com/shopspring/decimal"
)

// IntentRequest asks the provider to open a payment intent.
type IntentRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string // idempotency key, fresh per attempt
}

// Intent is a provider tracked payment request.
type Intent struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway opens remote payment intents.
type Gateway interface {
	OpenIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// RazorpayClient talks to the Razorpay Orders API.
type RazorpayClient struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
}

// NewRazorpayClient builds a client from the payment configuration. The HTTP client timeout
// is the configured gateway timeout, so a hung provider cannot hold a request forever.
func NewRazorpayClient(cfg config.Payment) *RazorpayClient {
	return &RazorpayClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
	}
}

// MinorUnits converts an amount to the provider's integer minor unit (paise for INR).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// OpenIntent creates a Razorpay order. Every failure is reported as ErrGatewayUnavailable.
func (c *RazorpayClient) OpenIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	payload := map[string]interface{}{
		"amount":   MinorUnits(req.Amount),
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal order request: %v", apperr.ErrGatewayUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperr.ErrGatewayUnavailable, err)
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create order: %v", apperr.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", apperr.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var rpErr razorpayError
		_ = json.Unmarshal(raw, &rpErr)
		return nil, fmt.Errorf("%w: razorpay status %d: %s", apperr.ErrGatewayUnavailable, resp.StatusCode, rpErr.Error.Description)
	}

	var intent Intent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", apperr.ErrGatewayUnavailable, err)
	}
	if intent.ID == "" {
		return nil, fmt.Errorf("%w: razorpay returned no order id", apperr.ErrGatewayUnavailable)
	}
	log.Printf("Opened razorpay order %s for receipt %s in %s", intent.ID, req.Receipt, time.Since(start))
	return &intent, nil
}
