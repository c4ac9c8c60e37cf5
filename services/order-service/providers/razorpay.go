package providers

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
)

const razorpayBaseURL = "https://api.razorpay.com"

// RazorpayGateway implements PaymentGateway against the Razorpay REST API.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// NewRazorpayGateway creates a gateway client. An empty baseURL means production.
func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration) *RazorpayGateway {
	if baseURL == "" {
		baseURL = razorpayBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ---- Razorpay API request/response structs ----

type razorpayOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PaymentCapture int    `json:"payment_capture"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPaymentResponse struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
	Method string `json:"method"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// ---- PaymentGateway implementation ----

func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateIntent creates a Razorpay order with automatic capture. Any failure
// is reported as ErrGatewayUnavailable; nothing is retried here.
func (g *RazorpayGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*PaymentIntent, error) {
	if amountMinor <= 0 {
		return nil, fmt.Errorf("razorpay CreateIntent: amount must be positive, got %d", amountMinor)
	}

	reqBody := razorpayOrderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		Receipt:        receipt,
		PaymentCapture: 1,
	}

	var resp razorpayOrderResponse
	if err := g.doRequest(ctx, http.MethodPost, "/v1/orders", reqBody, &resp); err != nil {
		return nil, fmt.Errorf("razorpay CreateIntent: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("razorpay CreateIntent: %w: response has no order id", ErrGatewayUnavailable)
	}

	return &PaymentIntent{
		ProviderOrderID: resp.ID,
		AmountMinor:     resp.Amount,
		Currency:        resp.Currency,
		Receipt:         resp.Receipt,
		Status:          resp.Status,
	}, nil
}

// VerifySignature checks hex(HMAC-SHA256(order_id|payment_id, key_secret))
// in constant time. It never panics and treats any problem as a mismatch.
func (g *RazorpayGateway) VerifySignature(ctx context.Context, providerOrderID, providerPaymentID, signature string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if providerOrderID == "" || providerPaymentID == "" || signature == "" || g.keySecret == "" {
		return ErrSignatureMismatch
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return ErrSignatureMismatch
	}
	if !hmac.Equal(got, Sign(g.keySecret, providerOrderID, providerPaymentID)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the raw callback signature for an order/payment pair.
func Sign(keySecret, providerOrderID, providerPaymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return mac.Sum(nil)
}

// FetchPayment reads the payment's status, method and captured amount.
func (g *RazorpayGateway) FetchPayment(ctx context.Context, providerPaymentID string) (*PaymentDetails, error) {
	var resp razorpayPaymentResponse
	path := "/v1/payments/" + url.PathEscape(providerPaymentID)
	if err := g.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("razorpay FetchPayment: %w", err)
	}
	return &PaymentDetails{
		ProviderPaymentID: resp.ID,
		Status:            resp.Status,
		Method:            resp.Method,
		AmountMinor:       resp.Amount,
	}, nil
}

// ---- HTTP helper ----

func (g *RazorpayGateway) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr razorpayErrorResponse
		_ = json.Unmarshal(respBytes, &apiErr)
		return fmt.Errorf("%w: status %d: %s %s", ErrGatewayUnavailable, resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
		}
	}
	return nil
}
