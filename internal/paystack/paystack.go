package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a thin wrapper over the Paystack REST API: initialize a
// transaction at checkout, verify one when reconciling, and check webhook
// signatures.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

func New(secretKey, baseURL string) *Client {
	return &Client{
		secretKey: secretKey,
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type InitializeRequest struct {
	Email       string `json:"email"`
	AmountKobo  int64  `json:"amount"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	const op = "paystack.Client.Initialize"

	var res InitializeResult
	if err := c.call(ctx, http.MethodPost, "/transaction/initialize", req, &res); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res, nil
}

type VerifyResult struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	AmountKobo      int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
	Currency        string `json:"currency"`
	PaidAt          string `json:"paid_at"`
}

// Paid reports whether the gateway considers the charge settled.
func (v *VerifyResult) Paid() bool { return v.Status == "success" }

func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	const op = "paystack.Client.Verify"

	var res VerifyResult
	if err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &res); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response (http %d): %w", resp.StatusCode, err)
	}

	if !env.Status {
		return fmt.Errorf("paystack: %s (http %d)", env.Message, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}

	return nil
}

// ValidSignature checks the x-paystack-signature header: HMAC-SHA512 of the
// raw body keyed with the secret.
func (c *Client) ValidSignature(body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookEvent is the subset of the webhook payload the service consumes.
type WebhookEvent struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

type WebhookData struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	AmountKobo      int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
}

const EventChargeSuccess = "charge.success"
