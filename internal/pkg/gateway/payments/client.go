package payments

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

	"github.com/ledgerlink/ledgerlink/internal/pkg/env"
)

const defaultPaymentsAPIBaseURL = "https://api.payments.example.com/v1"

// Client talks to the payment provider's REST API and implements Gateway.
type Client struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

var _ Gateway = (*Client)(nil)

func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("PAYMENTS_API_BASE_URL", defaultPaymentsAPIBaseURL), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("PAYMENTS_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type rawMandate struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

type rawPayment struct {
	ID          string     `json:"id"`
	MandateID   string     `json:"mandate_id"`
	AmountMinor int64      `json:"amount_minor"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Reference   string     `json:"reference"`
	Description string     `json:"description"`
	ChargedAt   *time.Time `json:"charged_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (r rawMandate) toMandate() *Mandate {
	return &Mandate{
		ID:        strings.TrimSpace(r.ID),
		Status:    strings.ToLower(strings.TrimSpace(r.Status)),
		Reference: r.Reference,
		CreatedAt: r.CreatedAt,
	}
}

func (r rawPayment) toPayment() Payment {
	return Payment{
		ID:          strings.TrimSpace(r.ID),
		MandateID:   r.MandateID,
		AmountMinor: r.AmountMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(r.Currency)),
		Status:      strings.ToLower(strings.TrimSpace(r.Status)),
		Reference:   r.Reference,
		Description: r.Description,
		ChargedAt:   r.ChargedAt,
		CreatedAt:   r.CreatedAt,
	}
}

func (c *Client) CreateMandate(ctx context.Context, in CreateMandateInput) (*Mandate, error) {
	if strings.TrimSpace(in.CustomerEmail) == "" {
		return nil, errors.New("customer email is required")
	}

	body := map[string]string{
		"customer_name":  in.CustomerName,
		"customer_email": in.CustomerEmail,
		"reference":      in.Reference,
	}
	var raw rawMandate
	if err := c.do(ctx, http.MethodPost, "/mandates", body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("mandate response missing id")
	}
	return raw.toMandate(), nil
}

func (c *Client) GetMandate(ctx context.Context, mandateID string) (*Mandate, error) {
	mandateID = strings.TrimSpace(mandateID)
	if mandateID == "" {
		return nil, errors.New("mandate id is required")
	}

	var raw rawMandate
	if err := c.do(ctx, http.MethodGet, "/mandates/"+url.PathEscape(mandateID), nil, &raw); err != nil {
		return nil, err
	}
	return raw.toMandate(), nil
}

func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentInput) (*Payment, error) {
	if strings.TrimSpace(in.MandateID) == "" {
		return nil, errors.New("mandate id is required")
	}
	if in.AmountMinor <= 0 {
		return nil, errors.New("amount must be positive")
	}

	body := map[string]interface{}{
		"mandate_id":   in.MandateID,
		"amount_minor": in.AmountMinor,
		"currency":     strings.ToUpper(strings.TrimSpace(in.Currency)),
		"reference":    in.Reference,
		"description":  in.Description,
	}
	var raw rawPayment
	if err := c.do(ctx, http.MethodPost, "/payments", body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("payment response missing id")
	}
	p := raw.toPayment()
	return &p, nil
}

func (c *Client) ListPayments(ctx context.Context, mandateID string) ([]Payment, error) {
	mandateID = strings.TrimSpace(mandateID)
	if mandateID == "" {
		return nil, errors.New("mandate id is required")
	}

	var raw struct {
		Payments []rawPayment `json:"payments"`
	}
	path := "/payments?" + url.Values{"mandate_id": {mandateID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Payment, 0, len(raw.Payments))
	for _, rp := range raw.Payments {
		out = append(out, rp.toPayment())
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.APIBaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("payments request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
