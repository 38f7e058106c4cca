package invoicing

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

const defaultInvoicingAPIBaseURL = "https://api.invoicing.example.com/v1"

// Client talks to the invoicing service's REST API and implements Gateway.
type Client struct {
	APIBaseURL string
	APIKey     string

	HTTPClient *http.Client
}

var _ Gateway = (*Client)(nil)

func NewClientFromEnv() *Client {
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("INVOICING_API_BASE_URL", defaultInvoicingAPIBaseURL), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("INVOICING_API_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// rawParty / rawInvoice are the wire shapes; they are translated to the
// typed Gateway structs immediately on receipt.
type rawParty struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type rawInvoice struct {
	ID          string     `json:"id"`
	PartyID     string     `json:"party_id"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	TotalMinor  int64      `json:"total_minor"`
	Currency    string     `json:"currency"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (r rawParty) toParty() *Party {
	return &Party{
		ID:    strings.TrimSpace(r.ID),
		Name:  r.Name,
		Email: r.Email,
	}
}

func (r rawInvoice) toInvoice() Invoice {
	return Invoice{
		ID:          strings.TrimSpace(r.ID),
		PartyID:     r.PartyID,
		Reference:   r.Reference,
		Status:      strings.ToLower(strings.TrimSpace(r.Status)),
		TotalMinor:  r.TotalMinor,
		Currency:    strings.ToUpper(strings.TrimSpace(r.Currency)),
		Description: r.Description,
		DueDate:     r.DueDate,
		PaidAt:      r.PaidAt,
		CreatedAt:   r.CreatedAt,
	}
}

func (c *Client) CreateParty(ctx context.Context, profile PartyProfile) (*Party, error) {
	if strings.TrimSpace(profile.Email) == "" {
		return nil, errors.New("party email is required")
	}

	body := map[string]string{
		"name":  profile.Name,
		"email": profile.Email,
		"phone": profile.Phone,
	}
	var raw rawParty
	if err := c.do(ctx, http.MethodPost, "/parties", body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("invoicing party response missing id")
	}
	return raw.toParty(), nil
}

// FindPartyByEmail returns (nil, nil) when no party matches.
func (c *Client) FindPartyByEmail(ctx context.Context, email string) (*Party, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errors.New("email is required")
	}

	var raw struct {
		Parties []rawParty `json:"parties"`
	}
	path := "/parties?" + url.Values{"email": {email}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw.Parties) == 0 {
		return nil, nil
	}
	return raw.Parties[0].toParty(), nil
}

func (c *Client) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if strings.TrimSpace(in.PartyID) == "" {
		return nil, errors.New("party id is required")
	}
	if len(in.LineItems) == 0 {
		return nil, errors.New("at least one line item is required")
	}

	type rawLineItem struct {
		Name            string `json:"name"`
		Quantity        int    `json:"quantity"`
		UnitAmountMinor int64  `json:"unit_amount_minor"`
	}
	items := make([]rawLineItem, 0, len(in.LineItems))
	for _, li := range in.LineItems {
		items = append(items, rawLineItem{
			Name:            li.Name,
			Quantity:        li.Quantity,
			UnitAmountMinor: li.UnitAmountMinor,
		})
	}

	body := map[string]interface{}{
		"party_id":   in.PartyID,
		"reference":  in.Reference,
		"currency":   in.Currency,
		"line_items": items,
	}
	if in.DueDate != nil {
		body["due_date"] = in.DueDate.Format(time.RFC3339)
	}

	var raw rawInvoice
	if err := c.do(ctx, http.MethodPost, "/invoices", body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == "" {
		return nil, errors.New("invoice response missing id")
	}
	inv := raw.toInvoice()
	return &inv, nil
}

func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, errors.New("invoice id is required")
	}

	var raw rawInvoice
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(invoiceID), nil, &raw); err != nil {
		return nil, err
	}
	inv := raw.toInvoice()
	return &inv, nil
}

func (c *Client) ListInvoices(ctx context.Context, partyID string) ([]Invoice, error) {
	partyID = strings.TrimSpace(partyID)
	if partyID == "" {
		return nil, errors.New("party id is required")
	}

	var raw struct {
		Invoices []rawInvoice `json:"invoices"`
	}
	path := "/invoices?" + url.Values{"party_id": {partyID}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Invoice, 0, len(raw.Invoices))
	for _, ri := range raw.Invoices {
		out = append(out, ri.toInvoice())
	}
	return out, nil
}

func (c *Client) UpdateInvoiceStatus(ctx context.Context, invoiceID, status string) error {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return errors.New("invoice id is required")
	}

	body := map[string]string{"status": strings.ToLower(strings.TrimSpace(status))}
	return c.do(ctx, http.MethodPut, "/invoices/"+url.PathEscape(invoiceID)+"/status", body, nil)
}

func (c *Client) GetInvoiceDocumentURL(ctx context.Context, invoiceID string) (*string, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return nil, errors.New("invoice id is required")
	}

	var raw struct {
		DocumentURL *string `json:"document_url"`
	}
	if err := c.do(ctx, http.MethodGet, "/invoices/"+url.PathEscape(invoiceID)+"/document", nil, &raw); err != nil {
		return nil, err
	}
	if raw.DocumentURL == nil || strings.TrimSpace(*raw.DocumentURL) == "" {
		// Document generation is asynchronous on the remote side.
		return nil, nil
	}
	return raw.DocumentURL, nil
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
		return fmt.Errorf("invoicing request %s %s failed: status=%d body=%s", method, path, resp.StatusCode, string(respBody))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
