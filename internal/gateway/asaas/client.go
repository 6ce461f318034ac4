// Package asaas is the payment gateway adapter.  It wraps the Asaas REST
// API behind the small surface the booking orchestrator needs: customer
// find-or-create keyed by document number, charge creation, charge status
// lookup and charge cancellation.  The gateway's own lifecycle is a black
// box to the rest of the service; only the returned identifiers, the
// payment link and the native status strings cross this boundary.
package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrGateway wraps every transport or API-level failure from the gateway.
// Callers treat it as retryable.
var ErrGateway = errors.New("payment gateway error")

// Customer is the gateway-side profile a charge is billed to.
type Customer struct {
	Name     string
	Email    string
	Phone    string
	Document string // CPF/CNPJ, the gateway's dedup key
}

// ChargeRequest describes a charge to be created.
type ChargeRequest struct {
	CustomerRef string // gateway customer id from FindOrCreateCustomer
	AmountCents int64
	DueDate     time.Time
	Description string
	ExternalRef string // our reservation code, echoed back in webhooks
}

// Charge is the gateway's view of a created charge.
type Charge struct {
	ID          string // gateway charge id
	Status      string // native status string
	PaymentLink string // hosted checkout URL
}

// Client talks to the Asaas REST API.  The zero value is not usable; use
// NewClient.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a gateway client.  httpClient may be nil, in which case
// a client with a 15 second timeout is used.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

// FindOrCreateCustomer resolves the gateway customer id for a profile,
// creating the customer when no record matches the document number.
func (c *Client) FindOrCreateCustomer(ctx context.Context, cust Customer) (string, error) {
	// The customers listing endpoint filters by cpfCnpj; an existing record
	// is reused so guests never accumulate duplicate gateway profiles.
	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	q := url.Values{"cpfCnpj": {cust.Document}}
	if err := c.do(ctx, http.MethodGet, "/customers?"+q.Encode(), nil, &listing); err != nil {
		return "", err
	}
	if len(listing.Data) > 0 {
		return listing.Data[0].ID, nil
	}

	body := map[string]string{
		"name":        cust.Name,
		"email":       cust.Email,
		"mobilePhone": cust.Phone,
		"cpfCnpj":     cust.Document,
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/customers", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: customer creation returned no id", ErrGateway)
	}
	return created.ID, nil
}

// CreateCharge raises a new charge and returns its gateway id and hosted
// payment link.  Amounts are converted from cents to the decimal value the
// API expects.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := map[string]any{
		"customer":          req.CustomerRef,
		"billingType":       "UNDEFINED", // guest picks pix/boleto/card on the hosted page
		"value":             float64(req.AmountCents) / 100,
		"dueDate":           req.DueDate.Format("2006-01-02"),
		"description":       req.Description,
		"externalReference": req.ExternalRef,
	}
	var out struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		InvoiceURL string `json:"invoiceUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "/payments", body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: charge creation returned no id", ErrGateway)
	}
	return &Charge{ID: out.ID, Status: out.Status, PaymentLink: out.InvoiceURL}, nil
}

// ChargeStatus returns the charge's current native status string.
func (c *Client) ChargeStatus(ctx context.Context, chargeID string) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(chargeID), nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// CancelCharge deletes a charge on the gateway.  It returns true when the
// gateway acknowledged the deletion.
func (c *Client) CancelCharge(ctx context.Context, chargeID string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(ctx, http.MethodDelete, "/payments/"+url.PathEscape(chargeID), nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// do performs one API call.  Mutating requests carry an idempotency key so
// a retried request cannot double-create gateway objects.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrGateway, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)
	if method != http.MethodGet {
		req.Header.Set("asaas-idempotency-key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrGateway, method, path, resp.StatusCode, truncate(payload, 256))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrGateway, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
