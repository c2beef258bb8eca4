// Package payment talks to the Telr hosted payment page API.
package payment

import (
	"bytes"
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultAPIURL = "https://secure.telr.com/gateway/order.json"

var (
	ErrNotConfigured      = errors.New("telr store id and auth key are required")
	ErrInvalidCredentials = errors.New("telr rejected the store credentials")
)

// Credentials identify the merchant store. They come from payment settings.
type Credentials struct {
	StoreID string
	AuthKey string
	Test    bool
}

func (c Credentials) validate() (int, error) {
	storeID, err := strconv.Atoi(strings.TrimSpace(c.StoreID))
	if err != nil || storeID <= 0 || c.AuthKey == "" {
		return 0, ErrNotConfigured
	}
	return storeID, nil
}

// Customer is the billing party shown on the hosted page.
type Customer struct {
	Name     string
	Email    string
	Phone    string
	Line1    string
	Line2    string
	City     string
	Region   string
	Country  string
	Postcode string
}

type PaymentRequest struct {
	CartID      string
	Amount      string
	Currency    string
	Description string
	Customer    Customer

	AuthorisedURL string
	DeclinedURL   string
	CancelledURL  string
}

// PaymentPage is where the customer is redirected to pay.
type PaymentPage struct {
	URL string `json:"payment_url"`
	Ref string `json:"order_ref"`
}

// telrResponse represents Telr response
type telrResponse struct {
	Method string `json:"method"`
	Order  *struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	} `json:"order"`
	Error *struct {
		Message string `json:"message"`
		Note    string `json:"note"`
	} `json:"error,omitempty"`
}

type Client struct {
	apiURL string
	http   *http.Client
}

func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{apiURL: apiURL, http: &http.Client{Timeout: 15 * time.Second}}
}

// CreatePayment sends request to Telr and returns payment URL & order reference
func (c *Client) CreatePayment(ctx context.Context, creds Credentials, req PaymentRequest) (*PaymentPage, error) {
	storeID, err := creds.validate()
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"method":  "create",
		"store":   storeID,
		"authkey": creds.AuthKey,
		"order": map[string]interface{}{
			"cartid":      req.CartID,
			"test":        testFlag(creds.Test),
			"amount":      req.Amount,
			"currency":    req.Currency,
			"description": req.Description,
		},
		"customer": map[string]interface{}{
			"name":  req.Customer.Name,
			"email": req.Customer.Email,
			"phone": req.Customer.Phone,
			"address": map[string]string{
				"line1":    req.Customer.Line1,
				"line2":    req.Customer.Line2,
				"city":     req.Customer.City,
				"region":   req.Customer.Region,
				"country":  req.Customer.Country,
				"postcode": req.Customer.Postcode,
			},
		},
		"return": map[string]string{
			"authorised": req.AuthorisedURL,
			"declined":   req.DeclinedURL,
			"cancelled":  req.CancelledURL,
		},
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("telr error: %s", resp.Error.Message)
	}
	if resp.Order == nil || resp.Order.URL == "" {
		return nil, errors.New("telr returned empty payment URL")
	}
	slog.Info("telr payment created", "cart_id", req.CartID, "ref", resp.Order.Ref)
	return &PaymentPage{URL: resp.Order.URL, Ref: resp.Order.Ref}, nil
}

// TestConnection issues a "check" for a reference that cannot exist. Telr
// answers authentication problems with a store/authkey error; any other reply
// means the endpoint is reachable and the credentials were accepted.
func (c *Client) TestConnection(ctx context.Context, creds Credentials) error {
	storeID, err := creds.validate()
	if err != nil {
		return err
	}
	payload := map[string]interface{}{
		"method":  "check",
		"store":   storeID,
		"authkey": creds.AuthKey,
		"order":   map[string]string{"ref": "connection-test"},
	}
	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	if resp.Error != nil && isAuthFailure(resp.Error.Message+" "+resp.Error.Note) {
		return ErrInvalidCredentials
	}
	return nil
}

func isAuthFailure(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "authkey") ||
		strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "store")
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (*telrResponse, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode telr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build telr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach Telr: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read telr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telr API error (%d): %s", resp.StatusCode, string(body))
	}

	var out telrResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse Telr response: %w", err)
	}
	return &out, nil
}

func testFlag(test bool) int {
	if test {
		return 1
	}
	return 0
}

// signedFields is the order of transaction fields in a webhook tran_check hash.
var signedFields = []string{
	"tran_store", "tran_type", "tran_class", "tran_test", "tran_ref",
	"tran_prevref", "tran_firstref", "tran_order", "tran_currency",
	"tran_amount", "tran_cartid", "tran_desc", "tran_status",
	"tran_authcode", "tran_authmessage",
}

// Sign computes the tran_check value for a webhook form.
func Sign(secret string, form url.Values) string {
	parts := make([]string, 0, len(signedFields)+1)
	parts = append(parts, secret)
	for _, f := range signedFields {
		parts = append(parts, strings.TrimSpace(form.Get(f)))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether form carries a valid tran_check for secret.
func VerifySignature(secret string, form url.Values) bool {
	provided := strings.ToLower(strings.TrimSpace(form.Get("tran_check")))
	if provided == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sign(secret, form)), []byte(provided)) == 1
}

// Webhook is the subset of a Telr transaction notification the API acts on.
type Webhook struct {
	CartID   string
	Ref      string
	Status   string // "A" authorised, "H" on hold, "D" declined, "C" cancelled, "E" error
	Amount   string
	Currency string
}

func ParseWebhook(form url.Values) (Webhook, error) {
	w := Webhook{
		CartID:   strings.TrimSpace(form.Get("tran_cartid")),
		Ref:      strings.TrimSpace(form.Get("tran_ref")),
		Status:   strings.ToUpper(strings.TrimSpace(form.Get("tran_status"))),
		Amount:   strings.TrimSpace(form.Get("tran_amount")),
		Currency: strings.TrimSpace(form.Get("tran_currency")),
	}
	if w.CartID == "" {
		return Webhook{}, errors.New("missing tran_cartid")
	}
	return w, nil
}

// Approved reports whether the transaction was authorised.
func (w Webhook) Approved() bool {
	return w.Status == "A"
}
