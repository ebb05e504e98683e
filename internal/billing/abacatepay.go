package billing

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DukeRupert/mundo/internal/domain"
)

// DefaultAbacatePayURL is the production API base.
const DefaultAbacatePayURL = "https://api.abacatepay.com/v1"

// DefaultPixTimeout bounds a single gateway call.
const DefaultPixTimeout = 10 * time.Second

// pixExpiresIn is how long a PIX code stays payable, in seconds.
const pixExpiresIn = 3600

// ErrPixGateway is returned for any failed PIX gateway call: transport
// errors, timeouts, non-200 responses and unreadable bodies.
var ErrPixGateway = errors.New("pix gateway unavailable")

// PixGateway creates PIX charges.
type PixGateway interface {
	CreatePixCharge(ctx context.Context, req PixChargeRequest) (*PixCharge, error)
}

// PixChargeRequest describes a PIX QR code to create.
type PixChargeRequest struct {
	ExternalID     string // Our billing id
	UserID         string
	Plan           domain.Plan
	AmountCentavos int64
	CustomerName   string
	CustomerEmail  string
}

// PixCharge is a created PIX charge.
type PixCharge struct {
	ID           string
	Status       string
	BRCode       string // Copy-and-paste code
	BRCodeBase64 string // QR code image as a data URI
}

// AbacatePayConfig configures the AbacatePay client.
type AbacatePayConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// AbacatePayClient talks to the AbacatePay REST API.
type AbacatePayClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAbacatePayClient creates a client. BaseURL and Timeout default to the
// production API and DefaultPixTimeout.
func NewAbacatePayClient(cfg AbacatePayConfig) *AbacatePayClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAbacatePayURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPixTimeout
	}
	return &AbacatePayClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type pixCustomer struct {
	Name      string `json:"name"`
	Cellphone string `json:"cellphone,omitempty"`
	Email     string `json:"email"`
	TaxID     string `json:"taxId,omitempty"`
}

type pixCreateRequest struct {
	Amount      int64             `json:"amount"`
	ExpiresIn   int               `json:"expiresIn"`
	Description string            `json:"description"`
	Customer    pixCustomer       `json:"customer"`
	Metadata    map[string]string `json:"metadata"`
}

type pixCreateResponse struct {
	Data *struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		BRCode       string `json:"brCode"`
		BRCodeBase64 string `json:"brCodeBase64"`
	} `json:"data"`
	Error any `json:"error"`
}

// CreatePixCharge calls POST /pixQrCode/create. Every failure wraps
// ErrPixGateway; there are no retries.
func (c *AbacatePayClient) CreatePixCharge(ctx context.Context, r PixChargeRequest) (*PixCharge, error) {
	body, err := json.Marshal(pixCreateRequest{
		Amount:      r.AmountCentavos,
		ExpiresIn:   pixExpiresIn,
		Description: "Plano " + strings.ToUpper(string(r.Plan)),
		Customer: pixCustomer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
		},
		Metadata: map[string]string{
			"externalId": r.ExternalID,
			"user_id":    r.UserID,
			"plan":       string(r.Plan),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal pix request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pixQrCode/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build pix request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPixGateway, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPixGateway, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrPixGateway, resp.StatusCode)
	}

	var out pixCreateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPixGateway, err)
	}
	if out.Data == nil || out.Data.BRCode == "" {
		return nil, fmt.Errorf("%w: response without pix data", ErrPixGateway)
	}

	return &PixCharge{
		ID:           out.Data.ID,
		Status:       out.Data.Status,
		BRCode:       out.Data.BRCode,
		BRCodeBase64: out.Data.BRCodeBase64,
	}, nil
}

var _ PixGateway = (*AbacatePayClient)(nil)

// =============================================================================
// Webhooks
// =============================================================================

// ErrMalformedPixWebhook is returned for payloads that cannot be reconciled.
var ErrMalformedPixWebhook = errors.New("malformed abacatepay webhook")

type pixWebhook struct {
	ID    string `json:"id"`
	Event string `json:"event"`
	Data  struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParsePixWebhook decodes an AbacatePay notification. Deliveries without an
// event id are deduplicated on event type plus billing id.
func ParsePixWebhook(body []byte) (*domain.PixEvent, error) {
	var w pixWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPixWebhook, err)
	}
	if w.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing billing id", ErrMalformedPixWebhook)
	}
	if w.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedPixWebhook)
	}

	id := w.ID
	if id == "" {
		id = w.Event + ":" + w.Data.ID
	}
	return &domain.PixEvent{
		Event: domain.EventRef{
			Provider: domain.ProviderAbacatePay,
			ID:       id,
			Type:     w.Event,
			Payload:  json.RawMessage(body),
		},
		BillingID: w.Data.ID,
	}, nil
}

// VerifyPixWebhookSecret compares the secret sent with a webhook against
// the configured one in constant time. An empty expected secret disables
// the check.
func VerifyPixWebhookSecret(provided, expected string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
