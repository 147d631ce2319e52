package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/keyvend/keyvend/internal/model"
)

const (
	// DefaultBaseURL is the public tonapi.io endpoint.
	DefaultBaseURL = "https://tonapi.io"

	// transactionPageSize bounds how far back one check looks.
	transactionPageSize = 50

	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// Client verifies payments by scanning recent incoming transactions on
// the receiving wallet.
type Client struct {
	baseURL    string
	wallet     string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithAPIKey sets a bearer token for authenticated tonapi access.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a tonapi client watching one wallet address.
func NewClient(wallet string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		wallet:  wallet,
		httpClient: &http.Client{
			Timeout: clientTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		logger: logger.With("component", "ton"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type transactionsResponse struct {
	Transactions []transaction `json:"transactions"`
}

type transaction struct {
	InMsg *inMessage `json:"in_msg"`
}

type inMessage struct {
	Value       int64        `json:"value"`
	DecodedBody *decodedBody `json:"decoded_body"`
}

type decodedBody struct {
	Text string `json:"text"`
}

// IsPaid reports whether an incoming transfer carrying the reference as
// its comment, with at least the intended amount, has landed on the
// wallet. It implements the payment checker used by the ledger.
func (c *Client) IsPaid(ctx context.Context, reference string, payment model.PendingPayment) (bool, error) {
	url := fmt.Sprintf("%s/v2/blockchain/accounts/%s/transactions?limit=%d",
		c.baseURL, c.wallet, transactionPageSize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("tonapi: building request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("tonapi: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return false, fmt.Errorf("tonapi: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page transactionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return false, fmt.Errorf("tonapi: decoding response: %w", err)
	}

	want := ToNanoton(payment.Amount)
	for _, tx := range page.Transactions {
		if tx.InMsg == nil || tx.InMsg.DecodedBody == nil {
			continue
		}
		if tx.InMsg.DecodedBody.Text != reference {
			continue
		}
		if tx.InMsg.Value >= want {
			return true, nil
		}
		c.logger.Warn("transfer matched reference but underpaid",
			"reference", reference,
			"got_nanoton", tx.InMsg.Value,
			"want_nanoton", want,
		)
	}
	return false, nil
}
