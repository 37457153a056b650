package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"tondealbot/internal/util"
)

// Client is a thin TonAPI v2 HTTP client covering the account and
// transaction lookups the payment flow needs.
type Client struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(base, token string, timeout time.Duration) *Client {
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
		// TonAPI free tier allows ~1 rps sustained.
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
}

// Account is the subset of the TonAPI account object we read.
type Account struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
}

// Transaction is the subset of a TonAPI blockchain transaction we read.
type Transaction struct {
	Hash  string   `json:"hash"`
	UTime int64    `json:"utime"`
	InMsg *Message `json:"in_msg"`
}

// Message is an inbound message attached to a transaction.
type Message struct {
	Value         int64           `json:"value"`
	DecodedOpName string          `json:"decoded_op_name"`
	DecodedBody   json.RawMessage `json:"decoded_body"`
}

// Comment extracts the plain-text transfer comment, if any.
func (m *Message) Comment() string {
	if m == nil || m.DecodedOpName != "text_comment" {
		return ""
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(m.DecodedBody, &body); err != nil {
		return ""
	}
	return body.Text
}

// AccountInfo fetches account state, retrying alternate address forms.
func (c *Client) AccountInfo(ctx context.Context, addr string) (*Account, error) {
	var lastErr error
	for _, form := range AddressForms(addr) {
		var acc Account
		err := c.getJSON(ctx, fmt.Sprintf("/accounts/%s", url.PathEscape(form)), &acc)
		if err == nil {
			return &acc, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("account info for %s: %w", addr, lastErr)
}

// IncomingTransactions returns recent transactions for the address, newest
// first, retrying alternate address forms until one yields data.
func (c *Client) IncomingTransactions(ctx context.Context, addr string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	var lastErr error
	for _, form := range AddressForms(addr) {
		var out struct {
			Transactions []Transaction `json:"transactions"`
		}
		path := fmt.Sprintf("/blockchain/accounts/%s/transactions?limit=%d", url.PathEscape(form), limit)
		err := c.getJSON(ctx, path, &out)
		if err == nil && len(out.Transactions) > 0 {
			return out.Transactions, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("transactions for %s: %w", addr, lastErr)
	}
	return nil, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	return util.RetryWithBackoff(ctx, 2, 500*time.Millisecond, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("tonapi status %s: %s", resp.Status, string(body))
		}
		return json.Unmarshal(body, dst)
	})
}

// BuildTransferURL renders a ton://transfer deep link with the amount in
// nanoTON and an optional comment.
func BuildTransferURL(toAddress string, amountTON float64, comment string) string {
	nano := int64(math.Round(amountTON * 1e9))
	link := fmt.Sprintf("ton://transfer/%s?amount=%d", toAddress, nano)
	if comment != "" {
		link += "&text=" + url.QueryEscape(comment)
	}
	return link
}
