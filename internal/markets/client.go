package markets

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

	"github.com/rs/zerolog/log"
)

// ErrUpstreamUnavailable marks a wholesale metadata-service failure. This is
// fatal for a reconciliation call: callers must be able to tell "you hold
// nothing" apart from "we could not determine what you hold".
var ErrUpstreamUnavailable = errors.New("market metadata service unavailable")

// ErrMarketNotFound is returned when a ticker resolves to no market
var ErrMarketNotFound = errors.New("market not found")

// Client talks to the prediction-market metadata service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a metadata service client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FilterOutcomeMints asks the classifier which of the candidate mints are
// prediction-market outcome tokens. An empty answer is a normal result, not
// an error: wallets holding no outcome tokens are common.
func (c *Client) FilterOutcomeMints(ctx context.Context, mints []string) ([]string, error) {
	if len(mints) == 0 {
		return nil, nil
	}

	payload := struct {
		Mints []string `json:"mints"`
	}{Mints: mints}

	var result struct {
		OutcomeMints []string `json:"outcome_mints"`
	}
	if err := c.post(ctx, "/api/v1/mints/filter", payload, &result); err != nil {
		return nil, fmt.Errorf("%w: filter mints: %v", ErrUpstreamUnavailable, err)
	}

	return result.OutcomeMints, nil
}

// GetMarketsByMints resolves outcome mints to their owning markets in one
// batched request, keeping external round trips constant regardless of how
// many mints the account holds.
func (c *Client) GetMarketsByMints(ctx context.Context, mints []string) ([]Market, error) {
	if len(mints) == 0 {
		return nil, nil
	}

	payload := struct {
		Mints []string `json:"mints"`
	}{Mints: mints}

	var result struct {
		Markets []Market `json:"markets"`
	}
	if err := c.post(ctx, "/api/v1/markets/by-mints", payload, &result); err != nil {
		return nil, fmt.Errorf("%w: markets by mints: %v", ErrUpstreamUnavailable, err)
	}

	return result.Markets, nil
}

// GetMarketByTicker fetches a single market definition
func (c *Client) GetMarketByTicker(ctx context.Context, ticker string) (*Market, error) {
	var result struct {
		Market *Market `json:"market"`
	}
	if err := c.get(ctx, "/api/v1/markets/"+url.PathEscape(ticker), &result); err != nil {
		return nil, err
	}
	if result.Market == nil {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, ticker)
	}
	return result.Market, nil
}

// GetEventByTicker fetches event display metadata (title, image)
func (c *Client) GetEventByTicker(ctx context.Context, ticker string) (*Event, error) {
	var result struct {
		Event *Event `json:"event"`
	}
	if err := c.get(ctx, "/api/v1/events/"+url.PathEscape(ticker), &result); err != nil {
		return nil, err
	}
	if result.Event == nil {
		return nil, fmt.Errorf("event not found: %s", ticker)
	}
	return result.Event, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		log.Debug().
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Msg("Metadata service returned non-200")
		return fmt.Errorf("metadata service status %d", resp.StatusCode)
	}

	return json.Unmarshal(data, out)
}
