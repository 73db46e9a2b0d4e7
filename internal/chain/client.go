package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TokenBalance is one fungible-token holding of an account
type TokenBalance struct {
	Mint      string
	RawAmount uint64
	Decimals  uint8
	UIAmount  decimal.Decimal
}

// Client is a minimal JSON-RPC client for the ledger node
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// NewClient creates a new ledger RPC client
func NewClient(rpcURL string, timeout time.Duration) *Client {
	return &Client{
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Wire shape of getTokenAccountsByOwner with jsonParsed encoding

type tokenAccountsResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Error   *rpcError `json:"error"`
	Result  struct {
		Value []struct {
			Pubkey  string `json:"pubkey"`
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount         string  `json:"amount"`
								Decimals       uint8   `json:"decimals"`
								UIAmountString string  `json:"uiAmountString"`
								UIAmount       float64 `json:"uiAmount"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	} `json:"result"`
}

// GetTokenAccountsByOwner returns all token accounts an owner holds under one
// token program. Zero-balance accounts are included; callers filter.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner, programID string) ([]TokenBalance, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getTokenAccountsByOwner",
		Params: []any{
			owner,
			map[string]string{"programId": programID},
			map[string]string{"encoding": "jsonParsed"},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rpc returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed tokenAccountsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("rpc response decode failed: %w", err)
	}
	if parsed.Error != nil {
		return nil, parsed.Error
	}

	balances := make([]TokenBalance, 0, len(parsed.Result.Value))
	for _, entry := range parsed.Result.Value {
		info := entry.Account.Data.Parsed.Info

		raw, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil {
			continue
		}

		// uiAmountString is exact; the float field is a lossy convenience
		ui, err := decimal.NewFromString(info.TokenAmount.UIAmountString)
		if err != nil {
			ui = decimal.NewFromFloat(info.TokenAmount.UIAmount)
		}

		balances = append(balances, TokenBalance{
			Mint:      info.Mint,
			RawAmount: raw,
			Decimals:  info.TokenAmount.Decimals,
			UIAmount:  ui,
		})
	}

	return balances, nil
}
