// Package clients contains HTTP clients for the aggregator and
// settlement-venue APIs.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultAPIBaseURL = "https://api.1inch.com"
	defaultTimeout    = 30 * time.Second
)

// APIError is a non-2xx response from the aggregator API.
type APIError struct {
	Status int
	Body   string
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator API returned status %d for %s: %s", e.Status, e.URL, e.Body)
}

// OneInchClient talks to the 1inch developer-portal APIs: swap (allowance
// and approval transactions), spot price and portfolio snapshot.
type OneInchClient struct {
	baseURL    string
	authToken  string
	chainID    int64
	httpClient *http.Client
}

// NewOneInchClient creates a client for the given chain.
func NewOneInchClient(authToken string, chainID int64) *OneInchClient {
	return &OneInchClient{
		baseURL:   defaultAPIBaseURL,
		authToken: authToken,
		chainID:   chainID,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewOneInchClientWithBaseURL is used by tests to point the client at a stub server.
func NewOneInchClientWithBaseURL(baseURL, authToken string, chainID int64) *OneInchClient {
	c := NewOneInchClient(authToken, chainID)
	c.baseURL = baseURL
	return c
}

// AllowanceResponse mirrors /approve/allowance.
type AllowanceResponse struct {
	Allowance string `json:"allowance"`
}

// ApproveTxResponse mirrors /approve/transaction.
type ApproveTxResponse struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	Value    string `json:"value"`
	GasPrice string `json:"gasPrice"`
}

// PortfolioPosition is one entry of the portfolio tokens snapshot.
// Only the fields the rebalancer reads are decoded.
type PortfolioPosition struct {
	ContractAddress string  `json:"contract_address"`
	ContractSymbol  string  `json:"contract_symbol"`
	ValueUSD        float64 `json:"value_usd"`
}

type portfolioSnapshotResponse struct {
	Result []PortfolioPosition `json:"result"`
}

// Allowance returns the venue's current spender allowance for the token.
func (c *OneInchClient) Allowance(ctx context.Context, tokenAddress, walletAddress string) (*AllowanceResponse, error) {
	var out AllowanceResponse
	err := c.get(ctx, fmt.Sprintf("/swap/v6.1/%d/approve/allowance", c.chainID), url.Values{
		"tokenAddress":  {tokenAddress},
		"walletAddress": {walletAddress},
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, "allowance query failed")
	}
	return &out, nil
}

// ApproveTransaction returns the calldata for an approval transaction.
func (c *OneInchClient) ApproveTransaction(ctx context.Context, tokenAddress, amount string) (*ApproveTxResponse, error) {
	var out ApproveTxResponse
	err := c.get(ctx, fmt.Sprintf("/swap/v6.1/%d/approve/transaction", c.chainID), url.Values{
		"tokenAddress": {tokenAddress},
		"amount":       {amount},
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, "approve transaction query failed")
	}
	return &out, nil
}

// TokenPricesUSD returns a map of lower-cased token address to USD price string.
func (c *OneInchClient) TokenPricesUSD(ctx context.Context, tokenAddresses []string) (map[string]string, error) {
	path := fmt.Sprintf("/price/v1.1/%d/%s", c.chainID, strings.Join(tokenAddresses, ","))
	out := make(map[string]string)
	if err := c.get(ctx, path, url.Values{"currency": {"USD"}}, &out); err != nil {
		return nil, errors.Wrap(err, "price query failed")
	}
	return out, nil
}

// PortfolioSnapshot returns current token positions of the wallet.
func (c *OneInchClient) PortfolioSnapshot(ctx context.Context, walletAddress string) ([]PortfolioPosition, error) {
	var out portfolioSnapshotResponse
	err := c.get(ctx, "/portfolio/portfolio/v5.0/tokens/snapshot", url.Values{
		"addresses": {walletAddress},
		"chain_id":  {strconv.FormatInt(c.chainID, 10)},
	}, &out)
	if err != nil {
		return nil, errors.Wrap(err, "portfolio snapshot query failed")
	}
	return out.Result, nil
}

func (c *OneInchClient) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", reqURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(body), URL: reqURL}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "failed to decode response from %s", reqURL)
	}
	return nil
}
