package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/rebalancer/internal/domain"
)

const defaultFusionBaseURL = "https://api.1inch.com/fusion"

// OrderSigner signs venue order hashes with the wallet key.
type OrderSigner interface {
	SignHash(hash []byte) ([]byte, error)
}

// FusionClient talks to the auction-based settlement venue: quoting,
// order building, submission and status polling.
type FusionClient struct {
	baseURL    string
	authToken  string
	chainID    int64
	signer     OrderSigner
	httpClient *http.Client
}

// NewFusionClient creates a settlement-venue client.
func NewFusionClient(authToken string, chainID int64, signer OrderSigner) *FusionClient {
	return &FusionClient{
		baseURL:   defaultFusionBaseURL,
		authToken: authToken,
		chainID:   chainID,
		signer:    signer,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewFusionClientWithBaseURL is used by tests to point the client at a stub server.
func NewFusionClientWithBaseURL(baseURL, authToken string, chainID int64, signer OrderSigner) *FusionClient {
	c := NewFusionClient(authToken, chainID, signer)
	c.baseURL = baseURL
	return c
}

// FusionQuote is the venue's auction quote for a swap intent.
type FusionQuote struct {
	QuoteID           string                     `json:"quoteId"`
	RecommendedPreset string                     `json:"recommendedPreset"`
	Presets           map[string]json.RawMessage `json:"presets"`
}

// Viable reports whether the quote carries a usable auction preset.
func (q *FusionQuote) Viable() bool {
	if q == nil || q.RecommendedPreset == "" || len(q.Presets) == 0 {
		return false
	}
	_, ok := q.Presets[q.RecommendedPreset]
	return ok
}

// FusionOrder is a built order plus the hash identifying it at the venue.
type FusionOrder struct {
	OrderHash string          `json:"orderHash"`
	QuoteID   string          `json:"quoteId"`
	Order     json.RawMessage `json:"order"`
	Signature string          `json:"signature"`
}

// FusionFill is one settlement fill of an order.
type FusionFill struct {
	TxHash string `json:"txHash"`
}

// FusionOrderStatus is the venue's view of an order's lifecycle.
type FusionOrderStatus struct {
	Status domain.OrderStatus `json:"status"`
	Fills  []FusionFill       `json:"fills"`
}

// GetQuote requests an auction quote for the intent.
func (c *FusionClient) GetQuote(ctx context.Context, intent domain.SwapIntent) (*FusionQuote, error) {
	query := url.Values{
		"fromTokenAddress": {intent.FromToken.Address},
		"toTokenAddress":   {intent.ToToken.Address},
		"amount":           {intent.Amount.String()},
		"walletAddress":    {intent.WalletAddress},
		"source":           {"rebalancer"},
	}

	var out FusionQuote
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/quoter/v2.0/%d/quote/receive", c.chainID), query, nil, &out)
	if err != nil {
		return nil, errors.Wrap(err, "quote request failed")
	}
	return &out, nil
}

type buildOrderRequest struct {
	FromTokenAddress string `json:"fromTokenAddress"`
	ToTokenAddress   string `json:"toTokenAddress"`
	Amount           string `json:"amount"`
	WalletAddress    string `json:"walletAddress"`
	QuoteID          string `json:"quoteId"`
	Preset           string `json:"preset"`
}

type buildOrderResponse struct {
	OrderHash string          `json:"orderHash"`
	Order     json.RawMessage `json:"order"`
}

// BuildOrder builds and signs an order from a quote.
func (c *FusionClient) BuildOrder(ctx context.Context, quote *FusionQuote, intent domain.SwapIntent) (*FusionOrder, error) {
	reqBody := buildOrderRequest{
		FromTokenAddress: intent.FromToken.Address,
		ToTokenAddress:   intent.ToToken.Address,
		Amount:           intent.Amount.String(),
		WalletAddress:    intent.WalletAddress,
		QuoteID:          quote.QuoteID,
		Preset:           quote.RecommendedPreset,
	}

	var out buildOrderResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/quoter/v2.0/%d/quote/build", c.chainID), nil, reqBody, &out)
	if err != nil {
		return nil, errors.Wrap(err, "order build failed")
	}
	if out.OrderHash == "" {
		return nil, errors.New("venue returned order without hash")
	}

	hash, err := hexutil.Decode(out.OrderHash)
	if err != nil {
		return nil, errors.Wrapf(err, "venue returned malformed order hash %s", out.OrderHash)
	}
	sig, err := c.signer.SignHash(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign order %s", out.OrderHash)
	}

	return &FusionOrder{
		OrderHash: out.OrderHash,
		QuoteID:   quote.QuoteID,
		Order:     out.Order,
		Signature: hexutil.Encode(sig),
	}, nil
}

// SubmitOrder submits a signed order and returns the opaque order hash.
func (c *FusionClient) SubmitOrder(ctx context.Context, order *FusionOrder) (string, error) {
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/relayer/v2.0/%d/order/submit", c.chainID), nil, order, nil)
	if err != nil {
		return "", errors.Wrapf(err, "order submission failed for %s", order.OrderHash)
	}
	return order.OrderHash, nil
}

// OrderStatus queries the lifecycle state of a submitted order.
func (c *FusionClient) OrderStatus(ctx context.Context, orderHash string) (*FusionOrderStatus, error) {
	var out FusionOrderStatus
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/v2.0/%d/order/status/%s", c.chainID, orderHash), nil, nil, &out)
	if err != nil {
		return nil, errors.Wrapf(err, "order status query failed for %s", orderHash)
	}
	return &out, nil
}

func (c *FusionClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to encode request body")
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.authToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request to %s failed", reqURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody), URL: reqURL}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return errors.Wrapf(err, "failed to decode response from %s", reqURL)
		}
	}
	return nil
}
