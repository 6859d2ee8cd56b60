package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowanceQuery(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "0xtoken", r.URL.Query().Get("tokenAddress"))
		assert.Equal(t, "0xwallet", r.URL.Query().Get("walletAddress"))
		w.Write([]byte(`{"allowance":"123456789"}`))
	}))
	defer server.Close()

	c := NewOneInchClientWithBaseURL(server.URL, "secret", 8453)
	resp, err := c.Allowance(context.Background(), "0xtoken", "0xwallet")
	require.NoError(t, err)

	assert.Equal(t, "123456789", resp.Allowance)
	assert.Equal(t, "/swap/v6.1/8453/approve/allowance", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestApproveTransactionQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap/v6.1/8453/approve/transaction", r.URL.Path)
		w.Write([]byte(`{"to":"0xrouter","data":"0x095ea7b3","value":"0","gasPrice":"1000000000"}`))
	}))
	defer server.Close()

	c := NewOneInchClientWithBaseURL(server.URL, "secret", 8453)
	tx, err := c.ApproveTransaction(context.Background(), "0xtoken", "500")
	require.NoError(t, err)

	assert.Equal(t, "0xrouter", tx.To)
	assert.Equal(t, "0x095ea7b3", tx.Data)
	assert.Equal(t, "1000000000", tx.GasPrice)
}

func TestTokenPricesUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price/v1.1/8453/0xAA,0xBB", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))
		w.Write([]byte(`{"0xaa":"3991.84","0xbb":"0.9999"}`))
	}))
	defer server.Close()

	c := NewOneInchClientWithBaseURL(server.URL, "secret", 8453)
	prices, err := c.TokenPricesUSD(context.Background(), []string{"0xAA", "0xBB"})
	require.NoError(t, err)

	assert.Equal(t, "3991.84", prices["0xaa"])
	assert.Equal(t, "0.9999", prices["0xbb"])
}

func TestPortfolioSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/portfolio/portfolio/v5.0/tokens/snapshot", r.URL.Path)
		assert.Equal(t, "0xwallet", r.URL.Query().Get("addresses"))
		assert.Equal(t, "8453", r.URL.Query().Get("chain_id"))
		w.Write([]byte(`{"result":[
			{"contract_address":"0xaa","contract_symbol":"WETH","value_usd":600.5},
			{"contract_address":"0xbb","contract_symbol":"USDC","value_usd":400}
		]}`))
	}))
	defer server.Close()

	c := NewOneInchClientWithBaseURL(server.URL, "secret", 8453)
	positions, err := c.PortfolioSnapshot(context.Background(), "0xwallet")
	require.NoError(t, err)

	require.Len(t, positions, 2)
	assert.Equal(t, "0xaa", positions[0].ContractAddress)
	assert.InDelta(t, 600.5, positions[0].ValueUSD, 1e-9)
}

func TestAPIErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	c := NewOneInchClientWithBaseURL(server.URL, "secret", 8453)
	_, err := c.Allowance(context.Background(), "0xtoken", "0xwallet")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "rate limited")
}
