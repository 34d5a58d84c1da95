package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAccountClient talks to the account-ledger service that owns balances.
// The ledger core only ever asks it to move or release funds; it never reads
// balances on the hot path.
type HTTPAccountClient struct {
	Address string
	client  *http.Client
}

func NewHTTPAccountClient(address string) *HTTPAccountClient {
	return &HTTPAccountClient{
		Address: address,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type balanceRequest struct {
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *HTTPAccountClient) CreditBalance(ctx context.Context, accountID string, amount float64) error {
	return c.post(ctx, "/accounts/credit", balanceRequest{AccountID: accountID, Amount: amount})
}

func (c *HTTPAccountClient) DebitBalance(ctx context.Context, accountID string, amount float64) error {
	return c.post(ctx, "/accounts/debit", balanceRequest{AccountID: accountID, Amount: amount})
}

func (c *HTTPAccountClient) ReserveBalance(ctx context.Context, accountID string, amount float64) error {
	return c.post(ctx, "/accounts/reserve", balanceRequest{AccountID: accountID, Amount: amount})
}

func (c *HTTPAccountClient) ReleaseReserved(ctx context.Context, accountID string, amount float64) error {
	return c.post(ctx, "/accounts/release", balanceRequest{AccountID: accountID, Amount: amount})
}

func (c *HTTPAccountClient) post(ctx context.Context, path string, body balanceRequest) error {
	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", c.Address, path), bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	responseBodyBytes, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	var errResp errorResponse
	if err := json.Unmarshal(responseBodyBytes, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("account service returned status %d", response.StatusCode)
	}
	return errors.New(errResp.Error)
}
