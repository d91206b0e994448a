// Package dhanhq is the DhanHQ v2 API client used in live mode: order
// placement, trade-price lookup, funds and the streaming tick feed.
// Authentication is a static client id + access token pair.
package dhanhq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.dhan.co/v2"

// Config configures the REST client.
type Config struct {
	ClientID    string
	AccessToken string
	BaseURL     string        // default: https://api.dhan.co/v2
	Timeout     time.Duration // default: 7s
}

// Client talks to the DhanHQ REST API. Requests retry up to 3 times with
// 250ms → 500ms → 1s backoff.
type Client struct {
	clientID string
	http     *resty.Client
}

// NewClient creates a configured client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 7 * time.Second
	}

	rc := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("access-token", cfg.AccessToken).
		SetRetryCount(3).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	return &Client{clientID: cfg.ClientID, http: rc}
}

// ClientID returns the authenticated Dhan client id.
func (c *Client) ClientID() string { return c.clientID }

// PlaceOrder submits an order and returns the broker order id.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	req.DhanClientID = c.clientID
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	var out OrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/orders")
	if err != nil {
		return OrderResponse{}, fmt.Errorf("dhanhq: place order: %w", err)
	}
	if resp.IsError() {
		return OrderResponse{}, fmt.Errorf("dhanhq: place order: %s", decodeError(resp.Body()))
	}
	if out.OrderID == "" {
		return OrderResponse{}, fmt.Errorf("dhanhq: place order: empty order id (status %s)", out.OrderStatus)
	}
	return out, nil
}

// TradesForOrder returns the trades filled against an order id.
func (c *Client) TradesForOrder(ctx context.Context, orderID string) ([]Trade, error) {
	var out []Trade
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/trades/" + orderID)
	if err != nil {
		return nil, fmt.Errorf("dhanhq: trades for %s: %w", orderID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("dhanhq: trades for %s: %s", orderID, decodeError(resp.Body()))
	}
	return out, nil
}

// AvgFillPrice returns the quantity-weighted fill price for an order, or
// ok=false when no trade has been reported yet.
func (c *Client) AvgFillPrice(ctx context.Context, orderID string) (float64, bool, error) {
	trades, err := c.TradesForOrder(ctx, orderID)
	if err != nil {
		return 0, false, err
	}
	var qty int64
	var notional float64
	for _, t := range trades {
		qty += t.TradedQuantity
		notional += t.TradedPrice * float64(t.TradedQuantity)
	}
	if qty == 0 {
		return 0, false, nil
	}
	return notional / float64(qty), true, nil
}

// Funds returns the broker funds summary.
func (c *Client) Funds(ctx context.Context) (FundLimit, error) {
	var out FundLimit
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/fundlimit")
	if err != nil {
		return FundLimit{}, fmt.Errorf("dhanhq: funds: %w", err)
	}
	if resp.IsError() {
		return FundLimit{}, fmt.Errorf("dhanhq: funds: %s", decodeError(resp.Body()))
	}
	return out, nil
}

// LTP fetches the last traded price for one instrument via the market quote
// endpoint. Used as a premium fallback when the feed has no tick yet.
func (c *Client) LTP(ctx context.Context, segment, securityID string) (float64, error) {
	body := map[string][]string{segment: {securityID}}
	var out struct {
		Data map[string]map[string]struct {
			LastPrice float64 `json:"last_price"`
		} `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/marketfeed/ltp")
	if err != nil {
		return 0, fmt.Errorf("dhanhq: ltp: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("dhanhq: ltp: %s", decodeError(resp.Body()))
	}
	if seg, ok := out.Data[segment]; ok {
		if q, ok := seg[securityID]; ok {
			return q.LastPrice, nil
		}
	}
	return 0, fmt.Errorf("dhanhq: ltp: no quote for %s:%s", segment, securityID)
}

func decodeError(body []byte) string {
	var e apiError
	if json.Unmarshal(body, &e) == nil && e.ErrorMessage != "" {
		return e.ErrorCode + " " + e.ErrorMessage
	}
	return string(body)
}
