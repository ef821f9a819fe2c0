// Package angel is the REST client for the broker's order and historical
// data APIs. Transport failures and expired sessions are classified as
// transient so callers retry them; an explicit order rejection is final.
package angel

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	xhttp "CashBreakout/pkg/http"
	"CashBreakout/pkg/logger"
	"CashBreakout/pkg/retry"
)

const (
	pathPlaceOrder  = "/rest/secure/angelbroking/order/v1/placeOrder"
	pathOrderBook   = "/rest/secure/angelbroking/order/v1/getOrderBook"
	pathCandleData  = "/rest/secure/angelbroking/historical/v1/getCandleData"
	pathRefreshJWT  = "/rest/auth/angelbroking/jwt/v1/generateTokens"
	codeExpiredAuth = "AG8001"
)

// Credentials holds the broker session material.
type Credentials struct {
	APIKey       string
	ClientCode   string
	AccessToken  string
	RefreshToken string
	FeedToken    string
}

// Client implements repository.Broker.
type Client struct {
	baseURL  string
	http     *xhttp.Client
	retryCfg retry.Config
	log      *logger.Logger

	mu    sync.Mutex
	creds Credentials
}

// Option configures the Client.
type Option func(*Client)

// WithRetryConfig overrides the bounded-retry policy.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithTimeout bounds each broker call so a stuck request cannot stall a
// monitoring cycle.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = xhttp.NewClient(xhttp.WithTimeout(d))
	}
}

// NewClient creates a broker client. Credentials must carry at least the API
// key and an access token; that is enforced at startup, not here.
func NewClient(baseURL string, creds Credentials, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     xhttp.NewClient(),
		retryCfg: retry.DefaultConfig(),
		log:      log,
		creds:    creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiEnvelope struct {
	Status    bool   `json:"status"`
	Message   string `json:"message"`
	ErrorCode string `json:"errorcode"`
}

type placeOrderResponse struct {
	apiEnvelope
	Data struct {
		OrderID string `json:"orderid"`
	} `json:"data"`
}

type orderBookResponse struct {
	apiEnvelope
	Data []struct {
		OrderID      string `json:"orderid"`
		OrderStatus  string `json:"orderstatus"`
		FilledShares string `json:"filledshares"`
		AveragePrice string `json:"averageprice"`
		Text         string `json:"text"`
	} `json:"data"`
}

type candleDataResponse struct {
	apiEnvelope
	Data [][]interface{} `json:"data"`
}

type refreshResponse struct {
	apiEnvelope
	Data struct {
		JWTToken     string `json:"jwtToken"`
		RefreshToken string `json:"refreshToken"`
		FeedToken    string `json:"feedToken"`
	} `json:"data"`
}

// PlaceOrder submits a market order and returns the broker order id. A
// transport failure or expired session is retried within the bounded policy;
// a rejection from the broker is returned as-is and never retried.
func (c *Client) PlaceOrder(ctx context.Context, token, symbol string, qty int, side string) (string, error) {
	body := map[string]interface{}{
		"variety":         "NORMAL",
		"tradingsymbol":   symbol,
		"symboltoken":     token,
		"transactiontype": side,
		"exchange":        "NSE",
		"ordertype":       "MARKET",
		"producttype":     "INTRADAY",
		"duration":        "DAY",
		"price":           0.0,
		"squareoff":       "0",
		"stoploss":        "0",
		"quantity":        strconv.Itoa(qty),
	}

	var orderID string
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var resp placeOrderResponse
		if err := c.post(ctx, pathPlaceOrder, body, &resp); err != nil {
			return retry.Transient(err)
		}
		if !resp.Status {
			return c.classify(ctx, resp.apiEnvelope, "place order")
		}
		orderID = resp.Data.OrderID
		return nil
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// OrderStatus looks up one order in the order book. An id not present yet
// returns (nil, nil): the order may still be propagating, keep polling.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*domrepo.OrderState, error) {
	var state *domrepo.OrderState
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var resp orderBookResponse
		if err := c.get(ctx, pathOrderBook, &resp); err != nil {
			return retry.Transient(err)
		}
		if !resp.Status {
			return c.classify(ctx, resp.apiEnvelope, "order book")
		}
		for _, o := range resp.Data {
			if o.OrderID != orderID {
				continue
			}
			filled, _ := strconv.Atoi(o.FilledShares)
			avg, _ := strconv.ParseFloat(o.AveragePrice, 64)
			state = &domrepo.OrderState{
				Status:    o.OrderStatus,
				FilledQty: filled,
				AvgPrice:  avg,
				Text:      o.Text,
			}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// DailyCandles fetches daily bars for the token over [from, to].
func (c *Client) DailyCandles(ctx context.Context, token string, from, to time.Time) ([]models.HistCandle, error) {
	body := map[string]interface{}{
		"exchange":    "NSE",
		"symboltoken": token,
		"interval":    "ONE_DAY",
		"fromdate":    from.Format("2006-01-02 15:04"),
		"todate":      to.Format("2006-01-02 15:04"),
	}

	var candles []models.HistCandle
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var resp candleDataResponse
		if err := c.post(ctx, pathCandleData, body, &resp); err != nil {
			return retry.Transient(err)
		}
		if !resp.Status {
			return c.classify(ctx, resp.apiEnvelope, "candle data")
		}
		candles = candles[:0]
		for _, row := range resp.Data {
			hc, ok := parseHistCandle(row)
			if !ok {
				continue
			}
			candles = append(candles, hc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candles, nil
}

// classify turns an API-level failure into a transient or fatal error. An
// expired session triggers one refresh attempt and then retries.
func (c *Client) classify(ctx context.Context, env apiEnvelope, op string) error {
	err := fmt.Errorf("%s: %s (%s)", op, env.Message, env.ErrorCode)
	if env.ErrorCode == codeExpiredAuth {
		if rerr := c.refreshSession(ctx); rerr != nil {
			c.log.Error("session refresh failed", logger.Error(rerr))
		}
		return retry.Transient(err)
	}
	return err
}

// refreshSession exchanges the refresh token for new session tokens.
func (c *Client) refreshSession(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.creds.RefreshToken
	c.mu.Unlock()

	var resp refreshResponse
	body := map[string]string{"refreshToken": refreshToken}
	if err := c.post(ctx, pathRefreshJWT, body, &resp); err != nil {
		return fmt.Errorf("refresh tokens: %w", err)
	}
	if !resp.Status {
		return fmt.Errorf("refresh tokens: %s (%s)", resp.Message, resp.ErrorCode)
	}

	c.mu.Lock()
	c.creds.AccessToken = resp.Data.JWTToken
	c.creds.RefreshToken = resp.Data.RefreshToken
	c.creds.FeedToken = resp.Data.FeedToken
	c.mu.Unlock()

	c.log.Info("broker session refreshed")
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  "POST",
		URL:     c.baseURL + path,
		Headers: c.headers(),
		Body:    body,
	}, dest)
}

func (c *Client) get(ctx context.Context, path string, dest interface{}) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  "GET",
		URL:     c.baseURL + path,
		Headers: c.headers(),
	}, dest)
}

func (c *Client) headers() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]string{
		"Authorization": "Bearer " + c.creds.AccessToken,
		"X-PrivateKey":  c.creds.APIKey,
		"X-ClientCode":  c.creds.ClientCode,
		"X-SourceID":    "WEB",
		"X-UserType":    "USER",
	}
}

// parseHistCandle decodes one [timestamp, o, h, l, c, v] row. Rows that do
// not parse are skipped rather than failing the whole fetch.
func parseHistCandle(row []interface{}) (models.HistCandle, bool) {
	if len(row) < 6 {
		return models.HistCandle{}, false
	}
	ts, ok := row[0].(string)
	if !ok {
		return models.HistCandle{}, false
	}
	date, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return models.HistCandle{}, false
	}

	nums := make([]float64, 5)
	for i := 0; i < 5; i++ {
		f, ok := row[i+1].(float64)
		if !ok {
			return models.HistCandle{}, false
		}
		nums[i] = f
	}

	return models.HistCandle{
		Date:   date,
		Open:   nums[0],
		High:   nums[1],
		Low:    nums[2],
		Close:  nums[3],
		Volume: nums[4],
	}, true
}
