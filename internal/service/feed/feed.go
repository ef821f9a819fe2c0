// Package feed implements the broker's push-based streaming quote transport.
// The aggregator registers three handler slots (open, tick, error) and never
// touches the connection directly; the delivery goroutine lives here.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"CashBreakout/internal/domain/models"
	domrepo "CashBreakout/internal/domain/repository"
	"CashBreakout/pkg/logger"
)

// Client is a QuoteStream backed by the broker's quote websocket.
type Client struct {
	url            string
	authToken      string
	apiKey         string
	clientCode     string
	feedToken      string
	tokens         []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger
}

// Option configures the feed client.
type Option func(*Client)

// WithReconnectDelay overrides the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithPingInterval overrides the websocket keepalive interval.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

// New creates a quote feed client subscribing to the given instrument tokens.
func New(url, authToken, apiKey, clientCode, feedToken string, tokens []string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		url:            url,
		authToken:      authToken,
		apiKey:         apiKey,
		clientCode:     clientCode,
		feedToken:      feedToken,
		tokens:         tokens,
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		log:            log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// subscribeRequest is the quote-mode subscription frame. Mode 2 carries
// last traded price plus session-cumulative volume; mode 1 (LTP only) is not
// enough to build candles.
type subscribeRequest struct {
	CorrelationID string          `json:"correlationID"`
	Action        int             `json:"action"`
	Params        subscribeParams `json:"params"`
}

type subscribeParams struct {
	Mode      int         `json:"mode"`
	TokenList []tokenList `json:"tokenList"`
}

type tokenList struct {
	ExchangeType int      `json:"exchangeType"`
	Tokens       []string `json:"tokens"`
}

type quoteFrame struct {
	Token           string  `json:"token"`
	LastTradedPrice float64 `json:"last_traded_price"`
	VolTraded       float64 `json:"vol_traded"`
}

// Run dials the feed and delivers ticks to h until ctx is cancelled. Every
// connection failure is non-fatal: the client waits and re-dials, and the
// subscription is re-sent after each reconnect. A malformed frame is dropped
// without surfacing an error.
func (c *Client) Run(ctx context.Context, h domrepo.TickHandlers) error {
	for {
		if err := c.session(ctx, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.OnError != nil {
				h.OnError(err)
			}
			c.log.Warn("feed session ended, reconnecting",
				logger.Error(err),
				logger.Duration("delay", c.reconnectDelay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

// session runs one websocket connection from dial to first failure.
func (c *Client) session(ctx context.Context, h domrepo.TickHandlers) error {
	header := map[string][]string{
		"Authorization": {"Bearer " + c.authToken},
		"x-api-key":     {c.apiKey},
		"x-client-code": {c.clientCode},
		"x-feed-token":  {c.feedToken},
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}
	defer conn.Close()

	if err := c.subscribe(conn); err != nil {
		return err
	}
	if h.OnOpen != nil {
		h.OnOpen()
	}

	// keepalive
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed read: %w", err)
		}

		var q quoteFrame
		if err := json.Unmarshal(raw, &q); err != nil {
			continue // partial or non-quote frame
		}
		if q.Token == "" {
			continue
		}
		if h.OnTick != nil {
			h.OnTick(models.Tick{
				Token:            q.Token,
				LastTradedPrice:  q.LastTradedPrice,
				CumulativeVolume: q.VolTraded,
			})
		}
	}
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		CorrelationID: "breakout",
		Action:        1,
		Params: subscribeParams{
			Mode:      2,
			TokenList: []tokenList{{ExchangeType: 1, Tokens: c.tokens}},
		},
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("feed subscribe: %w", err)
	}
	c.log.Info("feed subscribed", logger.Int("tokens", len(c.tokens)))
	return nil
}
