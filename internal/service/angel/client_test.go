package angel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CashBreakout/pkg/logger"
	"CashBreakout/pkg/retry"
)

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	creds := Credentials{APIKey: "key", ClientCode: "C123", AccessToken: "tok", RefreshToken: "ref"}
	return NewClient(srv.URL, creds, logger.Nop(), WithRetryConfig(fastRetry()))
}

func TestPlaceOrder_Success(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathPlaceOrder, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BUY", body["transactiontype"])
		assert.Equal(t, "71", body["quantity"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true, "message": "SUCCESS",
			"data": map[string]string{"orderid": "240828000000123"},
		})
	}))

	id, err := c.PlaceOrder(context.Background(), "1333", "HDFCBANK", 71, "BUY")
	require.NoError(t, err)
	assert.Equal(t, "240828000000123", id)
}

func TestPlaceOrder_RejectionIsFinal(t *testing.T) {
	t.Parallel()

	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": false, "message": "Insufficient funds", "errorcode": "AB1004",
		})
	}))

	_, err := c.PlaceOrder(context.Background(), "1333", "HDFCBANK", 71, "BUY")
	require.Error(t, err)
	assert.False(t, retry.IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a rejected order must not be retried")
}

func TestPlaceOrder_TransportFailureRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true, "data": map[string]string{"orderid": "OID-9"},
		})
	}))

	id, err := c.PlaceOrder(context.Background(), "1333", "HDFCBANK", 10, "BUY")
	require.NoError(t, err)
	assert.Equal(t, "OID-9", id)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOrderStatus_FoundAndParsed(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": []map[string]string{
				{"orderid": "A1", "orderstatus": "open", "filledshares": "0", "averageprice": "0"},
				{"orderid": "A2", "orderstatus": "complete", "filledshares": "71", "averageprice": "105.15"},
			},
		})
	}))

	st, err := c.OrderStatus(context.Background(), "A2")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "complete", st.Status)
	assert.Equal(t, 71, st.FilledQty)
	assert.InDelta(t, 105.15, st.AvgPrice, 1e-9)
}

func TestOrderStatus_AbsentMeansKeepPolling(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true, "data": []map[string]string{},
		})
	}))

	st, err := c.OrderStatus(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestExpiredSession_RefreshedThenRetried(t *testing.T) {
	t.Parallel()

	var bookCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc(pathOrderBook, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&bookCalls, 1) == 1 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status": false, "message": "Invalid Token", "errorcode": "AG8001",
			})
			return
		}
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": []map[string]string{
				{"orderid": "A1", "orderstatus": "complete", "filledshares": "5", "averageprice": "99.5"},
			},
		})
	})
	mux.HandleFunc(pathRefreshJWT, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": map[string]string{
				"jwtToken": "fresh", "refreshToken": "ref2", "feedToken": "feed2",
			},
		})
	})

	c := testClient(t, mux)
	st, err := c.OrderStatus(context.Background(), "A1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "complete", st.Status)
}

func TestDailyCandles_SkipsMalformedRows(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": []interface{}{
				[]interface{}{"2026-08-26T09:15:00+05:30", 100.0, 105.5, 99.0, 104.0, 1000.0},
				[]interface{}{"not-a-timestamp", 1.0, 2.0, 3.0, 4.0, 5.0},
				[]interface{}{"2026-08-27T09:15:00+05:30", 104.0, 108.0, 103.0, 107.0, 2000.0},
			},
		})
	}))

	from := time.Date(2026, 8, 23, 9, 15, 0, 0, time.UTC)
	to := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)
	candles, err := c.DailyCandles(context.Background(), "1333", from, to)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	assert.InDelta(t, 105.5, candles[0].High, 1e-9)
	assert.InDelta(t, 108.0, candles[1].High, 1e-9)
}
