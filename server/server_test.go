package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/engine"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestServer(t *testing.T, authToken string) http.Handler {
	t.Helper()
	eng := engine.NewEngine(engine.Config{
		Symbol:        "TST",
		TickSize:      d("0.01"),
		SnapshotDepth: 10,
	})
	t.Cleanup(eng.Stop)
	return newServer(eng, authToken, "*").routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSubmitOrderLifecycle(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","symbol":"TST","side":"buy","price":"100.50","quantity":"3"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var resting orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resting))
	assert.Equal(t, "b1", resting.OrderID)
	assert.Equal(t, "accepted", resting.Status)
	assert.True(t, resting.Remaining.Equal(d("3")))
	assert.Empty(t, resting.Trades)

	rr = doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"s1","symbol":"TST","side":"sell","price":"100.50","quantity":"1"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var filled orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &filled))
	assert.Equal(t, "filled", filled.Status)
	assert.True(t, filled.Remaining.IsZero())
	require.Len(t, filled.Trades, 1)
	assert.True(t, filled.Trades[0].Price.Equal(d("100.50")))
	assert.True(t, filled.Trades[0].Quantity.Equal(d("1")))
	assert.Equal(t, "s1", filled.Trades[0].TakerOrderID)
	assert.Equal(t, "b1", filled.Trades[0].MakerOrderID)
	assert.Equal(t, "sell", filled.Trades[0].Side)
}

func TestSubmitOrderPartialFill(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"a1","side":"sell","price":"101","quantity":"2"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","side":"buy","price":"101","quantity":"5"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "partially_filled", resp.Status)
	assert.True(t, resp.Remaining.Equal(d("3")))
	require.Len(t, resp.Trades, 1)
	assert.True(t, resp.Trades[0].Quantity.Equal(d("2")))
}

func TestSubmitOrderValidationFailure(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"x1","price":"-5","quantity":"0"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var resp struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Fields, "side")
	assert.Contains(t, resp.Fields, "price")
	assert.Contains(t, resp.Fields, "quantity")
}

func TestSubmitOrderRejectsMalformedPayload(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders", `{"id":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid payload")
}

func TestSubmitOrderAssignsID(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"side":"buy","price":"99.99","quantity":"1"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp orderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	_, err := uuid.Parse(resp.OrderID)
	assert.NoError(t, err, "generated order id should be a uuid, got %q", resp.OrderID)
}

func TestSubmitOrderDuplicateConflict(t *testing.T) {
	h := newTestServer(t, "")

	first := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","side":"buy","price":"100","quantity":"1"}`)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","side":"buy","price":"99","quantity":"1"}`)
	require.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "duplicate order id")
}

func TestSubmitOrderUnknownSymbol(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","symbol":"ETHUSD","side":"buy","price":"100","quantity":"1"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown symbol")
}

func TestSubmitOrderMisalignedPrice(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","side":"buy","price":"100.505","quantity":"1"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "tick size")
}

func TestCancelOrder(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodPost, "/orders",
		`{"id":"b1","side":"buy","price":"100","quantity":"1"}`)
	require.Equal(t, http.StatusAccepted, rr.Code)

	rr = doJSON(t, h, http.MethodDelete, "/orders/b1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp cancelResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "b1", resp.OrderID)
	assert.Equal(t, "canceled", resp.Status)

	rr = doJSON(t, h, http.MethodDelete, "/orders/b1", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBookSnapshot(t *testing.T) {
	h := newTestServer(t, "")

	for _, body := range []string{
		`{"id":"b1","side":"buy","price":"100.50","quantity":"3"}`,
		`{"id":"b2","side":"buy","price":"100.25","quantity":"2"}`,
		`{"id":"a1","side":"sell","price":"101.00","quantity":"4"}`,
	} {
		rr := doJSON(t, h, http.MethodPost, "/orders", body)
		require.Equal(t, http.StatusAccepted, rr.Code)
	}

	rr := doJSON(t, h, http.MethodGet, "/book", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp bookResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "TST", resp.Symbol)
	require.Len(t, resp.Bids, 2)
	require.Len(t, resp.Asks, 1)
	assert.True(t, resp.Bids[0].Price.Equal(d("100.50")), "bids should be best first")
	assert.True(t, resp.Bids[1].Price.Equal(d("100.25")))
	assert.True(t, resp.Asks[0].Price.Equal(d("101")))
	assert.True(t, resp.Asks[0].Quantity.Equal(d("4")))
}

func TestBestQuotes(t *testing.T) {
	h := newTestServer(t, "")

	rr := doJSON(t, h, http.MethodGet, "/book/best", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var empty bestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &empty))
	assert.Nil(t, empty.BestBid)
	assert.Nil(t, empty.BestAsk)

	for _, body := range []string{
		`{"id":"b1","side":"buy","price":"100","quantity":"3"}`,
		`{"id":"b2","side":"buy","price":"100","quantity":"2"}`,
		`{"id":"a1","side":"sell","price":"102","quantity":"1"}`,
	} {
		resp := doJSON(t, h, http.MethodPost, "/orders", body)
		require.Equal(t, http.StatusAccepted, resp.Code)
	}

	rr = doJSON(t, h, http.MethodGet, "/book/best", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var quoted bestResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &quoted))
	require.NotNil(t, quoted.BestBid)
	require.NotNil(t, quoted.BestAsk)
	assert.True(t, quoted.BestBid.Price.Equal(d("100")))
	assert.True(t, quoted.BestBid.Quantity.Equal(d("5")), "best bid should sum the level")
	assert.True(t, quoted.BestAsk.Price.Equal(d("102")))
}

func TestAuthToken(t *testing.T) {
	h := newTestServer(t, "sekrit")

	rr := doJSON(t, h, http.MethodGet, "/book", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/book", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	withHeader := httptest.NewRecorder()
	h.ServeHTTP(withHeader, req)
	require.Equal(t, http.StatusOK, withHeader.Code)

	viaQuery := doJSON(t, h, http.MethodGet, "/book?token=sekrit", "")
	require.Equal(t, http.StatusOK, viaQuery.Code)
}
