package okexapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_NewAuthenticatedRequest(t *testing.T) {
	client := NewClient()
	client.Auth("key", "secret", "passphrase")

	req, err := client.newAuthenticatedRequest("POST", "/api/v5/trade/order", nil, map[string]interface{}{
		"instId": "BTC-USDT-SWAP",
	})
	require.NoError(t, err)

	assert.Equal(t, "key", req.Header.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "passphrase", req.Header.Get("OK-ACCESS-PASSPHRASE"))
	assert.NotEmpty(t, req.Header.Get("OK-ACCESS-SIGN"))
	assert.Empty(t, req.Header.Get("x-simulated-trading"))

	timestamp := req.Header.Get("OK-ACCESS-TIMESTAMP")
	_, err = time.Parse("2006-01-02T15:04:05.999Z07:00", timestamp)
	assert.NoError(t, err, "timestamp should be ISO-8601: %s", timestamp)
}

func TestClient_SimulatedTradingHeader(t *testing.T) {
	client := NewClient()
	client.Auth("key", "secret", "passphrase")
	client.Simulated = true

	req, err := client.newAuthenticatedRequest("GET", "/api/v5/trade/order", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", req.Header.Get("x-simulated-trading"))
}

func TestClient_RequiresCredentials(t *testing.T) {
	client := NewClient()
	_, err := client.newAuthenticatedRequest("GET", "/api/v5/trade/order", nil, nil)
	assert.Error(t, err)
}

func Test_sign(t *testing.T) {
	a := sign("2020-12-08T09:08:57.715ZPOST/api/v5/trade/order{}", "secret")
	b := sign("2020-12-08T09:08:57.715ZPOST/api/v5/trade/order{}", "secret")
	c := sign("2020-12-08T09:08:57.715ZPOST/api/v5/trade/order{}", "other")

	assert.NotEmpty(t, a)
	assert.Equal(t, a, b, "signature must be deterministic")
	assert.NotEqual(t, a, c, "signature must depend on the secret")
}

func TestPlaceOrderRequest_Parameters(t *testing.T) {
	client := NewClient()
	req := client.NewPlaceOrderRequest().
		InstrumentID("BTC-USDT-SWAP").
		TradeMode(TradeModeCross).
		Side(SideTypeSell).
		PosSide(PosSideShort).
		OrderType(OrderTypeMarket).
		Quantity("30")

	params := req.Parameters()
	assert.Equal(t, "BTC-USDT-SWAP", params["instId"])
	assert.Equal(t, TradeModeCross, params["tdMode"])
	assert.Equal(t, SideTypeSell, params["side"])
	assert.Equal(t, PosSideShort, params["posSide"])
	assert.Equal(t, OrderTypeMarket, params["ordType"])
	assert.Equal(t, "30", params["sz"])
}
