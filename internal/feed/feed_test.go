package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePrice_PipeString(t *testing.T) {
	payload := json.RawMessage(`"2256.78|2256.50|2257.06|2024-05-01T12:30:45.123456+00:00"`)

	p, err := DecodePrice("prices:ETH-USDT", payload)
	require.NoError(t, err)

	assert.Equal(t, "ETH-USDT", p.Symbol)
	assert.True(t, p.Last.Equal(decimal.RequireFromString("2256.78")), "last = %s", p.Last)
	assert.True(t, p.Bid.Equal(decimal.RequireFromString("2256.50")), "bid = %s", p.Bid)
	assert.True(t, p.Ask.Equal(decimal.RequireFromString("2257.06")), "ask = %s", p.Ask)
	assert.Equal(t, "0.56", p.Spread().String())
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 45, 123456000, time.UTC), p.Time)
}

func TestDecodePrice_NaiveTimestamp(t *testing.T) {
	p, err := DecodePrice("prices:BTC-USDT", json.RawMessage(`"1|1|1|2024-05-01T12:30:45.5"`))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 45, 500000000, time.UTC), p.Time)
}

func TestDecodePrice_Object(t *testing.T) {
	p, err := DecodePrice("prices:ETH-USDT", json.RawMessage(`{"last":2256.78}`))
	require.NoError(t, err)

	assert.Equal(t, "2256.78", p.Last.String())
	assert.True(t, p.Bid.IsZero())
	assert.True(t, p.Time.IsZero())
}

func TestDecodePrice_ObjectWithStrings(t *testing.T) {
	p, err := DecodePrice("prices:ETH-USDT",
		json.RawMessage(`{"last":"0.1","bid":"0.09","ask":"0.11","timestamp":"2024-05-01T00:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, "0.1", p.Last.String())
	assert.Equal(t, "0.02", p.Spread().String())
	assert.Equal(t, 2024, p.Time.Year())
}

func TestDecodePrice_Errors(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		payload string
		target  error
	}{
		{"wrong channel", "trades:ETH-USDT", `"1|1|1|2024-05-01T00:00:00"`, ErrWrongChannel},
		{"too few fields", "prices:ETH-USDT", `"1|2|3"`, ErrFieldCount},
		{"number payload", "prices:ETH-USDT", `42`, ErrUnsupportedPayload},
		{"empty payload", "prices:ETH-USDT", ``, ErrUnsupportedPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePrice(tt.channel, json.RawMessage(tt.payload))
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := DecodePrice("prices:ETH-USDT", json.RawMessage(`"abc|1|1|2024-05-01T00:00:00"`))
	assert.ErrorContains(t, err, "parse last")

	_, err = DecodePrice("prices:ETH-USDT", json.RawMessage(`"1|1|1|yesterday"`))
	assert.ErrorContains(t, err, "parse timestamp")
}

func TestDecodeTrade_PipeString(t *testing.T) {
	payload := json.RawMessage(`"9f1c2d3e-0000-4000-8000-000000000001|2256.78|0.5|buy"`)

	tr, err := DecodeTrade("trades:ETH-USDT", payload)
	require.NoError(t, err)

	assert.Equal(t, "ETH-USDT", tr.Symbol)
	assert.Equal(t, "9f1c2d3e-0000-4000-8000-000000000001", tr.ID)
	assert.Equal(t, "2256.78", tr.Price.String())
	assert.Equal(t, "0.5", tr.Quantity.String())
	assert.Equal(t, SideBuy, tr.Side)
	assert.Equal(t, "1128.39", tr.Notional().String())
}

func TestDecodeTrade_Object(t *testing.T) {
	tr, err := DecodeTrade("trades:BTC-USDT",
		json.RawMessage(`{"trade_id":17,"price":"64000.10","quantity":"0.01","side":"OrderSide.SELL"}`))
	require.NoError(t, err)

	assert.Equal(t, "17", tr.ID)
	assert.Equal(t, SideSell, tr.Side)
	assert.Equal(t, "640.001", tr.Notional().String())
}

func TestDecodeTrade_Errors(t *testing.T) {
	_, err := DecodeTrade("prices:ETH-USDT", json.RawMessage(`"a|1|1|buy"`))
	assert.ErrorIs(t, err, ErrWrongChannel)

	_, err = DecodeTrade("trades:ETH-USDT", json.RawMessage(`"a|1|buy"`))
	assert.ErrorIs(t, err, ErrFieldCount)

	_, err = DecodeTrade("trades:ETH-USDT", json.RawMessage(`"a|x|1|buy"`))
	assert.ErrorContains(t, err, "parse price")
}

func TestParseSide(t *testing.T) {
	assert.Equal(t, SideBuy, ParseSide("BUY"))
	assert.Equal(t, SideSell, ParseSide(" sell "))
	assert.Equal(t, SideBuy, ParseSide("OrderSide.BUY"))
	assert.Equal(t, SideUnknown, ParseSide("hold"))
}

func TestChannels(t *testing.T) {
	assert.Equal(t, "prices:ETH-USDT", PriceChannel("eth-usdt"))
	assert.Equal(t, "trades:BTC-USDT", TradeChannel("BTC-USDT"))
	assert.True(t, IsPriceChannel("prices:X"))
	assert.False(t, IsTradeChannel("orders"))
}
