package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel prefixes.
const (
	PricesPrefix = "prices:"
	TradesPrefix = "trades:"
)

// Errors
var (
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrFieldCount         = errors.New("unexpected field count")
	ErrWrongChannel       = errors.New("wrong channel")
)

// Side is the aggressor side of a trade.
type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideUnknown Side = ""
)

// Price is one price update.
type Price struct {
	Symbol string
	Last   decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Time   time.Time // zero when the update carries no timestamp
}

// Spread returns Ask - Bid.
func (p Price) Spread() decimal.Decimal {
	return p.Ask.Sub(p.Bid)
}

// Trade is one executed trade.
type Trade struct {
	Symbol   string
	ID       string
	Price    decimal.Decimal
	Quantity decimal.Decimal
	Side     Side
}

// Notional returns Price * Quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// PriceChannel returns the price channel name for symbol.
func PriceChannel(symbol string) string {
	return PricesPrefix + strings.ToUpper(symbol)
}

// TradeChannel returns the trade channel name for symbol.
func TradeChannel(symbol string) string {
	return TradesPrefix + strings.ToUpper(symbol)
}

// IsPriceChannel reports whether channel carries price updates.
func IsPriceChannel(channel string) bool {
	return strings.HasPrefix(channel, PricesPrefix)
}

// IsTradeChannel reports whether channel carries trades.
func IsTradeChannel(channel string) bool {
	return strings.HasPrefix(channel, TradesPrefix)
}

// priceObject is the JSON object form of a price update.
type priceObject struct {
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Timestamp string          `json:"timestamp"`
}

// tradeObject is the JSON object form of a trade.
type tradeObject struct {
	ID       json.RawMessage `json:"id"`
	TradeID  json.RawMessage `json:"trade_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
	Side     string          `json:"side"`
}

// DecodePrice decodes a payload received on a prices:{SYMBOL} channel.
func DecodePrice(channel string, payload json.RawMessage) (Price, error) {
	if !IsPriceChannel(channel) {
		return Price{}, fmt.Errorf("%w: %q is not a price channel", ErrWrongChannel, channel)
	}
	p := Price{Symbol: strings.TrimPrefix(channel, PricesPrefix)}

	obj, line, err := unwrap(payload)
	if err != nil {
		return Price{}, err
	}

	if obj {
		var v priceObject
		if err := json.Unmarshal(payload, &v); err != nil {
			return Price{}, fmt.Errorf("decode price: %w", err)
		}
		p.Last, p.Bid, p.Ask = v.Last, v.Bid, v.Ask
		if v.Timestamp != "" {
			if p.Time, err = parseTime(v.Timestamp); err != nil {
				return Price{}, err
			}
		}
		return p, nil
	}

	fields := strings.Split(line, "|")
	if len(fields) != 4 {
		return Price{}, fmt.Errorf("%w: price has %d fields, want 4", ErrFieldCount, len(fields))
	}
	if p.Last, err = parseDecimal("last", fields[0]); err != nil {
		return Price{}, err
	}
	if p.Bid, err = parseDecimal("bid", fields[1]); err != nil {
		return Price{}, err
	}
	if p.Ask, err = parseDecimal("ask", fields[2]); err != nil {
		return Price{}, err
	}
	if p.Time, err = parseTime(fields[3]); err != nil {
		return Price{}, err
	}
	return p, nil
}

// DecodeTrade decodes a payload received on a trades:{SYMBOL} channel.
func DecodeTrade(channel string, payload json.RawMessage) (Trade, error) {
	if !IsTradeChannel(channel) {
		return Trade{}, fmt.Errorf("%w: %q is not a trade channel", ErrWrongChannel, channel)
	}
	t := Trade{Symbol: strings.TrimPrefix(channel, TradesPrefix)}

	obj, line, err := unwrap(payload)
	if err != nil {
		return Trade{}, err
	}

	if obj {
		var v tradeObject
		if err := json.Unmarshal(payload, &v); err != nil {
			return Trade{}, fmt.Errorf("decode trade: %w", err)
		}
		id := v.ID
		if len(id) == 0 {
			id = v.TradeID
		}
		t.ID = rawID(id)
		t.Price, t.Quantity = v.Price, v.Quantity
		t.Side = ParseSide(v.Side)
		return t, nil
	}

	fields := strings.Split(line, "|")
	if len(fields) != 4 {
		return Trade{}, fmt.Errorf("%w: trade has %d fields, want 4", ErrFieldCount, len(fields))
	}
	t.ID = fields[0]
	if t.Price, err = parseDecimal("price", fields[1]); err != nil {
		return Trade{}, err
	}
	if t.Quantity, err = parseDecimal("quantity", fields[2]); err != nil {
		return Trade{}, err
	}
	t.Side = ParseSide(fields[3])
	return t, nil
}

// ParseSide normalizes a side name. Enum-style names such as "OrderSide.BUY"
// are accepted.
func ParseSide(s string) Side {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	switch Side(s) {
	case SideBuy:
		return SideBuy
	case SideSell:
		return SideSell
	}
	return SideUnknown
}

// unwrap classifies payload as a JSON object or a pipe-delimited string.
func unwrap(payload json.RawMessage) (obj bool, line string, err error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return false, "", fmt.Errorf("%w: empty", ErrUnsupportedPayload)
	}
	switch trimmed[0] {
	case '{':
		return true, "", nil
	case '"':
		if err := json.Unmarshal(trimmed, &line); err != nil {
			return false, "", fmt.Errorf("%w: %v", ErrUnsupportedPayload, err)
		}
		return false, line, nil
	}
	return false, "", fmt.Errorf("%w: %.20s", ErrUnsupportedPayload, trimmed)
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

// Timestamps come from Python isoformat, with or without an offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognised format", s)
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
