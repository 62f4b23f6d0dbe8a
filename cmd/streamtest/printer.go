package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rickgao/tradestream/internal/feed"
)

// printer writes one line per payload. Price and trade channels are decoded;
// anything else is printed as raw JSON.
type printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, verbose: verbose}
}

func (p *printer) Print(channel string, payload json.RawMessage) {
	line := p.format(channel, payload)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func (p *printer) format(channel string, payload json.RawMessage) string {
	switch {
	case feed.IsPriceChannel(channel):
		if px, err := feed.DecodePrice(channel, payload); err == nil {
			line := fmt.Sprintf("[PRICE] %s last=%s bid=%s ask=%s spread=%s",
				px.Symbol, px.Last, px.Bid, px.Ask, px.Spread())
			if !px.Time.IsZero() {
				line += " ts=" + px.Time.Format("15:04:05.000")
			}
			return line + p.suffix(payload)
		}

	case feed.IsTradeChannel(channel):
		if tr, err := feed.DecodeTrade(channel, payload); err == nil {
			return fmt.Sprintf("[TRADE] %s %s %s @ %s (notional %s) id=%s",
				tr.Symbol, tr.Side, tr.Quantity, tr.Price, tr.Notional(), tr.ID) + p.suffix(payload)
		}
	}
	return fmt.Sprintf("[%s] %s", channel, payload)
}

func (p *printer) suffix(payload json.RawMessage) string {
	if !p.verbose {
		return ""
	}
	return " raw=" + string(payload)
}
