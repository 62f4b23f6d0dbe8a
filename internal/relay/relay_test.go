package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/tradestream/internal/dispatch"
	"github.com/rickgao/tradestream/internal/metrics"
)

// fakeSource is a dispatcher standing in for the connection manager.
type fakeSource struct {
	*dispatch.Dispatcher
}

func newFakeSource() *fakeSource {
	return &fakeSource{Dispatcher: dispatch.New(nil)}
}

func TestRelay_PublishesAttachedChannels(t *testing.T) {
	db, mock := redismock.NewClientMock()
	src := newFakeSource()
	r := New(db, src, Config{Prefix: "tradestream:"}, nil, nil)

	require.True(t, r.Attach("prices:ETH-USDT"))
	assert.False(t, r.Attach("prices:ETH-USDT"))
	assert.Equal(t, 1, src.Count("prices:ETH-USDT"))

	mock.ExpectPublish("tradestream:prices:ETH-USDT", "2256.78|2256.50|2257.06|2024-05-01T12:30:45").SetVal(1)
	mock.ExpectPublish("tradestream:prices:ETH-USDT", `{"last":2256.78}`).SetVal(0)

	src.Emit("prices:ETH-USDT", json.RawMessage(`"2256.78|2256.50|2257.06|2024-05-01T12:30:45"`))
	src.Emit("prices:ETH-USDT", json.RawMessage(`{"last":2256.78}`))
	src.Emit("orders", json.RawMessage(`{"order_id":"1"}`)) // not attached

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelay_ReattachAfterSourceCleared(t *testing.T) {
	db, mock := redismock.NewClientMock()
	src := newFakeSource()
	r := New(db, src, Config{Prefix: "tradestream:"}, nil, nil)

	r.Attach("prices:ETH-USDT")

	// Manager.Disconnect clears every handler on the source.
	src.Clear()
	require.Equal(t, 0, src.Count("prices:ETH-USDT"))

	r.Attach("prices:ETH-USDT")
	assert.Equal(t, 1, src.Count("prices:ETH-USDT"))
	assert.Equal(t, []string{"prices:ETH-USDT"}, r.Channels())

	mock.ExpectPublish("tradestream:prices:ETH-USDT", `{"last":2256.78}`).SetVal(1)
	src.Emit("prices:ETH-USDT", json.RawMessage(`{"last":2256.78}`))
	assert.NoError(t, mock.ExpectationsWereMet())

	// Detach still removes the live registration.
	require.True(t, r.Detach("prices:ETH-USDT"))
	assert.Equal(t, 0, src.Count("prices:ETH-USDT"))
}

func TestRelay_Detach(t *testing.T) {
	db, mock := redismock.NewClientMock()
	src := newFakeSource()
	r := New(db, src, Config{Prefix: "ts:"}, nil, nil)

	// A consumer handler on the same channel is untouched by Detach.
	var mu sync.Mutex
	var consumer int
	src.On("orders", func(json.RawMessage) {
		mu.Lock()
		consumer++
		mu.Unlock()
	})

	r.Attach("orders")
	assert.Equal(t, 2, src.Count("orders"))
	assert.Equal(t, []string{"orders"}, r.Channels())

	require.True(t, r.Detach("orders"))
	assert.False(t, r.Detach("orders"))
	assert.Equal(t, 1, src.Count("orders"))
	assert.Empty(t, r.Channels())

	src.Emit("orders", json.RawMessage(`1`))
	assert.Equal(t, 1, consumer)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelay_PublishFailureIsAbsorbed(t *testing.T) {
	db, mock := redismock.NewClientMock()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	src := newFakeSource()
	r := New(db, src, Config{Prefix: "ts:"}, nil, m)
	r.Attach("orders")

	mock.ExpectPublish("ts:orders", `{"id":1}`).SetErr(errors.New("connection refused"))
	mock.ExpectPublish("ts:orders", `{"id":2}`).SetVal(1)

	assert.NotPanics(t, func() {
		src.Emit("orders", json.RawMessage(`{"id":1}`))
		src.Emit("orders", json.RawMessage(`{"id":2}`))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayFailures.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayPublished.WithLabelValues("orders")))
}

func TestRelay_Close(t *testing.T) {
	db, _ := redismock.NewClientMock()
	src := newFakeSource()
	r := New(db, src, Config{}, nil, nil)

	r.Attach("orders")
	r.Attach("trades:BTC-USDT")
	assert.Equal(t, []string{"orders", "trades:BTC-USDT"}, r.Channels())

	r.Close()
	assert.Empty(t, r.Channels())
	assert.Equal(t, 0, src.Total())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "a|b", message(json.RawMessage(`"a|b"`)))
	assert.Equal(t, `{"x":1}`, message(json.RawMessage(`{"x":1}`)))
	assert.Equal(t, "42", message(json.RawMessage(`42`)))
	assert.Equal(t, "", message(nil))
}
