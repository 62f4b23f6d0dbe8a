package dispatch

import (
	"encoding/json"
	"sync"
	"testing"
)

func TestDispatcher_EmitOrder(t *testing.T) {
	d := New(nil)

	var calls []int
	for i := 1; i <= 3; i++ {
		i := i
		d.On("orders", func(json.RawMessage) { calls = append(calls, i) })
	}

	d.Emit("orders", json.RawMessage(`{}`))

	if len(calls) != 3 {
		t.Fatalf("got %d calls, want 3", len(calls))
	}
	for i, c := range calls {
		if c != i+1 {
			t.Errorf("call %d = %d, want %d", i, c, i+1)
		}
	}
}

func TestDispatcher_DuplicateRegistration(t *testing.T) {
	d := New(nil)

	count := 0
	h := func(json.RawMessage) { count++ }
	d.On("prices:ETH-USDT", h)
	d.On("prices:ETH-USDT", h)

	d.Emit("prices:ETH-USDT", nil)

	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestDispatcher_Off(t *testing.T) {
	d := New(nil)

	count := 0
	h := func(json.RawMessage) { count++ }
	first := d.On("orders", h)
	d.On("orders", h)

	d.Off("orders", first)
	d.Emit("orders", nil)
	if count != 1 {
		t.Errorf("count after Off = %d, want 1", count)
	}

	// Unknown event and unknown id are no-ops
	d.Off("nope", first)
	d.Off("orders", ListenerID(9999))
	d.Off("orders", first)
	if got := d.Count("orders"); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}

func TestDispatcher_EmitNoHandlers(t *testing.T) {
	d := New(nil)
	d.Emit("nobody", json.RawMessage(`1`))
}

func TestDispatcher_HandlerIsolation(t *testing.T) {
	d := New(nil)

	var panicked []string
	d.SetPanicObserver(func(event string) { panicked = append(panicked, event) })

	var got json.RawMessage
	d.On("orders", func(json.RawMessage) { panic("boom") })
	d.On("orders", func(p json.RawMessage) { got = p })

	payload := json.RawMessage(`{"order_id":"1"}`)
	d.Emit("orders", payload)

	if string(got) != string(payload) {
		t.Errorf("second handler got %s, want %s", got, payload)
	}
	if len(panicked) != 1 || panicked[0] != "orders" {
		t.Errorf("panic observer calls = %v, want [orders]", panicked)
	}
}

func TestDispatcher_OffDuringEmit(t *testing.T) {
	d := New(nil)

	var second ListenerID
	calls := 0
	d.On("x", func(json.RawMessage) {
		calls++
		d.Off("x", second)
	})
	second = d.On("x", func(json.RawMessage) { calls++ })

	// The snapshot taken at emit time still includes the second handler.
	d.Emit("x", nil)
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	d.Emit("x", nil)
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDispatcher_Clear(t *testing.T) {
	d := New(nil)
	d.On("a", func(json.RawMessage) {})
	d.On("b", func(json.RawMessage) {})

	if got := d.Total(); got != 2 {
		t.Fatalf("Total = %d, want 2", got)
	}

	d.Clear()
	if got := d.Total(); got != 0 {
		t.Errorf("Total after Clear = %d, want 0", got)
	}
}

func TestDispatcher_Concurrent(t *testing.T) {
	d := New(nil)

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := d.On("x", func(json.RawMessage) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			d.Emit("x", nil)
			d.Off("x", id)
		}()
	}
	wg.Wait()

	if got := d.Count("x"); got != 0 {
		t.Errorf("Count = %d, want 0", got)
	}
	if count < 50 {
		t.Errorf("count = %d, want >= 50", count)
	}
}
