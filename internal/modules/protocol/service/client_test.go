package service

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/modules/config"
	"optionbot/pkg/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("fatal"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestClient() *Client {
	return NewClient(&config.Config{
		AuthTimeout:    time.Second,
		RequestTimeout: time.Second,
	})
}

func addPending(c *Client, id string) chan result {
	ch := make(chan result, 1)
	c.pmu.Lock()
	c.pending[id] = &pendingRequest{ch: ch, timer: time.AfterFunc(time.Hour, func() {})}
	c.pmu.Unlock()
	return ch
}

func TestFramePayloadPrefersMsg(t *testing.T) {
	f := Frame{Msg: json.RawMessage(`"from-msg"`), Data: json.RawMessage(`"from-data"`)}
	assert.Equal(t, json.RawMessage(`"from-msg"`), f.Payload())

	f = Frame{Data: json.RawMessage(`"from-data"`)}
	assert.Equal(t, json.RawMessage(`"from-data"`), f.Payload())
}

func TestFrameIsError(t *testing.T) {
	assert.True(t, Frame{Name: "error"}.IsError())
	assert.True(t, Frame{Name: "result", Status: 4001}.IsError())
	assert.False(t, Frame{Name: "result", Status: 2000}.IsError())
	assert.False(t, Frame{Name: "candle-generated"}.IsError())
}

func TestDispatchCorrelatedFrameConsumedOnce(t *testing.T) {
	c := newTestClient()
	ch := addPending(c, "17")

	var handled []Frame
	c.On("option-opened", func(f Frame) { handled = append(handled, f) })

	f := Frame{Name: "option-opened", RequestID: "17", Msg: json.RawMessage(`{"id":1}`)}
	c.dispatch(f)

	// the reply went to the waiter, not the name handlers
	select {
	case res := <-ch:
		require.NoError(t, res.err)
		assert.Equal(t, "17", res.frame.RequestID)
	default:
		t.Fatal("pending request not resolved")
	}
	assert.Empty(t, handled)

	// the id is gone: a second frame with it is an ordinary push
	c.dispatch(f)
	assert.Len(t, handled, 1)
}

func TestDispatchErrorFrameRejectsWaiter(t *testing.T) {
	c := newTestClient()
	ch := addPending(c, "5")

	c.dispatch(Frame{Name: "result", RequestID: "5", Status: 4103, Msg: json.RawMessage(`"not enough money"`)})

	res := <-ch
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "4103")
	assert.Contains(t, res.err.Error(), "not enough money")
}

func TestDispatchUncorrelatedFrameReachesHandlers(t *testing.T) {
	c := newTestClient()

	var got []Frame
	c.On("candle-generated", func(f Frame) { got = append(got, f) })

	c.dispatch(Frame{Name: "candle-generated", Msg: json.RawMessage(`{}`)})
	c.dispatch(Frame{Name: "candle-generated", RequestID: "9999", Msg: json.RawMessage(`{}`)})
	c.dispatch(Frame{Name: "something-else"})

	// both the plain push and the unknown-id frame land here
	assert.Len(t, got, 2)
}

func TestDispatchTimeSyncUpdatesServerTime(t *testing.T) {
	c := newTestClient()

	var handled int
	c.On(frameTimeSync, func(Frame) { handled++ })

	c.dispatch(Frame{Name: frameTimeSync, Msg: json.RawMessage(`1700000000123`)})

	assert.Equal(t, int64(1700000000123), c.serverTime.Load())
	assert.Zero(t, handled)
}

func TestResolveAuthAccepts(t *testing.T) {
	c := newTestClient()
	authCh := make(chan error, 1)
	c.mu.Lock()
	c.authCh = authCh
	c.mu.Unlock()

	c.dispatch(Frame{Name: frameProfile, Msg: json.RawMessage(`{"balance":100}`)})

	require.Len(t, authCh, 1)
	assert.NoError(t, <-authCh)
}

func TestResolveAuthRejectsOnFalse(t *testing.T) {
	c := newTestClient()
	authCh := make(chan error, 1)
	c.mu.Lock()
	c.authCh = authCh
	c.mu.Unlock()

	c.dispatch(Frame{Name: frameAuthenticated, Msg: json.RawMessage(`false`)})

	err := <-authCh
	require.Error(t, err)
	assert.True(t, errors.Is(err, brokererr.ErrAuth))
}

func TestAuthFramesAfterHandshakeFallThrough(t *testing.T) {
	c := newTestClient()

	var got int
	c.On(frameProfile, func(Frame) { got++ })

	// no handshake window armed: profile is an ordinary push
	c.dispatch(Frame{Name: frameProfile, Msg: json.RawMessage(`{}`)})
	assert.Equal(t, 1, got)
}

func TestSendRequiresAuthenticatedState(t *testing.T) {
	c := newTestClient()

	_, err := c.Send(context.Background(), "get-candles", "2.0", nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, brokererr.ErrConnection))

	err = c.SendFrame("subscribeMessage", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, brokererr.ErrConnection))
}

func TestRequestTimeoutRejectsWaiter(t *testing.T) {
	c := NewClient(&config.Config{RequestTimeout: 5 * time.Millisecond})
	c.setState(StateAuthenticated)

	// no conn: Send aborts before registering a waiter
	_, err := c.Send(context.Background(), "get-candles", "2.0", nil, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, brokererr.ErrConnection))

	// a registered waiter with no reply times out on its own
	ch := make(chan result, 1)
	id := "42"
	pr := &pendingRequest{ch: ch}
	pr.timer = time.AfterFunc(c.cfg.RequestTimeout, func() {
		if c.removePending(id) != nil {
			ch <- result{err: errors.Wrap(brokererr.ErrRequestTimeout, "get-candles")}
		}
	})
	c.pmu.Lock()
	c.pending[id] = pr
	c.pmu.Unlock()

	select {
	case res := <-ch:
		assert.True(t, errors.Is(res.err, brokererr.ErrRequestTimeout))
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	c.pmu.Lock()
	_, still := c.pending[id]
	c.pmu.Unlock()
	assert.False(t, still)
}

func TestConnEventReachesAllWatchers(t *testing.T) {
	c := newTestClient()

	var got []ConnEvent
	c.OnConnEvent(func(ev ConnEvent) { got = append(got, ev) })
	c.OnConnEvent(func(ev ConnEvent) { got = append(got, ev) })

	c.emit(EventConnected)
	c.emit(EventDisconnected)

	assert.Equal(t, []ConnEvent{
		EventConnected, EventConnected,
		EventDisconnected, EventDisconnected,
	}, got)
}

func TestNextRequestIDMonotonic(t *testing.T) {
	c := newTestClient()
	a := c.nextRequestID()
	b := c.nextRequestID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, "1", a)
	assert.Equal(t, "2", b)
}
