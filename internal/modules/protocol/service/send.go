package service

import (
	"context"
	"time"

	"optionbot/internal/brokererr"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type result struct {
	frame Frame
	err   error
}

type pendingRequest struct {
	ch    chan result
	timer *time.Timer
}

// Send serializes a sendMessage envelope and blocks until the broker
// replies with a frame carrying the same request_id, the per-call timeout
// fires, or ctx is cancelled. Valid only in the authenticated state.
// Exactly one correlation entry exists per in-flight id; it is removed on
// resolve, reject or timeout.
func (c *Client) Send(ctx context.Context, name, version string, body interface{}, requestID string) (Frame, error) {
	if c.State() != StateAuthenticated {
		return Frame{}, errors.Wrapf(brokererr.ErrConnection, "send %s: not authenticated", name)
	}

	id := requestID
	if id == "" {
		id = c.nextRequestID()
	}

	ch := make(chan result, 1)
	pr := &pendingRequest{ch: ch}
	pr.timer = time.AfterFunc(c.cfg.RequestTimeout, func() {
		if c.removePending(id) != nil {
			ch <- result{err: errors.Wrapf(brokererr.ErrRequestTimeout, "%s (request_id=%s)", name, id)}
		}
	})

	c.pmu.Lock()
	c.pending[id] = pr
	c.pmu.Unlock()

	env := sendMessageFrame{
		Name:      frameSendMessage,
		RequestID: id,
		Msg: sendMessageBody{
			Name:      name,
			Version:   version,
			Body:      body,
			RequestID: id,
		},
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.abortPending(id)
		return Frame{}, errors.Wrapf(brokererr.ErrConnection, "send %s: socket gone", name)
	}
	if err := c.writeFrame(conn, env); err != nil {
		c.abortPending(id)
		return Frame{}, errors.Wrapf(brokererr.ErrConnection, "send %s: %v", name, err)
	}

	select {
	case res := <-ch:
		return res.frame, res.err
	case <-ctx.Done():
		c.abortPending(id)
		return Frame{}, ctx.Err()
	}
}

// SendFrame writes a one-way frame outside the correlation table. The
// broker does not acknowledge these; only the write itself can fail.
func (c *Client) SendFrame(name string, msg interface{}) error {
	if c.State() != StateAuthenticated {
		return errors.Wrapf(brokererr.ErrConnection, "send %s: not authenticated", name)
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.Wrapf(brokererr.ErrConnection, "send %s: socket gone", name)
	}
	return c.writeFrame(conn, rawFrame{Name: name, Msg: msg, RequestID: c.nextRequestID()})
}

// resolvePending delivers a correlated reply. Error frames reject the
// caller instead of resolving it.
func (c *Client) resolvePending(f Frame) bool {
	pr := c.removePending(f.RequestID)
	if pr == nil {
		return false
	}
	pr.timer.Stop()

	if f.IsError() {
		var reason string
		_ = sonic.Unmarshal(f.Payload(), &reason)
		pr.ch <- result{err: errors.Errorf("request %s rejected: status=%d %s", f.RequestID, f.Status, reason)}
		return true
	}
	pr.ch <- result{frame: f}
	return true
}

func (c *Client) removePending(id string) *pendingRequest {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	pr, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return pr
}

func (c *Client) abortPending(id string) {
	if pr := c.removePending(id); pr != nil {
		pr.timer.Stop()
	}
}
