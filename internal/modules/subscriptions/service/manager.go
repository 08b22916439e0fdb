package service

import (
	"sort"
	"strings"
	"sync"
	"time"

	"optionbot/internal/modules/config"
	proto "optionbot/internal/modules/protocol/service"
	"optionbot/pkg/logger"

	"github.com/bytedance/sonic"
)

// ProtocolClient is the slice of the protocol client the manager needs.
type ProtocolClient interface {
	SendFrame(name string, msg interface{}) error
	OnConnEvent(fn func(proto.ConnEvent))
	State() proto.State
}

// Key identifies one subscription: a message kind plus its canonical
// parameter serialization.
type Key struct {
	Kind   string
	Params string
}

type subscription struct {
	kind   string
	params map[string]interface{}
}

type removal struct {
	sub      subscription
	attempts int
}

type subscribeMsg struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Manager keeps the desired subscription set and converges the broker to
// it: idempotent subscribe/unsubscribe, bounded per-key retry, and full
// re-initialization after a disconnect.
type Manager struct {
	cfg    *config.Config
	client ProtocolClient

	mu          sync.Mutex
	active      map[Key]subscription
	attempts    map[Key]int
	removing    map[Key]*removal
	initialized bool
}

func NewManager(cfg *config.Config, client ProtocolClient) *Manager {
	m := &Manager{
		cfg:      cfg,
		client:   client,
		active:   make(map[Key]subscription),
		attempts: make(map[Key]int),
		removing: make(map[Key]*removal),
	}
	client.OnConnEvent(m.onConnEvent)
	return m
}

func paramsKey(params map[string]interface{}) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		v, _ := sonic.MarshalString(params[k])
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(v)
	}
	return b.String()
}

// Subscribe is a no-op when the key is already active.
func (m *Manager) Subscribe(kind string, params map[string]interface{}) {
	key := Key{Kind: kind, Params: paramsKey(params)}

	m.mu.Lock()
	if _, ok := m.active[key]; ok {
		m.mu.Unlock()
		return
	}
	m.active[key] = subscription{kind: kind, params: params}
	m.attempts[key] = 0
	delete(m.removing, key) // resubscribing cancels a pending unsubscribe
	m.mu.Unlock()

	m.sendSubscribe(key)
}

// Unsubscribe is a no-op when the key is not active.
func (m *Manager) Unsubscribe(kind string, params map[string]interface{}) {
	key := Key{Kind: kind, Params: paramsKey(params)}

	m.mu.Lock()
	if _, ok := m.active[key]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.active, key)
	delete(m.attempts, key)
	m.removing[key] = &removal{sub: subscription{kind: kind, params: params}}
	m.mu.Unlock()

	m.sendUnsubscribe(key)
}

// sendUnsubscribe mirrors sendSubscribe: bounded per-key retry, silent
// abandonment on exhaustion. An abandoned key leaves the broker streaming
// until the next reconnect drops the socket-side state.
func (m *Manager) sendUnsubscribe(key Key) {
	m.mu.Lock()
	r, ok := m.removing[key]
	m.mu.Unlock()
	if !ok {
		return // resubscribed or already confirmed while a retry was pending
	}

	err := m.client.SendFrame("unsubscribeMessage", subscribeMsg{Name: r.sub.kind, Params: r.sub.params})
	if err == nil {
		m.mu.Lock()
		delete(m.removing, key)
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	r.attempts++
	n := r.attempts
	exhausted := n >= m.cfg.SubscribeRetryAttempts
	if exhausted {
		delete(m.removing, key)
	}
	m.mu.Unlock()

	if exhausted {
		logger.Error("unsubscribe %s abandoned after %d attempts: %v", r.sub.kind, n, err)
		return
	}

	logger.Warn("unsubscribe %s failed (attempt %d), retrying in %s: %v", r.sub.kind, n, m.cfg.SubscribeRetryDelay, err)
	time.AfterFunc(m.cfg.SubscribeRetryDelay, func() { m.sendUnsubscribe(key) })
}

// Active reports whether the key is in the desired set.
func (m *Manager) Active(kind string, params map[string]interface{}) bool {
	key := Key{Kind: kind, Params: paramsKey(params)}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[key]
	return ok
}

func (m *Manager) sendSubscribe(key Key) {
	m.mu.Lock()
	sub, ok := m.active[key]
	m.mu.Unlock()
	if !ok {
		return // unsubscribed while a retry was pending
	}

	err := m.client.SendFrame("subscribeMessage", subscribeMsg{Name: sub.kind, Params: sub.params})
	if err == nil {
		m.mu.Lock()
		m.attempts[key] = 0
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.attempts[key]++
	n := m.attempts[key]
	exhausted := n >= m.cfg.SubscribeRetryAttempts
	if exhausted {
		delete(m.attempts, key)
	}
	m.mu.Unlock()

	if exhausted {
		// degrade silently: the caller never sees subscription errors
		logger.Error("subscribe %s abandoned after %d attempts: %v", sub.kind, n, err)
		return
	}

	logger.Warn("subscribe %s failed (attempt %d), retrying in %s: %v", sub.kind, n, m.cfg.SubscribeRetryDelay, err)
	time.AfterFunc(m.cfg.SubscribeRetryDelay, func() { m.sendSubscribe(key) })
}

// Initialize pushes the whole desired set to the broker and marks the
// manager as initialized so disconnects trigger re-initialization.
func (m *Manager) Initialize() {
	m.mu.Lock()
	m.initialized = true
	keys := make([]Key, 0, len(m.active))
	for k := range m.active {
		keys = append(keys, k)
	}
	m.mu.Unlock()

	for _, k := range keys {
		m.sendSubscribe(k)
	}
}

func (m *Manager) onConnEvent(ev proto.ConnEvent) {
	if ev != proto.EventDisconnected {
		return
	}
	m.mu.Lock()
	initialized := m.initialized
	m.mu.Unlock()
	if !initialized {
		return
	}
	go m.reinit(m.cfg.ResubscribeDelay)
}

// reinit waits out the reconnect window and re-subscribes everything,
// doubling the wait while the client is still down. A terminal reconnect
// failure stops the loop until a fresh Connect.
func (m *Manager) reinit(delay time.Duration) {
	time.Sleep(delay)

	switch m.client.State() {
	case proto.StateError:
		logger.Error("resubscribe abandoned: client in terminal error state")
		return
	case proto.StateAuthenticated:
		logger.Info("resubscribing after reconnect")
		m.Initialize()
		return
	default:
		m.reinit(delay * 2)
	}
}
