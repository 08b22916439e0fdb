package service

import (
	"sync"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"

	"github.com/pkg/errors"
)

// InstrumentIndex is the composite-key lookup the digital cache exposes.
type InstrumentIndex interface {
	ByKey(key models.InstrumentKey) (models.DigitalInstrument, bool)
}

type OpenState struct {
	Subtype string // "binary" | "turbo"
	IsOpen  bool
}

// expiry offsets probed after an exact miss: earlier expiries first,
// nearest first. Anything beyond ±2s is a miss.
var toleranceOffsets = []int64{-1, -2, 1, 2}

// Cache holds the broker's market metadata tables. All updates are
// last-write-wins; there is no history.
type Cache struct {
	index InstrumentIndex

	mu          sync.RWMutex
	names       map[int]string
	commissions map[int]int // open_percent per active id
	openState   map[int]OpenState
	values      map[int]float64

	now func() time.Time
}

func NewCache(index InstrumentIndex) *Cache {
	return &Cache{
		index:       index,
		names:       make(map[int]string),
		commissions: make(map[int]int),
		openState:   make(map[int]OpenState),
		values:      make(map[int]float64),
		now:         time.Now,
	}
}

func (c *Cache) SetName(activeID int, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[activeID] = name
}

func (c *Cache) Name(activeID int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[activeID]
	return name, ok
}

// ActiveIDByName reverses the name table. The tables are small (a few
// hundred actives), a linear scan is fine.
func (c *Cache) ActiveIDByName(name string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, n := range c.names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

func (c *Cache) SetCommission(activeID, openPercent int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commissions[activeID] = openPercent
}

func (c *Cache) SetOpenState(activeID int, subtype string, isOpen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openState[activeID] = OpenState{Subtype: subtype, IsOpen: isOpen}
}

func (c *Cache) OpenStateFor(activeID int) (OpenState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.openState[activeID]
	return st, ok
}

func (c *Cache) SetValue(activeID int, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[activeID] = v
}

func (c *Cache) Value(activeID int) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[activeID]
	return v, ok
}

// BinaryPayout returns max(0, 100 - open_percent), ok=false when the
// commission for the active is unknown.
func (c *Cache) BinaryPayout(activeID int) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	openPercent, ok := c.commissions[activeID]
	if !ok {
		return 0, false
	}
	payout := 100 - openPercent
	if payout < 0 {
		payout = 0
	}
	return payout, true
}

// ResolveDigitalInstrument finds the instrument for (active, expiry,
// duration, direction). The exact expiry is tried first; on a miss the
// tolerance offsets are probed in fixed order and the first hit wins.
func (c *Cache) ResolveDigitalInstrument(activeID int, expiry int64, duration int, direction models.Direction) (models.DigitalInstrument, error) {
	key := models.InstrumentKey{
		ActiveID:  activeID,
		Expiry:    expiry,
		Duration:  duration,
		Direction: direction,
	}
	if inst, ok := c.index.ByKey(key); ok {
		return inst, nil
	}

	for _, off := range toleranceOffsets {
		key.Expiry = expiry + off
		if inst, ok := c.index.ByKey(key); ok {
			return inst, nil
		}
	}

	return models.DigitalInstrument{}, errors.Wrapf(brokererr.ErrInstrumentNotFound,
		"active=%d expiry=%d duration=%dm direction=%s (±2s searched)", activeID, expiry, duration, direction)
}
