package service

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"optionbot/internal/models"
	"optionbot/pkg/logger"
)

const staleAfter = 5 * time.Minute

// InstrumentRecord is one entry of a bulk instruments payload. Everything
// the id grammar does not carry comes from the record itself.
type InstrumentRecord struct {
	ID          string  `json:"id"`
	Index       int64   `json:"index"`
	Strike      float64 `json:"strike,string"`
	IsSuspended bool    `json:"is_suspended"`
}

// Cache stores digital-option instruments keyed by instrument id, with a
// composite index for expiry-based resolution. Expired entries are never
// returned: reads filter them out and schedule removal, and a background
// sweep purges the rest.
type Cache struct {
	batchSize int

	mu       sync.RWMutex
	byID     map[string]models.DigitalInstrument
	byKey    map[models.InstrumentKey]string
	inflight map[string]chan struct{}

	updateInProgress atomic.Bool
	lastUpdate       atomic.Int64 // unix seconds; staleness is log-only

	skippedMalformed atomic.Int64
	skippedExpired   atomic.Int64

	now  func() time.Time
	stop chan struct{}
}

func NewCache(batchSize int) *Cache {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Cache{
		batchSize: batchSize,
		byID:      make(map[string]models.DigitalInstrument),
		byKey:     make(map[models.InstrumentKey]string),
		inflight:  make(map[string]chan struct{}),
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// AddInstrument upserts one instrument. Concurrent adds of the same id
// coalesce: the losers wait for the winner's write instead of racing it.
func (c *Cache) AddInstrument(inst models.DigitalInstrument) {
	c.mu.Lock()
	if ch, ok := c.inflight[inst.ID]; ok {
		c.mu.Unlock()
		<-ch
		return
	}
	ch := make(chan struct{})
	c.inflight[inst.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, inst.ID)
		c.mu.Unlock()
		close(ch)
	}()

	c.mu.Lock()
	if prev, ok := c.byID[inst.ID]; ok {
		delete(c.byKey, prev.Key())
	}
	c.byID[inst.ID] = inst
	c.byKey[inst.Key()] = inst.ID
	c.mu.Unlock()
}

// AddRecord parses and stores one raw record. Malformed ids and already
// expired instruments are skipped and counted, never fatal.
func (c *Cache) AddRecord(rec InstrumentRecord) bool {
	inst, err := ParseInstrumentID(rec.ID)
	if err != nil {
		c.skippedMalformed.Add(1)
		logger.Debug("skip instrument: %v", err)
		return false
	}
	if inst.Expired(c.now()) {
		c.skippedExpired.Add(1)
		return false
	}

	inst.Index = rec.Index
	inst.Strike = rec.Strike
	inst.Suspended = rec.IsSuspended
	c.AddInstrument(inst)
	return true
}

// BulkIngest stores records in fixed-size batches, yielding between
// batches so one large payload cannot monopolize the scheduler. Only one
// bulk ingest runs at a time; overlapping calls are dropped.
func (c *Cache) BulkIngest(ctx context.Context, recs []InstrumentRecord) {
	if !c.updateInProgress.CompareAndSwap(false, true) {
		logger.Warn("instrument ingest already in progress, dropping %d records", len(recs))
		return
	}
	defer c.updateInProgress.Store(false)

	added, skippedBefore := 0, c.skippedMalformed.Load()+c.skippedExpired.Load()
	for start := 0; start < len(recs); start += c.batchSize {
		select {
		case <-ctx.Done():
			return
		default:
		}

		end := start + c.batchSize
		if end > len(recs) {
			end = len(recs)
		}
		for _, rec := range recs[start:end] {
			if c.AddRecord(rec) {
				added++
			}
		}
		runtime.Gosched()
	}

	c.lastUpdate.Store(c.now().Unix())
	skipped := c.skippedMalformed.Load() + c.skippedExpired.Load() - skippedBefore
	logger.Info("instrument ingest done: added=%d skipped=%d", added, skipped)
}

// ByKey serves the market cache's composite lookup. Expired hits are
// filtered and queued for removal.
func (c *Cache) ByKey(key models.InstrumentKey) (models.DigitalInstrument, bool) {
	c.warnIfStale()

	c.mu.RLock()
	id, ok := c.byKey[key]
	var inst models.DigitalInstrument
	if ok {
		inst = c.byID[id]
	}
	c.mu.RUnlock()

	if !ok {
		return models.DigitalInstrument{}, false
	}
	if inst.Expired(c.now()) {
		go c.remove(inst.ID)
		return models.DigitalInstrument{}, false
	}
	return inst, true
}

// ByActiveID returns all live instruments for one active.
func (c *Cache) ByActiveID(activeID int) []models.DigitalInstrument {
	return c.collect(func(i models.DigitalInstrument) bool {
		return i.ActiveID == activeID
	})
}

// ByParams returns live instruments matching (active, duration, direction).
func (c *Cache) ByParams(activeID, duration int, direction models.Direction) []models.DigitalInstrument {
	return c.collect(func(i models.DigitalInstrument) bool {
		return i.ActiveID == activeID && i.Duration == duration && i.Direction == direction
	})
}

func (c *Cache) collect(match func(models.DigitalInstrument) bool) []models.DigitalInstrument {
	c.warnIfStale()
	now := c.now()

	var out []models.DigitalInstrument
	var expired []string

	c.mu.RLock()
	for _, inst := range c.byID {
		if !match(inst) {
			continue
		}
		if inst.Expired(now) {
			expired = append(expired, inst.ID)
			continue
		}
		out = append(out, inst)
	}
	c.mu.RUnlock()

	if len(expired) > 0 {
		go c.removeAll(expired)
	}
	return out
}

func (c *Cache) remove(id string) {
	c.removeAll([]string{id})
}

func (c *Cache) removeAll(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if inst, ok := c.byID[id]; ok {
			delete(c.byKey, inst.Key())
			delete(c.byID, id)
		}
	}
}

// StartSweeper runs the periodic expiry sweep until Stop.
func (c *Cache) StartSweeper(interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) Stop() {
	close(c.stop)
}

func (c *Cache) sweep() {
	now := c.now()
	var expired []string

	c.mu.RLock()
	for id, inst := range c.byID {
		if inst.Expired(now) {
			expired = append(expired, id)
		}
	}
	c.mu.RUnlock()

	if len(expired) > 0 {
		c.removeAll(expired)
		logger.Debug("instrument sweep removed %d entries", len(expired))
	}
}

func (c *Cache) warnIfStale() {
	last := c.lastUpdate.Load()
	if last == 0 {
		return
	}
	if age := c.now().Unix() - last; age > int64(staleAfter/time.Second) {
		logger.Warn("instrument cache stale: last bulk update %ds ago", age)
	}
}

// Size reports live entries; Skipped reports cumulative reject counters.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *Cache) Skipped() (malformed, expired int64) {
	return c.skippedMalformed.Load(), c.skippedExpired.Load()
}
