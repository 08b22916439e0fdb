package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"optionbot/internal/models"
	"optionbot/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if _, err := logger.Init("fatal"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func instrumentID(activeID int, expiry time.Time, duration int, dir string) string {
	return fmt.Sprintf("do%dA%sD%sT%dM%sSPT",
		activeID, expiry.Format("20060102"), expiry.Format("150405"), duration, dir)
}

func newTestCache(now time.Time) *Cache {
	c := NewCache(50)
	c.now = func() time.Time { return now }
	return c
}

func TestAddRecordAndByKey(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	id := instrumentID(76, now.Add(30*time.Minute), 1, "C")
	require.True(t, c.AddRecord(InstrumentRecord{ID: id, Index: 7}))

	inst, ok := c.ByKey(models.InstrumentKey{
		ActiveID:  76,
		Expiry:    now.Add(30 * time.Minute).Unix(),
		Duration:  1,
		Direction: models.DirectionCall,
	})
	require.True(t, ok)
	assert.Equal(t, id, inst.ID)
	assert.Equal(t, int64(7), inst.Index)
}

func TestAddRecordSkipsMalformedAndExpired(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	assert.False(t, c.AddRecord(InstrumentRecord{ID: "garbage"}))
	assert.False(t, c.AddRecord(InstrumentRecord{ID: instrumentID(5, now.Add(-time.Minute), 1, "C")}))

	malformed, expired := c.Skipped()
	assert.Equal(t, int64(1), malformed)
	assert.Equal(t, int64(1), expired)
	assert.Equal(t, 0, c.Size())
}

func TestExpiredNeverReturned(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	expiry := now.Add(time.Minute)
	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(76, expiry, 1, "C")}))

	// entry expires once the clock moves past it
	c.now = func() time.Time { return expiry }

	_, ok := c.ByKey(models.InstrumentKey{
		ActiveID: 76, Expiry: expiry.Unix(), Duration: 1, Direction: models.DirectionCall,
	})
	assert.False(t, ok)
	assert.Empty(t, c.ByActiveID(76))
	assert.Empty(t, c.ByParams(76, 1, models.DirectionCall))
}

func TestQueriesFilter(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(76, now.Add(time.Minute), 1, "C")}))
	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(76, now.Add(2*time.Minute), 1, "P")}))
	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(99, now.Add(time.Minute), 5, "C")}))

	assert.Len(t, c.ByActiveID(76), 2)
	assert.Len(t, c.ByParams(76, 1, models.DirectionCall), 1)
	assert.Empty(t, c.ByParams(76, 5, models.DirectionCall))
}

func TestSweepRemovesExpired(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(1, now.Add(time.Minute), 1, "C")}))
	require.True(t, c.AddRecord(InstrumentRecord{ID: instrumentID(2, now.Add(time.Hour), 1, "C")}))
	require.Equal(t, 2, c.Size())

	c.now = func() time.Time { return now.Add(10 * time.Minute) }
	c.sweep()
	assert.Equal(t, 1, c.Size())
}

func TestBulkIngestBatches(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)
	c.batchSize = 10

	var recs []InstrumentRecord
	for i := 1; i <= 35; i++ {
		recs = append(recs, InstrumentRecord{ID: instrumentID(i, now.Add(time.Hour), 1, "C")})
	}
	recs = append(recs, InstrumentRecord{ID: "bogus"})

	c.BulkIngest(context.Background(), recs)
	assert.Equal(t, 35, c.Size())

	malformed, _ := c.Skipped()
	assert.Equal(t, int64(1), malformed)
}

func TestBulkIngestNoOverlap(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	// a running ingest makes a second one a no-op
	c.updateInProgress.Store(true)
	c.BulkIngest(context.Background(), []InstrumentRecord{
		{ID: instrumentID(1, now.Add(time.Hour), 1, "C")},
	})
	assert.Equal(t, 0, c.Size())
}

func TestAddInstrumentCoalesces(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC)
	c := newTestCache(now)

	inst := models.DigitalInstrument{
		ID: "do1A20240115D150000T1MCSPT", ActiveID: 1,
		Expiry: now.Add(time.Hour), Duration: 1, Direction: models.DirectionCall,
	}

	// simulate an in-flight write for the same id
	gate := make(chan struct{})
	c.mu.Lock()
	c.inflight[inst.ID] = gate
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.AddInstrument(inst) // must wait on the gate, then coalesce
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("AddInstrument did not wait for the in-flight write")
	case <-time.After(20 * time.Millisecond):
	}

	close(gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AddInstrument never returned")
	}
	// the coalesced caller skips its own write
	assert.Equal(t, 0, c.Size())
}
