package service

import (
	"testing"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	byKey map[models.InstrumentKey]models.DigitalInstrument
}

func (f *fakeIndex) ByKey(key models.InstrumentKey) (models.DigitalInstrument, bool) {
	inst, ok := f.byKey[key]
	return inst, ok
}

func newFakeIndex(insts ...models.DigitalInstrument) *fakeIndex {
	idx := &fakeIndex{byKey: make(map[models.InstrumentKey]models.DigitalInstrument)}
	for _, i := range insts {
		idx.byKey[i.Key()] = i
	}
	return idx
}

func timeAt(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func instAt(id string, expiry int64) models.DigitalInstrument {
	return models.DigitalInstrument{
		ID:        id,
		ActiveID:  76,
		Expiry:    timeAt(expiry),
		Duration:  1,
		Direction: models.DirectionCall,
	}
}

func TestBinaryPayout(t *testing.T) {
	c := NewCache(newFakeIndex())

	_, ok := c.BinaryPayout(1)
	assert.False(t, ok)

	c.SetCommission(1, 15)
	payout, ok := c.BinaryPayout(1)
	require.True(t, ok)
	assert.Equal(t, 85, payout)

	// open percent above 100 clamps to zero
	c.SetCommission(2, 120)
	payout, ok = c.BinaryPayout(2)
	require.True(t, ok)
	assert.Equal(t, 0, payout)
}

func TestResolveExactBeforeTolerance(t *testing.T) {
	exact := instAt("exact", 1000)
	near := instAt("near", 999)
	c := NewCache(newFakeIndex(exact, near))

	inst, err := c.ResolveDigitalInstrument(76, 1000, 1, models.DirectionCall)
	require.NoError(t, err)
	assert.Equal(t, "exact", inst.ID)
}

func TestResolveToleranceOrder(t *testing.T) {
	// only -2 and +1 exist: -2 is probed before +1
	c := NewCache(newFakeIndex(instAt("minus2", 998), instAt("plus1", 1001)))

	inst, err := c.ResolveDigitalInstrument(76, 1000, 1, models.DirectionCall)
	require.NoError(t, err)
	assert.Equal(t, "minus2", inst.ID)

	// -1 beats -2
	c = NewCache(newFakeIndex(instAt("minus1", 999), instAt("minus2", 998)))
	inst, err = c.ResolveDigitalInstrument(76, 1000, 1, models.DirectionCall)
	require.NoError(t, err)
	assert.Equal(t, "minus1", inst.ID)
}

func TestResolveMissBeyondTolerance(t *testing.T) {
	c := NewCache(newFakeIndex(instAt("far", 1003)))

	_, err := c.ResolveDigitalInstrument(76, 1000, 1, models.DirectionCall)
	assert.True(t, errors.Is(err, brokererr.ErrInstrumentNotFound))
}

func TestNameAndOpenStateTables(t *testing.T) {
	c := NewCache(newFakeIndex())

	c.SetName(76, "EURUSD")
	name, ok := c.Name(76)
	require.True(t, ok)
	assert.Equal(t, "EURUSD", name)

	id, ok := c.ActiveIDByName("EURUSD")
	require.True(t, ok)
	assert.Equal(t, 76, id)

	_, ok = c.ActiveIDByName("GBPJPY")
	assert.False(t, ok)

	c.SetOpenState(76, "turbo", true)
	st, ok := c.OpenStateFor(76)
	require.True(t, ok)
	assert.Equal(t, "turbo", st.Subtype)
	assert.True(t, st.IsOpen)

	// last write wins
	c.SetOpenState(76, "turbo", false)
	st, _ = c.OpenStateFor(76)
	assert.False(t, st.IsOpen)
}
