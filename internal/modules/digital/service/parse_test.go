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

func TestParseInstrumentID(t *testing.T) {
	inst, err := ParseInstrumentID("do76A20240115D143000T1MCSPT")
	require.NoError(t, err)

	assert.Equal(t, 76, inst.ActiveID)
	assert.Equal(t, 1, inst.Duration)
	assert.Equal(t, models.DirectionCall, inst.Direction)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), inst.Expiry)
}

func TestParseInstrumentIDPut(t *testing.T) {
	inst, err := ParseInstrumentID("do1A20251231D235500T5MPSPT")
	require.NoError(t, err)

	assert.Equal(t, 1, inst.ActiveID)
	assert.Equal(t, 5, inst.Duration)
	assert.Equal(t, models.DirectionPut, inst.Direction)
}

func TestParseInstrumentIDMalformed(t *testing.T) {
	cases := []string{
		"",
		"do76A20240115D143000T1MC",    // missing SPT suffix
		"76A20240115D143000T1MCSPT",   // missing do prefix
		"do76A2024D143000T1MCSPT",     // short date
		"do76A20240115D1430T1MCSPT",   // short time
		"do76A20240115D143000T3MCSPT", // unsupported duration
		"do76A20240115D143000T1MXSPT", // bad direction
	}
	for _, id := range cases {
		_, err := ParseInstrumentID(id)
		assert.Truef(t, errors.Is(err, brokererr.ErrPayloadFormat), "id %q: got %v", id, err)
	}
}
