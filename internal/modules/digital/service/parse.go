package service

import (
	"regexp"
	"strconv"
	"time"

	"optionbot/internal/brokererr"
	"optionbot/internal/models"

	"github.com/pkg/errors"
)

// instrument id grammar: do{activeId}A{YYYYMMDD}D{HHMMSS}T{duration}M{C|P}SPT
var instrumentIDRe = regexp.MustCompile(`^do(\d+)A(\d{8})D(\d{6})T(\d+)M([CP])SPT$`)

// ParseInstrumentID decodes the broker's textual instrument id. The
// expiry encoded in the id is interpreted as UTC.
func ParseInstrumentID(id string) (models.DigitalInstrument, error) {
	m := instrumentIDRe.FindStringSubmatch(id)
	if m == nil {
		return models.DigitalInstrument{}, errors.Wrapf(brokererr.ErrPayloadFormat, "malformed instrument id %q", id)
	}

	activeID, err := strconv.Atoi(m[1])
	if err != nil {
		return models.DigitalInstrument{}, errors.Wrapf(brokererr.ErrPayloadFormat, "instrument id %q: active id", id)
	}
	expiry, err := time.Parse("20060102150405", m[2]+m[3])
	if err != nil {
		return models.DigitalInstrument{}, errors.Wrapf(brokererr.ErrPayloadFormat, "instrument id %q: expiry", id)
	}
	duration, err := strconv.Atoi(m[4])
	if err != nil || (duration != 1 && duration != 5) {
		return models.DigitalInstrument{}, errors.Wrapf(brokererr.ErrPayloadFormat, "instrument id %q: duration %s", id, m[4])
	}

	direction := models.DirectionCall
	if m[5] == "P" {
		direction = models.DirectionPut
	}

	return models.DigitalInstrument{
		ID:        id,
		ActiveID:  activeID,
		Expiry:    expiry.UTC(),
		Duration:  duration,
		Direction: direction,
	}, nil
}
