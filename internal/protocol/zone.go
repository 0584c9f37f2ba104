package protocol

import (
	"errors"
	"fmt"
	"strconv"
)

// ZoneUpdateLen is the exact length of a zone update: quote, Z, three zone
// digits, one health digit.
const ZoneUpdateLen = 6

// ErrMalformedZoneUpdate is returned when a zone update's fields are not digits.
var ErrMalformedZoneUpdate = errors.New("malformed zone update")

// Health codes carried in zone updates.
const (
	HealthSecure = 0
	HealthActive = 1
	HealthTamper = 2
)

// ZoneUpdate is the parsed content of a zone update frame.
type ZoneUpdate struct {
	// Zone is the absolute zone number as sent by the panel.
	Zone int
	// Health is the raw health digit.
	Health int
}

// ParseZoneUpdate extracts the zone number and health code. It does not
// check that the frame was classified as a zone update beyond its length.
func ParseZoneUpdate(f Frame) (ZoneUpdate, error) {
	if len(f.data) != ZoneUpdateLen {
		return ZoneUpdate{}, fmt.Errorf("%w: length %d", ErrMalformedZoneUpdate, len(f.data))
	}

	field := string(f.data[2:5])
	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return ZoneUpdate{}, fmt.Errorf("%w: zone field %q", ErrMalformedZoneUpdate, field)
		}
	}
	zone, err := strconv.Atoi(field)
	if err != nil {
		return ZoneUpdate{}, fmt.Errorf("%w: zone field %q", ErrMalformedZoneUpdate, field)
	}

	h := f.data[5]
	if h < '0' || h > '9' {
		return ZoneUpdate{}, fmt.Errorf("%w: health code %q", ErrMalformedZoneUpdate, h)
	}

	return ZoneUpdate{Zone: zone, Health: int(h - '0')}, nil
}
