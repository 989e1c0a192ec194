package odfilter

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// Attributes which are consumed by reformatting. Every trip must have them.
	requiredAttributes = []string{"depart", "from", "to", "type"}
	consumedAttributes = map[string]struct{}{
		"id":     {},
		"depart": {},
		"from":   {},
		"to":     {},
		"type":   {},
	}
)

// Reformat converts raw demand records into trips.
//
// Departure times are parsed as floats, truncated to integers and shifted so the earliest trip starts at 0.
// Identifiers are reassigned to row positions. Attribute `type` is dropped.
func Reformat(raw []RawTrip) ([]Trip, error) {
	trips := make([]Trip, len(raw))
	minDepart := math.MaxInt64
	for i, rawTrip := range raw {
		for _, key := range requiredAttributes {
			if _, ok := rawTrip.Get(key); !ok {
				return nil, errors.Errorf("Trip #%d has no attribute '%s'", i, key)
			}
		}
		departText, _ := rawTrip.Get("depart")
		departFloat, err := strconv.ParseFloat(departText, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't parse 'depart' of trip #%d", i)
		}
		if math.IsNaN(departFloat) || math.IsInf(departFloat, 0) {
			return nil, errors.Errorf("Trip #%d has non-finite 'depart' value '%s'", i, departText)
		}
		depart := int(departFloat)
		if depart < minDepart {
			minDepart = depart
		}
		origin, _ := rawTrip.Get("from")
		destination, _ := rawTrip.Get("to")
		trips[i] = Trip{
			ID:          i,
			StartTime:   depart,
			Origin:      origin,
			Destination: destination,
			Kind:        KindHuman,
		}
		for _, key := range rawTrip.Keys {
			if _, ok := consumedAttributes[key]; ok {
				continue
			}
			trips[i].Extra = append(trips[i].Extra, Attribute{Key: key, Value: rawTrip.Attrs[key]})
		}
	}
	for i := range trips {
		trips[i].StartTime -= minDepart
	}
	return trips, nil
}
