package odfilter

import "fmt"

// KindHuman marks a trip as generated by a human driver
const KindHuman = "Human"

// RawTrip is a single `trip` element as it appears in the demand file.
// Keys keeps attributes in document order.
type RawTrip struct {
	Keys  []string
	Attrs map[string]string
}

// Get returns attribute value and whether it has been set
func (raw RawTrip) Get(key string) (string, bool) {
	v, ok := raw.Attrs[key]
	return v, ok
}

// Attribute is a key-value pair which has not been consumed by reformatting
type Attribute struct {
	Key   string
	Value string
}

// Trip is a reformatted demand record
type Trip struct {
	ID          int
	StartTime   int
	Origin      string
	Destination string
	Kind        string
	Extra       []Attribute
}

// OD returns origin-destination pair of the trip
func (trip Trip) OD() ODPair {
	return ODPair{Origin: trip.Origin, Destination: trip.Destination}
}

// ODPair is a combination of origin and destination nodes.
type ODPair struct {
	Origin      string
	Destination string
}

// String returns pretty printed value for ODPair
func (od ODPair) String() string {
	return fmt.Sprintf("(%s, %s)", od.Origin, od.Destination)
}

// renumber resets identifiers so they match row positions
func renumber(trips []Trip) {
	for i := range trips {
		trips[i].ID = i
	}
}
