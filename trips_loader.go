package odfilter

import (
	"encoding/xml"
	"io"
	"os"

	"github.com/pkg/errors"
)

// LoadTrips reads every `trip` element which is a direct child of the root element of given XML file.
func LoadTrips(filename string) ([]RawTrip, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open demand file")
	}
	defer file.Close()
	trips, err := readTrips(file)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't parse demand file '%s'", filename)
	}
	return trips, nil
}

func readTrips(r io.Reader) ([]RawTrip, error) {
	decoder := xml.NewDecoder(r)
	trips := []RawTrip{}
	depth := 0
	seenRoot := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch element := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				seenRoot = true
			}
			if depth != 2 || element.Name.Local != "trip" {
				continue
			}
			raw := RawTrip{
				Keys:  make([]string, 0, len(element.Attr)),
				Attrs: make(map[string]string, len(element.Attr)),
			}
			for _, attr := range element.Attr {
				if _, ok := raw.Attrs[attr.Name.Local]; !ok {
					raw.Keys = append(raw.Keys, attr.Name.Local)
				}
				raw.Attrs[attr.Name.Local] = attr.Value
			}
			trips = append(trips, raw)
		case xml.EndElement:
			depth--
		}
	}
	if !seenRoot {
		return nil, errors.New("Document has no root element")
	}
	return trips, nil
}
