package odfilter

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

const (
	earthRadius = 6370.986884258304
	pi180       = math.Pi / 180.0
)

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// greatCircleDistance returns distance between two geo-points (kilometers)
func greatCircleDistance(p, q orb.Point) float64 {
	lat1 := degreesToRadians(p.Lat())
	lon1 := degreesToRadians(p.Lon())
	lat2 := degreesToRadians(q.Lat())
	lon2 := degreesToRadians(q.Lon())
	diffLat := lat2 - lat1
	diffLon := lon2 - lon1
	a := math.Pow(math.Sin(diffLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(diffLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	ans := c * earthRadius
	return ans
}

// sphericalLengthMeters returns length of polyline in geographic coordinates (meters)
func sphericalLengthMeters(line orb.LineString) float64 {
	km := 0.0
	for i := 1; i < len(line); i++ {
		km += greatCircleDistance(line[i-1], line[i])
	}
	return km * 1000.0
}

// getPlanarLength returns length for given line in projected coordinates (units of coordinates)
func getPlanarLength(line orb.LineString) float64 {
	if len(line) < 2 {
		return 0
	}
	return planar.Length(line)
}

// parseShape parses SUMO shape attribute: "x1,y1 x2,y2 ...". Optional third coordinate is ignored.
func parseShape(shape string) (orb.LineString, error) {
	fields := strings.Fields(shape)
	line := make(orb.LineString, 0, len(fields))
	for _, field := range fields {
		coords := strings.Split(field, ",")
		if len(coords) < 2 {
			return nil, errors.Errorf("Bad shape position '%s'", field)
		}
		x, err := strconv.ParseFloat(coords[0], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad X coordinate in '%s'", field)
		}
		y, err := strconv.ParseFloat(coords[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "Bad Y coordinate in '%s'", field)
		}
		line = append(line, orb.Point{x, y})
	}
	return line, nil
}
