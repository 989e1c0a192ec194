package odfilter

import (
	"os"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
)

const (
	ROLE_ORIGIN      = "origin"
	ROLE_DESTINATION = "destination"
)

// ExportODGeoJSON writes geometries of indexed origins and destinations as GeoJSON FeatureCollection.
// Nodes without geometry are skipped; number of skipped nodes is returned.
func ExportODGeoJSON(fname string, lookup ODLookup, net *Network) (int, error) {
	fc, skipped := prepareODFeatures(lookup, net)
	b, err := fc.MarshalJSON()
	if err != nil {
		return skipped, errors.Wrap(err, "Can't marshal features")
	}
	err = os.WriteFile(fname, b, 0644)
	if err != nil {
		return skipped, errors.Wrap(err, "Can't write file")
	}
	return skipped, nil
}

func prepareODFeatures(lookup ODLookup, net *Network) (*geojson.FeatureCollection, int) {
	fc := geojson.NewFeatureCollection()
	skipped := 0
	add := func(role string, nodes []string) {
		for idx, node := range nodes {
			geom, ok := net.NodeGeometry(node)
			if !ok {
				skipped++
				continue
			}
			var feature *geojson.Feature
			if len(geom) == 1 {
				feature = geojson.NewPointFeature([]float64{geom[0].X(), geom[0].Y()})
			} else {
				coords := make([][]float64, len(geom))
				for i, pt := range geom {
					coords[i] = []float64{pt.X(), pt.Y()}
				}
				feature = geojson.NewLineStringFeature(coords)
			}
			feature.SetProperty("role", role)
			feature.SetProperty("index", idx)
			feature.SetProperty("node", node)
			fc.AddFeature(feature)
		}
	}
	add(ROLE_ORIGIN, lookup.Origins)
	add(ROLE_DESTINATION, lookup.Destinations)
	return fc, skipped
}
