package odfilter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
)

// ExportToCSV writes links of the network into '<fname>_links.csv'
func (net *Network) ExportToCSV(fname string) error {
	fnameParts := strings.Split(fname, ".csv")
	fnameLinks := fnameParts[0] + "_links.csv"

	err := net.exportLinksToCSV(fnameLinks)
	if err != nil {
		return errors.Wrap(err, "Can't export links")
	}
	return nil
}

func (net *Network) exportLinksToCSV(fname string) error {
	file, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create file")
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	writer.Comma = ';'

	err = writer.Write([]string{"id", "source_node", "target_node", "time", "length_meters", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	for i, link := range net.Links() {
		err = writer.Write([]string{
			fmt.Sprintf("%d", i),
			link.Source,
			link.Target,
			fmt.Sprintf("%f", link.Time),
			fmt.Sprintf("%f", link.Length),
			net.linkGeometryWKT(link),
		})
		if err != nil {
			return errors.Wrap(err, "Can't write link")
		}
	}
	writer.Flush()
	return writer.Error()
}

// linkGeometryWKT returns WKT of the line which connects geometries of source and target nodes.
// Empty string is returned when any of geometries is unknown.
func (net *Network) linkGeometryWKT(link Link) string {
	sourceGeom, okSource := net.NodeGeometry(link.Source)
	targetGeom, okTarget := net.NodeGeometry(link.Target)
	if !okSource || !okTarget {
		return ""
	}
	line := make(orb.LineString, 0, len(sourceGeom)+len(targetGeom))
	line = append(line, sourceGeom...)
	line = append(line, targetGeom...)
	if len(line) < 2 {
		return ""
	}
	return wkt.MarshalString(line)
}
