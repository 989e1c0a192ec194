package odfilter

import (
	"encoding/xml"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// 50 km/h
	DEFAULT_SUMO_SPEED  = 13.89
	DEFAULT_SUMO_LENGTH = 1.0
)

// SUMOConfiguration holds fallbacks for SUMO plain XML attributes
type SUMOConfiguration struct {
	DefaultSpeed  float64 `yaml:"default_speed" validate:"gt=0"`
	DefaultLength float64 `yaml:"default_length" validate:"gt=0"`
}

type sumoLane struct {
	Speed  string `xml:"speed,attr"`
	Length string `xml:"length,attr"`
}

type sumoEdge struct {
	ID       string     `xml:"id,attr"`
	From     string     `xml:"from,attr"`
	To       string     `xml:"to,attr"`
	Speed    string     `xml:"speed,attr"`
	Length   string     `xml:"length,attr"`
	Shape    string     `xml:"shape,attr"`
	Function string     `xml:"function,attr"`
	Lanes    []sumoLane `xml:"lane"`
}

type sumoConnection struct {
	From string `xml:"from,attr"`
	To   string `xml:"to,attr"`
}

type sumoRoute struct {
	ID    string `xml:"id,attr"`
	Edges string `xml:"edges,attr"`
}

// sumoEdgeCost is travel time and length for single SUMO edge
type sumoEdgeCost struct {
	time   float64
	length float64
}

// ImportSUMO builds network from SUMO plain XML files.
//
// Every SUMO edge becomes a node of the network. Connections (and consecutive edges of routes when
// route file is provided) become directed links. Link travel time is the travel time of its source edge.
func ImportSUMO(connectionFile, edgeFile, routeFile string, cfg *SUMOConfiguration, options ...func(*Network)) (*Network, error) {
	prepared := SUMOConfiguration{DefaultSpeed: DEFAULT_SUMO_SPEED, DefaultLength: DEFAULT_SUMO_LENGTH}
	if cfg != nil {
		if cfg.DefaultSpeed > 0 {
			prepared.DefaultSpeed = cfg.DefaultSpeed
		}
		if cfg.DefaultLength > 0 {
			prepared.DefaultLength = cfg.DefaultLength
		}
	}
	cfg = &prepared
	net := NewNetwork(options...)

	st := time.Now()
	costs := make(map[string]sumoEdgeCost)
	err := scanXMLElements(edgeFile, "edge", func(decoder *xml.Decoder, start xml.StartElement) error {
		edge := sumoEdge{}
		err := decoder.DecodeElement(&edge, &start)
		if err != nil {
			return err
		}
		if edge.ID == "" || edge.Function == "internal" {
			return nil
		}
		geom, cost, err := edge.prepare(cfg)
		if err != nil {
			return errors.Wrapf(err, "Edge '%s'", edge.ID)
		}
		costs[edge.ID] = cost
		net.AddNode(edge.ID, geom)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't read edges")
	}
	net.logger.Info("Edges have been read", zap.Int("edges", len(costs)), zap.Duration("elapsed", time.Since(st)))

	unknownEdges := 0
	edgeCost := func(id string) sumoEdgeCost {
		if cost, ok := costs[id]; ok {
			return cost
		}
		unknownEdges++
		return sumoEdgeCost{time: cfg.DefaultLength / cfg.DefaultSpeed, length: cfg.DefaultLength}
	}
	addLink := func(from, to string) error {
		cost := edgeCost(from)
		return net.AddLink(Link{Source: from, Target: to, Time: cost.time, Length: cost.length})
	}

	st = time.Now()
	connections := 0
	err = scanXMLElements(connectionFile, "connection", func(decoder *xml.Decoder, start xml.StartElement) error {
		conn := sumoConnection{}
		err := decoder.DecodeElement(&conn, &start)
		if err != nil {
			return err
		}
		if conn.From == "" || conn.To == "" {
			return nil
		}
		connections++
		return addLink(conn.From, conn.To)
	})
	if err != nil {
		return nil, errors.Wrap(err, "Can't read connections")
	}
	net.logger.Info("Connections have been read", zap.Int("connections", connections), zap.Duration("elapsed", time.Since(st)))

	if routeFile != "" {
		st = time.Now()
		routes := 0
		err = scanXMLElements(routeFile, "route", func(decoder *xml.Decoder, start xml.StartElement) error {
			route := sumoRoute{}
			err := decoder.DecodeElement(&route, &start)
			if err != nil {
				return err
			}
			edges := strings.Fields(route.Edges)
			for i := 1; i < len(edges); i++ {
				err = addLink(edges[i-1], edges[i])
				if err != nil {
					return errors.Wrapf(err, "Route '%s'", route.ID)
				}
			}
			routes++
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "Can't read routes")
		}
		net.logger.Info("Routes have been read", zap.Int("routes", routes), zap.Duration("elapsed", time.Since(st)))
	}
	if unknownEdges > 0 {
		net.logger.Warn("Some links refer to edges which are not described in edge file", zap.Int("references", unknownEdges))
	}
	return net, nil
}

// prepare evaluates geometry, length and travel time of the edge
func (edge *sumoEdge) prepare(cfg *SUMOConfiguration) (orb.LineString, sumoEdgeCost, error) {
	var geom orb.LineString
	var err error
	if edge.Shape != "" {
		geom, err = parseShape(edge.Shape)
		if err != nil {
			return nil, sumoEdgeCost{}, err
		}
	}
	speed := -1.0
	if edge.Speed != "" {
		speed, err = strconv.ParseFloat(edge.Speed, 64)
		if err != nil {
			return nil, sumoEdgeCost{}, errors.Wrap(err, "Bad 'speed' attribute")
		}
	}
	length := -1.0
	if edge.Length != "" {
		length, err = strconv.ParseFloat(edge.Length, 64)
		if err != nil {
			return nil, sumoEdgeCost{}, errors.Wrap(err, "Bad 'length' attribute")
		}
	}
	// Plain files could describe speed and length on lanes only
	for _, lane := range edge.Lanes {
		if speed <= 0 && lane.Speed != "" {
			if v, err := strconv.ParseFloat(lane.Speed, 64); err == nil {
				speed = v
			}
		}
		if length <= 0 && lane.Length != "" {
			if v, err := strconv.ParseFloat(lane.Length, 64); err == nil {
				length = v
			}
		}
	}
	if length <= 0 {
		length = getPlanarLength(geom)
	}
	if length <= 0 {
		length = cfg.DefaultLength
	}
	if speed <= 0 {
		speed = cfg.DefaultSpeed
	}
	return geom, sumoEdgeCost{time: length / speed, length: length}, nil
}

// scanXMLElements calls handler for every element with given local name
func scanXMLElements(filename, name string, handler func(decoder *xml.Decoder, start xml.StartElement) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "Can't open file")
	}
	defer file.Close()
	decoder := xml.NewDecoder(file)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "Can't parse file '%s'", filename)
		}
		start, ok := token.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}
		err = handler(decoder, start)
		if err != nil {
			return err
		}
	}
}
