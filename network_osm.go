package odfilter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// OSMScanner is common interface for XML and PBF scanners
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// OSMConfiguration allows to filter ways by certain tags from OSM data
type OSMConfiguration struct {
	EntityName string   `yaml:"entity_name"` // Currently we support 'highway' only
	Tags       []string `yaml:"tags"`
}

// CheckTag checks if incoming tag is represented in configuration. Empty configuration accepts every tag.
func (cfg *OSMConfiguration) CheckTag(tag string) bool {
	if len(cfg.Tags) == 0 {
		return true
	}
	for i := range cfg.Tags {
		if cfg.Tags[i] == tag {
			return true
		}
	}
	return false
}

var (
	mphRegExp = regexp.MustCompile(`\d+\.?\d*\s*mph`)
	numRegExp = regexp.MustCompile(`\d+\.?\d*`)

	// km/h
	defaultSpeedByHighway = map[string]float64{
		"motorway":       120,
		"motorway_link":  120,
		"trunk":          100,
		"trunk_link":     100,
		"primary":        80,
		"primary_link":   80,
		"secondary":      60,
		"secondary_link": 60,
		"tertiary":       40,
		"tertiary_link":  40,
		"residential":    30,
		"living_street":  30,
		"service":        30,
		"track":          30,
		"unclassified":   30,
	}
	junctionTypes = map[string]struct{}{
		"roundabout": {},
		"circular":   {},
		"jughandle":  {},
	}
)

const (
	// km/h
	DEFAULT_OSM_SPEED = 30.0
)

type osmWay struct {
	ID         osm.WayID
	Nodes      []osm.NodeID
	Oneway     bool
	IsReversed bool
	speedKmh   float64
}

// ImportOSM builds network from OSM file (XML or PBF). Nodes of the network are OSM nodes.
func ImportOSM(filename string, cfg *OSMConfiguration, options ...func(*Network)) (*Network, error) {
	prepared := OSMConfiguration{}
	if cfg != nil {
		prepared = *cfg
	}
	if prepared.EntityName == "" {
		prepared.EntityName = "highway"
	}
	cfg = &prepared
	net := NewNetwork(options...)

	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "File open")
	}
	defer file.Close()

	/* Process ways */
	st := time.Now()
	ways := []osmWay{}
	nodesSeen := make(map[osm.NodeID]struct{})
	{
		scannerWays, err := newOSMScanner(filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerWays.Close()
		for scannerWays.Scan() {
			way, ok := scannerWays.Object().(*osm.Way)
			if !ok {
				continue
			}
			tag := way.Tags.Find(cfg.EntityName)
			if tag == "" || !cfg.CheckTag(tag) {
				continue
			}
			preparedWay := osmWay{
				ID:       way.ID,
				Nodes:    make([]osm.NodeID, 0, len(way.Nodes)),
				speedKmh: parseMaxSpeed(way.Tags.Find("maxspeed")),
			}
			if preparedWay.speedKmh <= 0 {
				preparedWay.speedKmh = DEFAULT_OSM_SPEED
				if v, ok := defaultSpeedByHighway[tag]; ok {
					preparedWay.speedKmh = v
				}
			}
			switch onewayText := way.Tags.Find("oneway"); onewayText {
			case "yes", "1", "true":
				preparedWay.Oneway = true
			case "-1", "reverse":
				preparedWay.Oneway = true
				preparedWay.IsReversed = true
			case "":
				if _, ok := junctionTypes[way.Tags.Find("junction")]; ok {
					preparedWay.Oneway = true
				}
			}
			for _, node := range way.Nodes {
				nodesSeen[node.ID] = struct{}{}
				preparedWay.Nodes = append(preparedWay.Nodes, node.ID)
			}
			ways = append(ways, preparedWay)
		}
		if err := scannerWays.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on Ways")
		}
	}
	net.logger.Info("Ways have been scanned", zap.Int("ways", len(ways)), zap.Duration("elapsed", time.Since(st)))

	// Seek file to start
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking after ways scanning")
	}

	/* Process nodes */
	st = time.Now()
	nodes := make(map[osm.NodeID]orb.Point, len(nodesSeen))
	{
		scannerNodes, err := newOSMScanner(filename, file)
		if err != nil {
			return nil, err
		}
		defer scannerNodes.Close()
		for scannerNodes.Scan() {
			node, ok := scannerNodes.Object().(*osm.Node)
			if !ok {
				continue
			}
			if _, ok := nodesSeen[node.ID]; ok {
				nodes[node.ID] = orb.Point{node.Lon, node.Lat}
			}
		}
		if err := scannerNodes.Err(); err != nil {
			return nil, errors.Wrap(err, "Scanner error on Nodes")
		}
	}
	net.logger.Info("Nodes have been scanned", zap.Int("nodes", len(nodes)), zap.Duration("elapsed", time.Since(st)))

	st = time.Now()
	missingNodes := 0
	for _, way := range ways {
		if way.IsReversed {
			for i, j := 0, len(way.Nodes)-1; i < j; i, j = i+1, j-1 {
				way.Nodes[i], way.Nodes[j] = way.Nodes[j], way.Nodes[i]
			}
		}
		for i := 1; i < len(way.Nodes); i++ {
			from, okFrom := nodes[way.Nodes[i-1]]
			to, okTo := nodes[way.Nodes[i]]
			if !okFrom || !okTo {
				missingNodes++
				continue
			}
			sourceID := osmNodeName(way.Nodes[i-1])
			targetID := osmNodeName(way.Nodes[i])
			net.AddNode(sourceID, orb.LineString{from})
			net.AddNode(targetID, orb.LineString{to})
			lengthMeters := sphericalLengthMeters(orb.LineString{from, to})
			link := Link{
				Source: sourceID,
				Target: targetID,
				Length: lengthMeters,
				Time:   lengthMeters / (way.speedKmh / 3.6),
			}
			if err := net.AddLink(link); err != nil {
				return nil, errors.Wrapf(err, "Way %d", way.ID)
			}
			if !way.Oneway {
				link.Source, link.Target = link.Target, link.Source
				if err := net.AddLink(link); err != nil {
					return nil, errors.Wrapf(err, "Way %d", way.ID)
				}
			}
		}
	}
	if missingNodes > 0 {
		net.logger.Warn("Some way segments refer to missing nodes", zap.Int("segments", missingNodes))
	}
	net.logger.Info("Links have been prepared", zap.Int("links", net.LinksNum()), zap.Duration("elapsed", time.Since(st)))
	return net, nil
}

// newOSMScanner guesses file extension and prepares correct scanner
func newOSMScanner(filename string, file io.Reader) (OSMScanner, error) {
	switch {
	case strings.HasSuffix(filename, ".osm"), strings.HasSuffix(filename, ".xml"):
		return osmxml.New(context.Background(), file), nil
	case strings.HasSuffix(filename, ".pbf"):
		return osmpbf.New(context.Background(), file, 4), nil
	default:
		return nil, errors.Errorf("File extension '%s' for file '%s' is not handled yet", filepath.Ext(filename), filename)
	}
}

func osmNodeName(id osm.NodeID) string {
	return strconv.FormatInt(int64(id), 10)
}

// parseMaxSpeed returns speed in km/h or -1 when tag value can't be parsed
func parseMaxSpeed(maxSpeed string) float64 {
	if maxSpeed == "" {
		return -1
	}
	num := numRegExp.FindString(maxSpeed)
	if num == "" {
		return -1
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return -1
	}
	if mphRegExp.MatchString(maxSpeed) {
		value *= 1.609344
	}
	return value
}
