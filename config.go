package odfilter

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	NETWORK_SUMO = "sumo"
	NETWORK_OSM  = "osm"
)

// Configuration describes single filtering run
type Configuration struct {
	Input    InputConfiguration  `yaml:"input"`
	Output   OutputConfiguration `yaml:"output"`
	Filter   FilterConfiguration `yaml:"filter"`
	Sampling SamplingParameters  `yaml:"sampling"`
	SUMO     SUMOConfiguration   `yaml:"sumo"`
	OSM      OSMConfiguration    `yaml:"osm"`
	Verbose  bool                `yaml:"verbose"`
}

// InputConfiguration lists demand and network files
type InputConfiguration struct {
	Demand      string `yaml:"demand" validate:"required"`
	Format      string `yaml:"network_format" validate:"oneof=sumo osm"`
	Connections string `yaml:"connections" validate:"required_if=Format sumo"`
	Edges       string `yaml:"edges" validate:"required_if=Format sumo"`
	// Optional for SUMO networks
	Routes  string `yaml:"routes"`
	OSMFile string `yaml:"osm_file" validate:"required_if=Format osm"`
}

// OutputConfiguration lists produced files. Empty optional fields disable corresponding export
type OutputConfiguration struct {
	Agents              string `yaml:"agents" validate:"required"`
	ODLookup            string `yaml:"od_lookup" validate:"required"`
	GeoJSON             string `yaml:"geojson"`
	NetworkCSV          string `yaml:"network_csv"`
	KeepExtraAttributes bool   `yaml:"keep_extra_attributes"`
}

// FilterConfiguration controls route feasibility filtering
type FilterConfiguration struct {
	MaxPaths int           `yaml:"max_paths" validate:"gte=1"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
	// Prepare contraction hierarchies. Enables shortest path queries on the network
	Contract bool `yaml:"contract"`
}

// DefaultConfiguration returns configuration for Ingolstadt demand
func DefaultConfiguration() *Configuration {
	return &Configuration{
		Input: InputConfiguration{
			Demand:      "data/ingolstadt21.rou.xml",
			Format:      NETWORK_SUMO,
			Connections: "data/ingolstadt.con.xml",
			Edges:       "data/ingolstadt.edg.xml",
			Routes:      "data/ingolstadt.rou.xml",
		},
		Output: OutputConfiguration{
			Agents:   "agents.csv",
			ODLookup: "od_ingolstadt_custom.txt",
		},
		Filter: FilterConfiguration{
			MaxPaths: DEFAULT_MAX_PATHS,
			Timeout:  DEFAULT_TIMEOUT,
			Contract: false,
		},
		Sampling: DefaultSamplingParameters(),
		SUMO: SUMOConfiguration{
			DefaultSpeed:  DEFAULT_SUMO_SPEED,
			DefaultLength: DEFAULT_SUMO_LENGTH,
		},
		OSM: OSMConfiguration{
			EntityName: "highway",
			Tags:       []string{"motorway", "primary", "primary_link", "road", "secondary", "secondary_link", "residential", "tertiary", "tertiary_link", "unclassified", "trunk", "trunk_link", "motorway_link"},
		},
	}
}

// LoadConfiguration reads YAML file on top of default configuration and validates result
func LoadConfiguration(fname string) (*Configuration, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read configuration file")
	}
	cfg := DefaultConfiguration()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse configuration file")
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration fields
func (cfg *Configuration) Validate() error {
	err := validator.New().Struct(cfg)
	if err != nil {
		return errors.Wrap(err, "Invalid configuration")
	}
	return nil
}
