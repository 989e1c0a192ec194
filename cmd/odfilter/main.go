package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/LdDl/odfilter"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
)

// CONFIG_ENV names environment variable with path to YAML configuration. Flag has priority over it
const CONFIG_ENV = "ODFILTER_CONFIG"

// ENV_FILE is optional file with environment variables
const ENV_FILE = ".env"

var (
	configFile = flag.String("config", "", "YAML configuration file. Falls back to $"+CONFIG_ENV+", then to built-in defaults")
	demandFile = flag.String("demand", "", "Filename of demand XML file (overrides configuration)")
	agentsFile = flag.String("out", "", "Filename of output agents CSV file (overrides configuration)")
	odFile     = flag.String("od", "", "Filename of output OD lookup file (overrides configuration)")
	verbose    = flag.Bool("verbose", false, "Human readable logs")
)

func main() {
	flag.Parse()
	envErr := loadEnv(ENV_FILE)

	cfg, err := prepareConfiguration()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger, err := odfilter.NewLogger(cfg.Verbose || *verbose)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer logger.Sync()
	if envErr != nil {
		logger.Warn("Environment file has been ignored", zap.Error(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, cfg, logger)
	if err != nil {
		logger.Error("Demand filtering failed", zap.Error(err))
		os.Exit(1)
	}
}

// loadEnv sets environment variables from given file. Missing file is not an error
func loadEnv(fname string) error {
	err := godotenv.Load(fname)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "Can't read '%s'", fname)
	}
	return nil
}

func prepareConfiguration() (*odfilter.Configuration, error) {
	cfg := odfilter.DefaultConfiguration()
	fname := *configFile
	if fname == "" {
		fname = os.Getenv(CONFIG_ENV)
	}
	if fname != "" {
		var err error
		cfg, err = odfilter.LoadConfiguration(fname)
		if err != nil {
			return nil, err
		}
	}
	if *demandFile != "" {
		cfg.Input.Demand = *demandFile
	}
	if *agentsFile != "" {
		cfg.Output.Agents = *agentsFile
	}
	if *odFile != "" {
		cfg.Output.ODLookup = *odFile
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *odfilter.Configuration, logger *zap.Logger) error {
	st := time.Now()
	rawTrips, err := odfilter.LoadTrips(cfg.Input.Demand)
	if err != nil {
		return err
	}
	trips, err := odfilter.Reformat(rawTrips)
	if err != nil {
		return errors.Wrap(err, "Can't reformat demand")
	}
	logger.Info("Demand has been read", zap.Int("trips", len(trips)), zap.Duration("elapsed", time.Since(st)))

	var network *odfilter.Network
	switch cfg.Input.Format {
	case odfilter.NETWORK_OSM:
		network, err = odfilter.ImportOSM(cfg.Input.OSMFile, &cfg.OSM, odfilter.WithNetworkLogger(logger))
	default:
		network, err = odfilter.ImportSUMO(cfg.Input.Connections, cfg.Input.Edges, cfg.Input.Routes, &cfg.SUMO, odfilter.WithNetworkLogger(logger))
	}
	if err != nil {
		return errors.Wrap(err, "Can't build network")
	}
	err = network.Prepare(cfg.Filter.Contract)
	if err != nil {
		return errors.Wrap(err, "Can't prepare network")
	}
	logger.Info(network.String())

	if cfg.Output.NetworkCSV != "" {
		err = network.ExportToCSV(cfg.Output.NetworkCSV)
		if err != nil {
			return errors.Wrap(err, "Can't export network")
		}
	}

	var generator odfilter.RouteGenerator = odfilter.NewSampledGenerator(network, cfg.Sampling)
	if cfg.Filter.Contract {
		generator = odfilter.NewCheckedGenerator(network, generator)
	}
	pipeline := odfilter.NewPipeline(
		odfilter.WithReachability(network),
		odfilter.WithGenerator(generator),
		odfilter.WithMaxPaths(cfg.Filter.MaxPaths),
		odfilter.WithTimeout(cfg.Filter.Timeout),
		odfilter.WithLogger(logger),
	)
	logger.Debug(pipeline.String())

	result, err := pipeline.Run(ctx, trips)
	if err != nil {
		return err
	}

	err = odfilter.WriteAgentsCSV(cfg.Output.Agents, result.Agents, cfg.Output.KeepExtraAttributes)
	if err != nil {
		return err
	}
	logger.Info("Agents have been saved", zap.String("file", cfg.Output.Agents), zap.Int("agents", len(result.Agents)))

	err = odfilter.WriteODLookup(cfg.Output.ODLookup, result.Lookup)
	if err != nil {
		return err
	}
	logger.Info("OD pairs have been saved", zap.String("file", cfg.Output.ODLookup))

	if cfg.Output.GeoJSON != "" {
		skipped, err := odfilter.ExportODGeoJSON(cfg.Output.GeoJSON, result.Lookup, network)
		if err != nil {
			return errors.Wrap(err, "Can't export OD geometries")
		}
		logger.Info("OD geometries have been saved", zap.String("file", cfg.Output.GeoJSON), zap.Int("skipped", skipped))
	}
	logger.Info("Done", zap.Duration("elapsed", time.Since(st)))
	return nil
}
