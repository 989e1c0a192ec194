package odfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DEFAULT_MAX_PATHS = 5
	DEFAULT_TIMEOUT   = 10 * time.Second
)

// Pipeline filters demand against road network
type Pipeline struct {
	reachability Reachability
	generator    RouteGenerator
	maxPaths     int
	timeout      time.Duration
	logger       *zap.Logger
}

func (pipeline *Pipeline) String() string {
	return fmt.Sprintf(`
Demand filtering parameters:
	max_paths: %d
	timeout: %v
	reachability provided?: %t
	route generator provided?: %t
	`,
		pipeline.maxPaths,
		pipeline.timeout,
		pipeline.reachability != nil,
		pipeline.generator != nil,
	)
}

// NewPipeline returns pipeline with given options
func NewPipeline(options ...func(*Pipeline)) *Pipeline {
	pipeline := &Pipeline{
		maxPaths: DEFAULT_MAX_PATHS,
		timeout:  DEFAULT_TIMEOUT,
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(pipeline)
	}
	return pipeline
}

// WithReachability sets source of reachability queries (usually *Network)
func WithReachability(reachability Reachability) func(*Pipeline) {
	return func(pipeline *Pipeline) {
		pipeline.reachability = reachability
	}
}

// WithGenerator sets route generator for feasibility probes
func WithGenerator(generator RouteGenerator) func(*Pipeline) {
	return func(pipeline *Pipeline) {
		pipeline.generator = generator
	}
}

// WithMaxPaths sets the biggest number of alternative routes every remaining trip must have
func WithMaxPaths(maxPaths int) func(*Pipeline) {
	return func(pipeline *Pipeline) {
		pipeline.maxPaths = maxPaths
	}
}

// WithTimeout sets time budget of single route generation probe
func WithTimeout(timeout time.Duration) func(*Pipeline) {
	return func(pipeline *Pipeline) {
		pipeline.timeout = timeout
	}
}

// WithLogger sets logger
func WithLogger(logger *zap.Logger) func(*Pipeline) {
	return func(pipeline *Pipeline) {
		if logger != nil {
			pipeline.logger = logger
		}
	}
}

// Result is outcome of the pipeline
type Result struct {
	InitialTrips   int
	Reachability   ReachabilityReport
	TrivialDropped int
	Feasibility    FeasibilityReport
	// Remaining trips with original node identifiers
	Trips  []Trip
	Agents []Agent
	Lookup ODLookup
}

// Run applies reachability, trivial OD and route feasibility filters, then remaps node identifiers to indices.
func (pipeline *Pipeline) Run(ctx context.Context, trips []Trip) (*Result, error) {
	if pipeline.reachability == nil {
		return nil, errors.New("Reachability source has not been provided")
	}
	if pipeline.generator == nil {
		return nil, errors.New("Route generator has not been provided")
	}
	if pipeline.timeout <= 0 {
		return nil, errors.Errorf("Timeout should be positive, got %v", pipeline.timeout)
	}
	result := &Result{
		InitialTrips: len(trips),
	}
	log := pipeline.logger

	log.Info("Removing trips with inaccessible origins or destinations...")
	st := time.Now()
	trips, reachabilityReport, err := FilterUnreachable(trips, pipeline.reachability, log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't filter unreachable trips")
	}
	result.Reachability = reachabilityReport
	log.Info("Done", zap.Duration("elapsed", time.Since(st)), zap.Int("trips", len(trips)))

	log.Info("Removing trips with identical origin and destination...")
	trips, result.TrivialDropped = FilterTrivial(trips)
	log.Info("Done", zap.Int("dropped_trips", result.TrivialDropped), zap.Int("trips", len(trips)))

	log.Info("Removing trips without enough alternative routes...", zap.Int("max_paths", pipeline.maxPaths), zap.Duration("timeout", pipeline.timeout))
	st = time.Now()
	trips, feasibilityReport, err := FilterRouteFeasibility(ctx, trips, pipeline.generator, pipeline.maxPaths, pipeline.timeout, log)
	if err != nil {
		return nil, errors.Wrap(err, "Can't filter trips by route feasibility")
	}
	result.Feasibility = feasibilityReport
	badDemand := make([]string, len(feasibilityReport.BadDemand))
	for i, od := range feasibilityReport.BadDemand {
		badDemand[i] = od.String()
	}
	log.Info("Done",
		zap.Strings("bad_demand", badDemand),
		zap.Int("dropped_trips", feasibilityReport.DroppedTrips),
		zap.Int("trips", len(trips)),
		zap.Duration("elapsed", time.Since(st)),
	)

	result.Trips = trips
	result.Agents, result.Lookup = RemapIndices(trips)
	return result, nil
}
