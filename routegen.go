package odfilter

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrNoRoute is returned when destination can't be reached from origin
	ErrNoRoute = errors.New("No route has been found")
	// ErrNotEnoughRoutes is returned when number of distinct sampled routes is less than requested
	ErrNotEnoughRoutes = errors.New("Not enough distinct routes")
)

const (
	WEIGHT_TIME   = "time"
	WEIGHT_LENGTH = "length"
)

// Route is a single path between origin and destination
type Route struct {
	Origin      string
	Destination string
	Path        []string
	// Sum of unperturbed weights along the path
	Cost float64
	// Sum of travel times along the path. -1 if it has not been requested
	FreeFlowTime float64
}

// RouteGenerator generates alternative routes between two nodes
type RouteGenerator interface {
	Generate(ctx context.Context, origin, destination string, numPaths int) ([]Route, error)
}

// SamplingParameters controls route sampling
type SamplingParameters struct {
	RandomSeed int64 `yaml:"random_seed"`
	NumSamples int   `yaml:"num_samples" validate:"gte=1"`
	// Scale parameter. Negative values prefer cheaper routes during selection
	Beta         float64 `yaml:"beta" validate:"ne=0"`
	Weight       string  `yaml:"weight" validate:"oneof=time length"`
	CalcFreeFlow bool    `yaml:"calc_free_flow"`
}

// DefaultSamplingParameters returns parameters used for demand filtering
func DefaultSamplingParameters() SamplingParameters {
	return SamplingParameters{
		RandomSeed:   42,
		NumSamples:   20,
		Beta:         -5,
		Weight:       WEIGHT_TIME,
		CalcFreeFlow: true,
	}
}

// SampledGenerator finds alternative routes by running Dijkstra's algorithm on randomly perturbed link weights.
//
// First sample always uses original weights. Every other sample multiplies weight of each link
// by exp(g/|beta|) where g is Gumbel(0, 1) noise. Distinct paths are collected and requested number
// of them is chosen with logit probabilities proportional to exp(beta * cost / minCost).
type SampledGenerator struct {
	net    *Network
	params SamplingParameters
}

// NewSampledGenerator returns generator for prepared network
func NewSampledGenerator(net *Network, params SamplingParameters) *SampledGenerator {
	return &SampledGenerator{
		net:    net,
		params: params,
	}
}

type routeCandidate struct {
	labels []int64
	cost   float64
}

// Generate returns numPaths distinct routes between origin and destination
func (gen *SampledGenerator) Generate(ctx context.Context, origin, destination string, numPaths int) ([]Route, error) {
	if numPaths < 1 {
		return nil, errors.Errorf("Number of paths should be positive, got %d", numPaths)
	}
	if !gen.net.prepared {
		return nil, ErrNotPrepared
	}
	source, ok := gen.net.labels[origin]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "Origin '%s'", origin)
	}
	target, ok := gen.net.labels[destination]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "Destination '%s'", destination)
	}
	if source == target {
		return nil, errors.Errorf("Origin and destination are the same node '%s'", origin)
	}

	candidates := []routeCandidate{}
	seen := make(map[string]struct{})
	numSamples := gen.params.NumSamples
	if numSamples < 1 {
		numSamples = 1
	}
	for sample := 0; sample < numSamples; sample++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		weighted := perturbedGraph{
			WeightedDirectedGraph: gen.net.weighted,
			net:                   gen.net,
			attribute:             gen.params.Weight,
			seed:                  gen.params.RandomSeed,
			sample:                sample,
		}
		if sample > 0 {
			weighted.scale = 1.0 / math.Abs(gen.params.Beta)
		}
		shortest := path.DijkstraFrom(simple.Node(source), weighted)
		nodes, _ := shortest.To(target)
		if len(nodes) == 0 {
			if sample == 0 {
				// Perturbation does not change connectivity
				return nil, ErrNoRoute
			}
			continue
		}
		labels := make([]int64, len(nodes))
		for i, node := range nodes {
			labels[i] = node.ID()
		}
		key := pathKey(labels)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, routeCandidate{
			labels: labels,
			cost:   gen.pathCost(labels, gen.params.Weight),
		})
	}
	if len(candidates) < numPaths {
		return nil, errors.Wrapf(ErrNotEnoughRoutes, "Found %d distinct routes, requested %d", len(candidates), numPaths)
	}

	rnd := rand.New(rand.NewSource(int64(mix(uint64(gen.params.RandomSeed), uint64(source), uint64(target)))))
	chosen := chooseLogit(candidates, numPaths, gen.params.Beta, rnd)
	routes := make([]Route, 0, len(chosen))
	for _, candidate := range chosen {
		route := Route{
			Origin:       origin,
			Destination:  destination,
			Path:         make([]string, len(candidate.labels)),
			Cost:         candidate.cost,
			FreeFlowTime: -1,
		}
		for i, label := range candidate.labels {
			route.Path[i] = gen.net.names[label]
		}
		if gen.params.CalcFreeFlow {
			route.FreeFlowTime = gen.pathCost(candidate.labels, WEIGHT_TIME)
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (gen *SampledGenerator) pathCost(labels []int64, attribute string) float64 {
	cost := 0.0
	for i := 1; i < len(labels); i++ {
		link, ok := gen.net.links[linkKey{source: labels[i-1], target: labels[i]}]
		if !ok {
			return math.Inf(1)
		}
		cost += linkWeight(link, attribute)
	}
	return cost
}

// chooseLogit picks n candidates without replacement
func chooseLogit(candidates []routeCandidate, n int, beta float64, rnd *rand.Rand) []routeCandidate {
	pool := make([]routeCandidate, len(candidates))
	copy(pool, candidates)
	if n >= len(pool) {
		return pool
	}
	minCost := math.Inf(1)
	for _, candidate := range pool {
		if candidate.cost < minCost {
			minCost = candidate.cost
		}
	}
	if minCost <= 0 || math.IsInf(minCost, 0) {
		minCost = 1
	}
	chosen := make([]routeCandidate, 0, n)
	for len(chosen) < n {
		utilities := make([]float64, len(pool))
		maxUtility := math.Inf(-1)
		for i, candidate := range pool {
			utilities[i] = beta * candidate.cost / minCost
			if utilities[i] > maxUtility {
				maxUtility = utilities[i]
			}
		}
		total := 0.0
		for i := range utilities {
			utilities[i] = math.Exp(utilities[i] - maxUtility)
			total += utilities[i]
		}
		pick := len(pool) - 1
		threshold := rnd.Float64() * total
		for i, w := range utilities {
			threshold -= w
			if threshold < 0 {
				pick = i
				break
			}
		}
		chosen = append(chosen, pool[pick])
		pool = append(pool[:pick], pool[pick+1:]...)
	}
	return chosen
}

func pathKey(labels []int64) string {
	parts := make([]string, len(labels))
	for i, label := range labels {
		parts[i] = strconv.FormatInt(label, 10)
	}
	return strings.Join(parts, ",")
}

func linkWeight(link *Link, attribute string) float64 {
	if attribute == WEIGHT_LENGTH {
		return link.Length
	}
	return link.Time
}

// perturbedGraph overrides link weights of the underlying graph
type perturbedGraph struct {
	*simple.WeightedDirectedGraph
	net       *Network
	attribute string
	seed      int64
	sample    int
	// Zero scale means original weights
	scale float64
}

// Weight implements path.Weighted
func (g perturbedGraph) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, true
	}
	link, ok := g.net.links[linkKey{source: xid, target: yid}]
	if !ok {
		return math.Inf(1), false
	}
	w := linkWeight(link, g.attribute)
	if g.scale == 0 {
		return w, true
	}
	return w * math.Exp(gumbel(mix(uint64(g.seed), uint64(g.sample), uint64(xid), uint64(yid)))*g.scale), true
}

// gumbel converts hash into standard Gumbel variate
func gumbel(h uint64) float64 {
	u := (float64(h>>12) + 0.5) / float64(uint64(1)<<52)
	return -math.Log(-math.Log(u))
}

// mix combines values into single well-distributed hash (splitmix64 finalizer)
func mix(values ...uint64) uint64 {
	h := uint64(0x9e3779b97f4a7c15)
	for _, v := range values {
		h ^= v
		h += 0x9e3779b97f4a7c15
		h = (h ^ (h >> 30)) * 0xbf58476d1ce4e5b9
		h = (h ^ (h >> 27)) * 0x94d049bb133111eb
		h ^= h >> 31
	}
	return h
}

// CheckedGenerator rejects OD pairs without any path using contraction hierarchies before asking wrapped generator.
type CheckedGenerator struct {
	net       *Network
	generator RouteGenerator
}

// NewCheckedGenerator wraps generator. Network must be prepared with contraction.
func NewCheckedGenerator(net *Network, generator RouteGenerator) *CheckedGenerator {
	return &CheckedGenerator{
		net:       net,
		generator: generator,
	}
}

// Generate implements RouteGenerator
func (gen *CheckedGenerator) Generate(ctx context.Context, origin, destination string, numPaths int) ([]Route, error) {
	cost, _, err := gen.net.ShortestPath(origin, destination)
	if err != nil {
		return nil, err
	}
	if cost < 0 {
		return nil, ErrNoRoute
	}
	return gen.generator.Generate(ctx, origin, destination, numPaths)
}
