package odfilter

import (
	"fmt"
	"math"
	"time"

	"github.com/LdDl/ch"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

var (
	// ErrUnknownNode is returned when node is not present in the network
	ErrUnknownNode = errors.New("Node is not present in the network")
	// ErrNotPrepared is returned when network has been queried before Prepare() call
	ErrNotPrepared = errors.New("Network has not been prepared")
	// ErrNotContracted is returned when shortest path is requested but contraction hierarchies were not built
	ErrNotContracted = errors.New("Contraction hierarchies have not been prepared")
)

// Link is a directed connection between two nodes of the network
type Link struct {
	Source string
	Target string
	// Travel time (seconds). Used as weight for shortest paths.
	Time float64
	// Length in meters
	Length float64
}

type linkKey struct {
	source int64
	target int64
}

// Network is a directed road graph.
//
// Nodes are identified by strings (SUMO edge IDs or OSM node IDs) and mapped onto dense int64 labels.
// Network is read-only after Prepare() has been called.
type Network struct {
	labels map[string]int64
	names  []string
	geoms  []orb.LineString
	links  map[linkKey]*Link
	// Order of links insertion. Keeps exports reproducible
	linksOrder []linkKey

	// Contraction hierarchies. Answers shortest path queries only
	forward *ch.Graph
	// Search graphs for reachability and route sampling
	weighted   *simple.WeightedDirectedGraph
	reversed   *simple.WeightedDirectedGraph
	prepared   bool
	contracted bool

	logger *zap.Logger
}

// NewNetwork returns empty network
func NewNetwork(options ...func(*Network)) *Network {
	net := &Network{
		labels: make(map[string]int64),
		links:  make(map[linkKey]*Link),
		logger: zap.NewNop(),
	}
	for _, option := range options {
		option(net)
	}
	return net
}

// WithNetworkLogger sets logger for network building routines
func WithNetworkLogger(logger *zap.Logger) func(*Network) {
	return func(net *Network) {
		if logger != nil {
			net.logger = logger
		}
	}
}

// AddNode registers node and returns its label. Adding existing node is no-op (geometry is set if it was empty).
func (net *Network) AddNode(id string, geom orb.LineString) int64 {
	if label, ok := net.labels[id]; ok {
		if len(net.geoms[label]) == 0 && len(geom) != 0 {
			net.geoms[label] = geom
		}
		return label
	}
	label := int64(len(net.names))
	net.labels[id] = label
	net.names = append(net.names, id)
	net.geoms = append(net.geoms, geom)
	return label
}

// AddLink adds directed link between two nodes. Missing nodes are created on the fly.
// Self-loops are ignored. For duplicated links the cheapest one is kept.
func (net *Network) AddLink(link Link) error {
	if net.prepared {
		return errors.New("Can't modify prepared network")
	}
	if math.IsNaN(link.Time) || math.IsInf(link.Time, 0) || link.Time < 0 {
		return errors.Errorf("Bad travel time %f for link %s -> %s", link.Time, link.Source, link.Target)
	}
	if link.Source == link.Target {
		return nil
	}
	key := linkKey{
		source: net.AddNode(link.Source, nil),
		target: net.AddNode(link.Target, nil),
	}
	if existing, ok := net.links[key]; ok {
		if link.Time < existing.Time {
			existing.Time = link.Time
			existing.Length = link.Length
		}
		return nil
	}
	stored := link
	net.links[key] = &stored
	net.linksOrder = append(net.linksOrder, key)
	return nil
}

// NodesNum returns number of nodes
func (net *Network) NodesNum() int {
	return len(net.names)
}

// LinksNum returns number of links
func (net *Network) LinksNum() int {
	return len(net.linksOrder)
}

// HasNode checks if node is present in the network
func (net *Network) HasNode(id string) bool {
	_, ok := net.labels[id]
	return ok
}

// NodeGeometry returns geometry of the node if it is known
func (net *Network) NodeGeometry(id string) (orb.LineString, bool) {
	label, ok := net.labels[id]
	if !ok || len(net.geoms[label]) == 0 {
		return nil, false
	}
	return net.geoms[label], true
}

// Links returns links in insertion order
func (net *Network) Links() []Link {
	links := make([]Link, 0, len(net.linksOrder))
	for _, key := range net.linksOrder {
		links = append(links, *net.links[key])
	}
	return links
}

// Prepare builds search structures: weighted graph and its reversed copy for reachability queries and route generation,
// and (optionally) contraction hierarchies for fast shortest path existence checks.
func (net *Network) Prepare(contract bool) error {
	if net.prepared {
		return nil
	}
	st := time.Now()
	net.forward = &ch.Graph{}
	net.weighted = simple.NewWeightedDirectedGraph(0, math.Inf(1))
	net.reversed = simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for label := range net.names {
		err := net.forward.CreateVertex(int64(label))
		if err != nil {
			return errors.Wrap(err, "Can't create vertex in forward graph")
		}
		net.weighted.AddNode(simple.Node(label))
		net.reversed.AddNode(simple.Node(label))
	}
	for _, key := range net.linksOrder {
		link := net.links[key]
		err := net.forward.AddEdge(key.source, key.target, link.Time)
		if err != nil {
			return errors.Wrap(err, "Can't add edge to forward graph")
		}
		net.weighted.SetWeightedEdge(net.weighted.NewWeightedEdge(simple.Node(key.source), simple.Node(key.target), link.Time))
		net.reversed.SetWeightedEdge(net.reversed.NewWeightedEdge(simple.Node(key.target), simple.Node(key.source), link.Time))
	}
	net.logger.Info("Search graphs are ready",
		zap.Int("nodes", net.NodesNum()),
		zap.Int("links", net.LinksNum()),
		zap.Duration("elapsed", time.Since(st)),
	)
	if contract {
		st = time.Now()
		net.forward.PrepareContractionHierarchies()
		net.contracted = true
		net.logger.Info("Contraction hierarchies are ready", zap.Duration("elapsed", time.Since(st)))
	}
	net.prepared = true
	return nil
}

// ReachableFrom returns every node which can be reached from given one (given node is included) with shortest travel time to it.
func (net *Network) ReachableFrom(id string) (map[string]float64, error) {
	return net.reachable(net.weighted, id)
}

// ReachableTo returns every node from which given node can be reached (given node is included) with shortest travel time from it.
func (net *Network) ReachableTo(id string) (map[string]float64, error) {
	return net.reachable(net.reversed, id)
}

// reachable builds shortest path tree rooted at given node with Dijkstra's algorithm
func (net *Network) reachable(graph *simple.WeightedDirectedGraph, id string) (map[string]float64, error) {
	if !net.prepared {
		return nil, ErrNotPrepared
	}
	label, ok := net.labels[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownNode, "Node '%s'", id)
	}
	tree := path.DijkstraFrom(simple.Node(label), graph)
	reachable := make(map[string]float64)
	for vertex, name := range net.names {
		cost := tree.WeightTo(int64(vertex))
		if math.IsInf(cost, 1) {
			continue
		}
		reachable[name] = cost
	}
	reachable[id] = 0
	return reachable, nil
}

// ShortestPath returns travel time and sequence of nodes for the fastest path between two nodes.
// Cost is -1 and path is nil when there is no path at all.
func (net *Network) ShortestPath(source, target string) (float64, []string, error) {
	if !net.prepared {
		return -1, nil, ErrNotPrepared
	}
	if !net.contracted {
		return -1, nil, ErrNotContracted
	}
	sourceLabel, ok := net.labels[source]
	if !ok {
		return -1, nil, errors.Wrapf(ErrUnknownNode, "Node '%s'", source)
	}
	targetLabel, ok := net.labels[target]
	if !ok {
		return -1, nil, errors.Wrapf(ErrUnknownNode, "Node '%s'", target)
	}
	cost, path := net.forward.ShortestPath(sourceLabel, targetLabel)
	if cost < 0 || len(path) == 0 {
		return -1, nil, nil
	}
	names := make([]string, len(path))
	for i, vertex := range path {
		names[i] = net.names[vertex]
	}
	return cost, names, nil
}

// linkTime returns unperturbed travel time of the link between two labels
func (net *Network) linkTime(source, target int64) float64 {
	if link, ok := net.links[linkKey{source: source, target: target}]; ok {
		return link.Time
	}
	return math.Inf(1)
}

// String returns short description of the network
func (net *Network) String() string {
	return fmt.Sprintf("Network: nodes=%d links=%d prepared=%t contracted=%t", net.NodesNum(), net.LinksNum(), net.prepared, net.contracted)
}
