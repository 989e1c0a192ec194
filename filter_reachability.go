package odfilter

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Reachability answers single-source shortest path tree queries in both directions
type Reachability interface {
	ReachableFrom(id string) (map[string]float64, error)
	ReachableTo(id string) (map[string]float64, error)
}

// ReachabilityReport describes outcome of FilterUnreachable
type ReachabilityReport struct {
	BadOrigins      []string
	BadDestinations []string
	// Nodes which are not present in the network. They are treated as unreachable
	UnknownNodes []string
	DroppedTrips int
}

// FilterUnreachable removes trips whose origin can't reach any other node or whose destination
// can't be reached from any other node. Nodes unknown to the network are treated as unreachable.
func FilterUnreachable(trips []Trip, network Reachability, logger *zap.Logger) ([]Trip, ReachabilityReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := ReachabilityReport{}
	badOrigins := make(map[string]struct{})
	badDestinations := make(map[string]struct{})
	unknown := make(map[string]struct{})
	markUnknown := func(node string) {
		if _, ok := unknown[node]; ok {
			return
		}
		unknown[node] = struct{}{}
		report.UnknownNodes = append(report.UnknownNodes, node)
	}

	for _, origin := range distinctOrigins(trips) {
		isolated, known, err := isIsolated(network.ReachableFrom, origin)
		if err != nil {
			return nil, report, errors.Wrapf(err, "Can't check origin '%s'", origin)
		}
		if !known {
			markUnknown(origin)
		}
		if isolated {
			badOrigins[origin] = struct{}{}
			report.BadOrigins = append(report.BadOrigins, origin)
		}
	}
	for _, destination := range distinctDestinations(trips) {
		isolated, known, err := isIsolated(network.ReachableTo, destination)
		if err != nil {
			return nil, report, errors.Wrapf(err, "Can't check destination '%s'", destination)
		}
		if !known {
			markUnknown(destination)
		}
		if isolated {
			badDestinations[destination] = struct{}{}
			report.BadDestinations = append(report.BadDestinations, destination)
		}
	}

	filtered := make([]Trip, 0, len(trips))
	for _, trip := range trips {
		_, badOrigin := badOrigins[trip.Origin]
		_, badDestination := badDestinations[trip.Destination]
		if badOrigin || badDestination {
			report.DroppedTrips++
			continue
		}
		filtered = append(filtered, trip)
	}
	renumber(filtered)
	if len(report.UnknownNodes) > 0 {
		logger.Warn("Demand refers to nodes which are not present in the network",
			zap.Int("unknown_nodes", len(report.UnknownNodes)),
			zap.Strings("nodes", report.UnknownNodes),
		)
	}
	logger.Info("Removed trips with inaccessible origins or destinations",
		zap.Int("bad_origins", len(report.BadOrigins)),
		zap.Int("bad_destinations", len(report.BadDestinations)),
		zap.Int("dropped_trips", report.DroppedTrips),
	)
	return filtered, report, nil
}

// isIsolated returns true when shortest path tree rooted at node contains nothing but the node itself.
// Second value is false for nodes unknown to the network; such nodes are isolated.
func isIsolated(tree func(string) (map[string]float64, error), node string) (bool, bool, error) {
	reachable, err := tree(node)
	if err != nil {
		if errors.Is(err, ErrUnknownNode) {
			return true, false, nil
		}
		return false, true, err
	}
	delete(reachable, node)
	return len(reachable) == 0, true, nil
}

// distinctOrigins returns origins in order of first appearance
func distinctOrigins(trips []Trip) []string {
	return distinct(trips, func(trip Trip) string { return trip.Origin })
}

// distinctDestinations returns destinations in order of first appearance
func distinctDestinations(trips []Trip) []string {
	return distinct(trips, func(trip Trip) string { return trip.Destination })
}

func distinct(trips []Trip, field func(Trip) string) []string {
	seen := make(map[string]struct{})
	values := []string{}
	for _, trip := range trips {
		value := field(trip)
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		values = append(values, value)
	}
	return values
}
