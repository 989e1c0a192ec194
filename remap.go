package odfilter

// Agent is a trip with origin and destination replaced by dense indices
type Agent struct {
	ID          int
	StartTime   int
	Origin      int
	Destination int
	Kind        string
	Extra       []Attribute
}

// ODLookup maps dense indices back to node identifiers: Origins[i] is the node of origin index i.
type ODLookup struct {
	Origins      []string
	Destinations []string
}

// RemapIndices assigns 0-based indices to distinct origins and destinations (in order of first appearance)
// and rewrites trips to use them. Identifiers of agents match row positions.
func RemapIndices(trips []Trip) ([]Agent, ODLookup) {
	lookup := ODLookup{
		Origins:      distinctOrigins(trips),
		Destinations: distinctDestinations(trips),
	}
	originIndices := indexOf(lookup.Origins)
	destinationIndices := indexOf(lookup.Destinations)

	agents := make([]Agent, len(trips))
	for i, trip := range trips {
		agents[i] = Agent{
			ID:          i,
			StartTime:   trip.StartTime,
			Origin:      originIndices[trip.Origin],
			Destination: destinationIndices[trip.Destination],
			Kind:        trip.Kind,
			Extra:       trip.Extra,
		}
	}
	return agents, lookup
}

func indexOf(values []string) map[string]int {
	indices := make(map[string]int, len(values))
	for i, value := range values {
		indices[value] = i
	}
	return indices
}
