package odfilter

// FilterTrivial removes trips with identical origin and destination
func FilterTrivial(trips []Trip) ([]Trip, int) {
	filtered := make([]Trip, 0, len(trips))
	dropped := 0
	for _, trip := range trips {
		if trip.Origin == trip.Destination {
			dropped++
			continue
		}
		filtered = append(filtered, trip)
	}
	renumber(filtered)
	return filtered, dropped
}
