package odfilter

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RoundReport describes single round of route feasibility filtering
type RoundReport struct {
	NumPaths     int
	Probes       int
	BadPairs     []ODPair
	DroppedTrips int
}

// FeasibilityReport describes outcome of FilterRouteFeasibility
type FeasibilityReport struct {
	Rounds []RoundReport
	// Every OD pair which has failed at some round. Order of first failure
	BadDemand    []ODPair
	DroppedTrips int
}

// FilterRouteFeasibility removes trips whose OD pair can't get requested number of alternative routes.
//
// Rounds run for number of paths from 1 to maxPaths. Inside a round every trip is probed in row order unless
// its OD pair has already failed in this round. Timeouts and generator errors are both treated as failures.
// Trips of failed pairs are removed at the end of the round, so subsequent rounds see smaller table.
func FilterRouteFeasibility(ctx context.Context, trips []Trip, gen RouteGenerator, maxPaths int, timeout time.Duration, logger *zap.Logger) ([]Trip, FeasibilityReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	report := FeasibilityReport{}
	badDemand := make(map[ODPair]struct{})
	current := trips
	for numPaths := 1; numPaths <= maxPaths; numPaths++ {
		st := time.Now()
		round := RoundReport{NumPaths: numPaths}
		badRound := make(map[ODPair]struct{})
		for i, trip := range current {
			if err := ctx.Err(); err != nil {
				return nil, report, err
			}
			od := trip.OD()
			if _, ok := badRound[od]; ok {
				continue
			}
			round.Probes++
			_, err := Probe(ctx, gen, od, numPaths, timeout)
			if err != nil {
				if ctx.Err() != nil {
					return nil, report, ctx.Err()
				}
				badRound[od] = struct{}{}
				round.BadPairs = append(round.BadPairs, od)
				logger.Debug("Bad demand",
					zap.Int("num_paths", numPaths),
					zap.Int("row", i),
					zap.Int("rows", len(current)),
					zap.Stringer("od", od),
					zap.Error(err),
				)
			}
		}

		filtered := make([]Trip, 0, len(current))
		for _, trip := range current {
			if _, ok := badRound[trip.OD()]; ok {
				round.DroppedTrips++
				continue
			}
			filtered = append(filtered, trip)
		}
		renumber(filtered)
		current = filtered

		for _, od := range round.BadPairs {
			if _, ok := badDemand[od]; ok {
				continue
			}
			badDemand[od] = struct{}{}
			report.BadDemand = append(report.BadDemand, od)
		}
		report.DroppedTrips += round.DroppedTrips
		report.Rounds = append(report.Rounds, round)
		logger.Info("Route generation round is done",
			zap.Int("num_paths", numPaths),
			zap.Int("probes", round.Probes),
			zap.Int("bad_pairs", len(round.BadPairs)),
			zap.Int("dropped_trips", round.DroppedTrips),
			zap.Duration("elapsed", time.Since(st)),
		)
	}
	if current == nil {
		current = []Trip{}
	}
	return current, report, nil
}
