package odfilter

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrProbeTimeout is returned when route generation has not finished in time
var ErrProbeTimeout = errors.New("Route generation has timed out")

type probeResult struct {
	routes []Route
	err    error
}

// Probe asks generator for numPaths routes between origin and destination of given OD pair.
//
// Generator runs in its own goroutine under deadline. When deadline is reached Probe returns ErrProbeTimeout
// immediately; generator is expected to observe context cancellation and exit.
// Panics of generator are turned into errors. Empty result is reported as ErrNoRoute.
func Probe(ctx context.Context, gen RouteGenerator, od ODPair, numPaths int, timeout time.Duration) ([]Route, error) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan probeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- probeResult{err: errors.Errorf("Route generator panicked: %v", r)}
			}
		}()
		routes, err := gen.Generate(probeCtx, od.Origin, od.Destination, numPaths)
		done <- probeResult{routes: routes, err: err}
	}()

	select {
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrProbeTimeout, "OD %s after %v", od, timeout)
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, errors.Wrapf(ErrProbeTimeout, "OD %s after %v", od, timeout)
			}
			return nil, res.err
		}
		if len(res.routes) == 0 {
			return nil, ErrNoRoute
		}
		return res.routes, nil
	}
}
