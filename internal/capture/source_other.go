//go:build !linux

package capture

import "context"

// stubSource is used on platforms without an input hook implementation.
// The daemon still serves telemetry and the control surface; capture
// simply produces no input events.
type stubSource struct{}

func newPlatformSource() Source {
	return stubSource{}
}

func (stubSource) Run(ctx context.Context, emit func(RawEvent)) error {
	return ErrNotAvailable
}
