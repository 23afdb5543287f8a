package main

import "context"

// inputSampler counts input events between snapshots. Implementations must
// never record key content, only counts.
type inputSampler interface {
	Start(ctx context.Context) error
	Stop()
	// Snapshot returns the counters accumulated since the previous call and
	// resets them. The mouse score is normalized to 0-100.
	Snapshot() (keystrokes uint32, mouseScore float64)
}
