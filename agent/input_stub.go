//go:build !windows

package main

import (
	"context"
	"fmt"
	"runtime"
)

// nullSampler reports no input. Non-Windows workstations rely on the
// server-side idle detection alone.
type nullSampler struct{}

func newInputSampler() inputSampler {
	return nullSampler{}
}

func (nullSampler) Start(ctx context.Context) error {
	return fmt.Errorf("input sampling not supported on %s", runtime.GOOS)
}

func (nullSampler) Stop() {}

func (nullSampler) Snapshot() (uint32, float64) {
	return 0, 0
}
