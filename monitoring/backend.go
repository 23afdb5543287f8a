package monitoring

import "context"

// WindowInfo is the raw OS view of the foreground window.
type WindowInfo struct {
	Title       string
	ProcessName string
}

// Backend queries the OS for the active window. A nil WindowInfo with nil
// error means "no activity" — unsupported platforms and missing tools
// degrade to that rather than failing the polling loop.
type Backend interface {
	ActiveWindow(ctx context.Context) (*WindowInfo, error)
}

// NullBackend reports no activity. Fallback for unsupported platforms.
type NullBackend struct{}

func (NullBackend) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	return nil, nil
}

// NewBackend selects the window-query strategy for the current platform.
func NewBackend() Backend {
	return newPlatformBackend()
}
