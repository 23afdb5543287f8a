//go:build !windows

package monitoring

// NewCapturer returns the platform screen-capture primitive. Non-Windows
// hosts run headless agents, so the placeholder capturer stands in.
func NewCapturer(quality int) Capturer {
	return PlaceholderCapturer{}
}
