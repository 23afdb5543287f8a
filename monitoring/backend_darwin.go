//go:build darwin

package monitoring

import (
	"context"
	"os/exec"
	"strings"
)

// darwinBackend asks System Events for the frontmost application and its
// front window title.
type darwinBackend struct{}

func newPlatformBackend() Backend {
	return darwinBackend{}
}

const frontWindowScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	set appName to name of frontApp
	set windowTitle to ""
	try
		set windowTitle to name of front window of frontApp
	end try
	return appName & "|" & windowTitle
end tell`

func (darwinBackend) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	out, err := exec.CommandContext(ctx, "osascript", "-e", frontWindowScript).Output()
	if err != nil {
		// UI automation may be unavailable (no accessibility permission,
		// headless session). Treat as no activity.
		return nil, nil
	}

	parts := strings.SplitN(strings.TrimSpace(string(out)), "|", 2)
	info := &WindowInfo{ProcessName: parts[0]}
	if len(parts) == 2 {
		info.Title = parts[1]
	}
	if info.ProcessName == "" {
		return nil, nil
	}
	return info, nil
}
