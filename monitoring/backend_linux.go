//go:build linux

package monitoring

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Browser processes worth reporting when only a process listing is
// available (no window manager access).
var browserProcesses = []string{
	"chrome", "chromium", "firefox", "brave", "opera", "vivaldi", "msedge",
}

// linuxBackend tries three strategies in order: xdotool (window title +
// owning pid), xprop against the root window, then a plain process listing
// filtered to known browsers. Each degrades to the next when its tool is
// missing; all failing yields no activity, never an error for the loop.
type linuxBackend struct{}

func newPlatformBackend() Backend {
	return linuxBackend{}
}

func (b linuxBackend) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	if info := b.viaXdotool(ctx); info != nil {
		return info, nil
	}
	if info := b.viaXprop(ctx); info != nil {
		return info, nil
	}
	if info := b.viaProcessList(ctx); info != nil {
		return info, nil
	}
	return nil, nil
}

func (b linuxBackend) viaXdotool(ctx context.Context) *WindowInfo {
	title, err := runCommand(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil || title == "" {
		return nil
	}

	process := "unknown"
	if pid, err := runCommand(ctx, "xdotool", "getactivewindow", "getwindowpid"); err == nil && pid != "" {
		if comm, err := os.ReadFile(fmt.Sprintf("/proc/%s/comm", pid)); err == nil {
			process = strings.TrimSpace(string(comm))
		}
	}

	return &WindowInfo{Title: title, ProcessName: process}
}

func (b linuxBackend) viaXprop(ctx context.Context) *WindowInfo {
	out, err := runCommand(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return nil
	}

	// Output shape: _NET_ACTIVE_WINDOW(WINDOW): window id # 0x3c00007
	idx := strings.LastIndex(out, "# ")
	if idx < 0 {
		return nil
	}
	windowID := strings.TrimSpace(out[idx+2:])
	if windowID == "" || windowID == "0x0" {
		return nil
	}

	name, err := runCommand(ctx, "xprop", "-id", windowID, "WM_NAME")
	if err != nil {
		return nil
	}
	// WM_NAME(STRING) = "title"
	start := strings.Index(name, `"`)
	end := strings.LastIndex(name, `"`)
	if start < 0 || end <= start {
		return nil
	}

	return &WindowInfo{Title: name[start+1 : end], ProcessName: "unknown"}
}

func (b linuxBackend) viaProcessList(ctx context.Context) *WindowInfo {
	out, err := runCommand(ctx, "ps", "-eo", "comm")
	if err != nil {
		return nil
	}

	for _, line := range strings.Split(out, "\n") {
		proc := strings.ToLower(strings.TrimSpace(line))
		for _, browser := range browserProcesses {
			if strings.Contains(proc, browser) {
				// A running browser with no window manager access: report
				// the process without a title.
				return &WindowInfo{ProcessName: proc}
			}
		}
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
