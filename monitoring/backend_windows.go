//go:build windows

package monitoring

import (
	"context"
	"strings"
	"syscall"
	"unsafe"
)

// winBackend reads the foreground window through user32/kernel32.
type winBackend struct{}

func newPlatformBackend() Backend {
	return winBackend{}
}

func (winBackend) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		return nil, nil
	}

	var processID uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&processID)))

	titleBuf := make([]uint16, 512)
	procGetWindowTextW.Call(
		hwnd,
		uintptr(unsafe.Pointer(&titleBuf[0])),
		uintptr(len(titleBuf)),
	)
	title := syscall.UTF16ToString(titleBuf)

	return &WindowInfo{
		Title:       title,
		ProcessName: processNameByID(processID),
	}, nil
}

func processNameByID(processID uint32) string {
	const processQueryLimitedInformation = 0x1000

	hProcess, _, _ := procOpenProcess.Call(
		processQueryLimitedInformation,
		0,
		uintptr(processID),
	)
	if hProcess == 0 {
		return "unknown"
	}
	defer procCloseHandle.Call(hProcess)

	var size uint32 = 260
	nameBuf := make([]uint16, size)

	ret, _, _ := procQueryFullProcessImageName.Call(
		hProcess,
		0,
		uintptr(unsafe.Pointer(&nameBuf[0])),
		uintptr(unsafe.Pointer(&size)),
	)
	if ret == 0 {
		return "unknown"
	}

	fullPath := syscall.UTF16ToString(nameBuf[:size])
	parts := strings.Split(fullPath, "\\")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return "unknown"
}
