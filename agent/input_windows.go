//go:build windows

package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14
	wmKeydown    = 0x0100
	wmSyskeydown = 0x0104
	wmMousemove  = 0x0200
	wmQuit       = 0x0012
)

var (
	modUser32   = windows.NewLazySystemDLL("user32.dll")
	modKernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procSetWindowsHookEx    = modUser32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = modUser32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = modUser32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = modUser32.NewProc("GetMessageW")
	procPostThreadMessage   = modUser32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId  = modKernel32.NewProc("GetCurrentThreadId")
)

type winMSG struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// hookSampler installs low-level keyboard and mouse hooks that only count
// events. Virtual key codes are discarded in the hook procedure; no key
// content ever leaves it.
type hookSampler struct {
	keystrokes   atomic.Uint32
	mouseEvents  atomic.Uint32
	lastSnapshot time.Time

	keyboardHook uintptr
	mouseHook    uintptr
	hookThreadID uint32
	hookReady    chan error
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

var globalSampler *hookSampler

func newInputSampler() inputSampler {
	s := &hookSampler{
		hookReady:    make(chan error, 1),
		stopChan:     make(chan struct{}),
		lastSnapshot: time.Now(),
	}
	globalSampler = s
	return s
}

func (s *hookSampler) Start(ctx context.Context) error {
	s.wg.Add(1)
	go s.hookLoop()

	if err := <-s.hookReady; err != nil {
		return fmt.Errorf("failed to install input hooks: %w", err)
	}
	return nil
}

func (s *hookSampler) Stop() {
	close(s.stopChan)

	if s.hookThreadID != 0 {
		procPostThreadMessage.Call(uintptr(s.hookThreadID), wmQuit, 0, 0)
	}
	s.wg.Wait()

	if s.keyboardHook != 0 {
		procUnhookWindowsHookEx.Call(s.keyboardHook)
		s.keyboardHook = 0
	}
	if s.mouseHook != 0 {
		procUnhookWindowsHookEx.Call(s.mouseHook)
		s.mouseHook = 0
	}
}

func (s *hookSampler) Snapshot() (uint32, float64) {
	keystrokes := s.keystrokes.Swap(0)
	mouseEvents := s.mouseEvents.Swap(0)

	now := time.Now()
	elapsed := now.Sub(s.lastSnapshot).Seconds()
	s.lastSnapshot = now
	if elapsed <= 0 {
		return keystrokes, 0
	}

	// Roughly 3 mouse events per second saturates the score.
	score := float64(mouseEvents) / elapsed / 3 * 100
	if score > 100 {
		score = 100
	}
	return keystrokes, score
}

// hookLoop runs the hooks and their message pump on a dedicated OS thread;
// low-level hooks require the installing thread to pump messages.
func (s *hookSampler) hookLoop() {
	defer s.wg.Done()

	threadID, _, _ := procGetCurrentThreadId.Call()
	s.hookThreadID = uint32(threadID)

	keyboardProc := syscall.NewCallback(keyboardCountProc)
	mouseProc := syscall.NewCallback(mouseCountProc)

	hook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, keyboardProc, 0, 0)
	if hook == 0 {
		s.hookReady <- fmt.Errorf("SetWindowsHookEx(keyboard) failed: %v", err)
		return
	}
	s.keyboardHook = hook

	hook, _, err = procSetWindowsHookEx.Call(whMouseLL, mouseProc, 0, 0)
	if hook == 0 {
		s.hookReady <- fmt.Errorf("SetWindowsHookEx(mouse) failed: %v", err)
		return
	}
	s.mouseHook = hook

	s.hookReady <- nil

	var msg winMSG
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if ret == 0 || msg.Message == wmQuit {
			return
		}
	}
}

func keyboardCountProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && globalSampler != nil {
		if wParam == wmKeydown || wParam == wmSyskeydown {
			globalSampler.keystrokes.Add(1)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func mouseCountProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode >= 0 && globalSampler != nil && wParam >= wmMousemove {
		globalSampler.mouseEvents.Add(1)
	}
	ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}
