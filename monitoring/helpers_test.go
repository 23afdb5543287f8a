package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

func testCtx(t *testing.T) context.Context {
	return zapctx.WithLogger(context.Background(), zap.NewNop())
}

// frameCapturer returns scripted frames, repeating the last one.
type frameCapturer struct {
	frames [][]byte
	calls  int
}

func (fc *frameCapturer) Capture(ctx context.Context) ([]byte, error) {
	if len(fc.frames) == 0 {
		return nil, errors.New("no frames")
	}
	i := fc.calls
	if i >= len(fc.frames) {
		i = len(fc.frames) - 1
	}
	fc.calls++
	return fc.frames[i], nil
}

// memorySink records stored screenshots.
type memorySink struct {
	mu    sync.Mutex
	shots []Screenshot
	err   error
}

func (ms *memorySink) StoreScreenshot(ctx context.Context, shot Screenshot, image []byte) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.err != nil {
		return "", ms.err
	}
	ms.shots = append(ms.shots, shot)
	return "path/" + shot.ScreenshotID, nil
}

func (ms *memorySink) count() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.shots)
}

// scriptedAI replies from a queue; an empty queue errors.
type scriptedAI struct {
	replies []string
	err     error
}

func (s *scriptedAI) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// memoryRecorder collects alert history events.
type memoryRecorder struct {
	mu     sync.Mutex
	events []database.AlertEvent
}

func (mr *memoryRecorder) InsertAlertEvent(ctx context.Context, event database.AlertEvent) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.events = append(mr.events, event)
	return nil
}

func (mr *memoryRecorder) actions() []string {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	out := make([]string, len(mr.events))
	for i, e := range mr.events {
		out[i] = e.Action
	}
	return out
}

// stubBackend returns scripted windows; nil entries mean no activity.
type stubBackend struct {
	windows []*WindowInfo
	errs    []error
	calls   int
}

func (sb *stubBackend) ActiveWindow(ctx context.Context) (*WindowInfo, error) {
	i := sb.calls
	sb.calls++
	if i < len(sb.errs) && sb.errs[i] != nil {
		return nil, sb.errs[i]
	}
	if i >= len(sb.windows) {
		if len(sb.windows) == 0 {
			return nil, nil
		}
		return sb.windows[len(sb.windows)-1], nil
	}
	return sb.windows[i], nil
}
