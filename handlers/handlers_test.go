package handlers

import (
	"fmt"
	"log/slog"
	"sync"

	"matchroom/domain"
	"matchroom/runtime"
)

// fakeSession records every frame sent through it so tests can assert
// on ordering and payload contents.
type fakeSession struct {
	mu     sync.Mutex
	frames []domain.Outbound
	fail   bool
}

func (s *fakeSession) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return fmt.Errorf("broken pipe")
	}
	s.frames = append(s.frames, v.(domain.Outbound))
	return nil
}

func (s *fakeSession) SendText(string) error { return nil }

func (s *fakeSession) Close(int, string) error { return nil }

func (s *fakeSession) sent() []domain.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Outbound(nil), s.frames...)
}

// stagesOf extracts the stage names of all progress frames of the
// given type, in send order.
func stagesOf(frames []domain.Outbound, frameType string) []string {
	var stages []string
	for _, f := range frames {
		if f.Type != frameType {
			continue
		}
		if stage, ok := f.Payload["stage"].(string); ok {
			stages = append(stages, stage)
		}
	}
	return stages
}

// frameOfType returns the first frame of the given type, with a found
// flag.
func frameOfType(frames []domain.Outbound, frameType string) (domain.Outbound, bool) {
	for _, f := range frames {
		if f.Type == frameType {
			return f, true
		}
	}
	return domain.Outbound{}, false
}

// resultOf returns the terminal result payload of a workflow, with a
// found flag.
func resultOf(frames []domain.Outbound, frameType string) (map[string]any, bool) {
	for _, f := range frames {
		if f.Type != frameType {
			continue
		}
		if result, ok := f.Payload["result"].(map[string]any); ok {
			return result, true
		}
	}
	return nil, false
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testRegistry() *runtime.Registry {
	return runtime.NewRegistry(testLogger(), 16)
}
