package llm

import (
	"context"
	"fmt"
	"sync"
)

// Scripted returns predetermined responses in order. This enables
// deterministic optimization-cycle tests and offline simulation runs
// without a live provider.
//
// Unlike a provider outage, script exhaustion is a configuration error,
// so it returns a distinct error rather than degrading silently.
type Scripted struct {
	mu        sync.Mutex
	responses []string
	idx       int
}

// NewScripted creates a generator that replays responses in order.
func NewScripted(responses ...string) *Scripted {
	return &Scripted{responses: responses}
}

// GenerateText implements Generator.
func (s *Scripted) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.idx >= len(s.responses) {
		return "", fmt.Errorf("scripted generator: all %d responses exhausted", len(s.responses))
	}
	resp := s.responses[s.idx]
	s.idx++
	return resp, nil
}

// Calls returns how many responses have been consumed.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// Failing always returns its error. Used to exercise the conservative
// fallback paths of the optimization operators.
type Failing struct {
	Err error
}

// GenerateText implements Generator.
func (f Failing) GenerateText(ctx context.Context, prompt string, opts Options) (string, error) {
	return "", f.Err
}
