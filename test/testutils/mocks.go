// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	"github.com/stretchr/testify/mock"
)

// MockChatProvider provides a mock implementation of ChatProvider
type MockChatProvider struct {
	mock.Mock
	name string
}

// NewMockChatProvider creates a new mock chat provider
func NewMockChatProvider(name string) *MockChatProvider {
	return &MockChatProvider{name: name}
}

// Name returns the provider name
func (m *MockChatProvider) Name() string {
	return m.name
}

// StreamChat returns the stream configured with On("StreamChat", ...)
func (m *MockChatProvider) StreamChat(ctx context.Context, req outbound.ChatRequest) (outbound.FragmentStream, error) {
	args := m.Called(ctx, req)

	stream, _ := args.Get(0).(outbound.FragmentStream)
	if scripted, ok := stream.(*ScriptedStream); ok {
		scripted.bind(ctx)
	}
	return stream, args.Error(1)
}

// ScriptedStream replays fixed fragments and then ends with err.
type ScriptedStream struct {
	mu        sync.Mutex
	ctx       context.Context
	fragments []string
	finalErr  error
	err       error
	pos       int
	current   string
	gate      chan struct{}
	closed    bool
}

// NewScriptedStream creates a stream that yields fragments then ends with err
func NewScriptedStream(fragments []string, err error) *ScriptedStream {
	return &ScriptedStream{
		ctx:       context.Background(),
		fragments: fragments,
		finalErr:  err,
	}
}

// Gated makes every Next wait for a Release or context cancellation
func (s *ScriptedStream) Gated() *ScriptedStream {
	s.gate = make(chan struct{}, len(s.fragments)+1)
	return s
}

// Release lets n more calls to Next proceed
func (s *ScriptedStream) Release(n int) {
	for i := 0; i < n; i++ {
		s.gate <- struct{}{}
	}
}

func (s *ScriptedStream) bind(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// Next advances to the next fragment
func (s *ScriptedStream) Next() bool {
	s.mu.Lock()
	ctx, gate := s.ctx, s.gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			s.mu.Lock()
			s.err = ctx.Err()
			s.mu.Unlock()
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.pos >= len(s.fragments) {
		s.err = s.finalErr
		return false
	}
	s.current = s.fragments[s.pos]
	s.pos++
	return true
}

// Fragment returns the current fragment
func (s *ScriptedStream) Fragment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Err returns the terminal error
func (s *ScriptedStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close marks the stream closed
func (s *ScriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *ScriptedStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// GenerationRecord is one finished generation seen by RecordingMetrics
type GenerationRecord struct {
	Provider  string
	Outcome   string
	Fragments int
}

// RecordingMetrics captures generation metrics for assertions
type RecordingMetrics struct {
	mu       sync.Mutex
	started  int
	finished []GenerationRecord
}

// NewRecordingMetrics creates an empty recorder
func NewRecordingMetrics() *RecordingMetrics {
	return &RecordingMetrics{}
}

func (m *RecordingMetrics) GenerationStarted(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
}

func (m *RecordingMetrics) GenerationFinished(provider, outcome string, fragments int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, GenerationRecord{Provider: provider, Outcome: outcome, Fragments: fragments})
}

// Started returns how many generations started
func (m *RecordingMetrics) Started() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Finished returns the finished generations in order
func (m *RecordingMetrics) Finished() []GenerationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerationRecord(nil), m.finished...)
}

// Outcomes returns the outcome of every finished generation in order
func (m *RecordingMetrics) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.finished))
	for i, rec := range m.finished {
		out[i] = rec.Outcome
	}
	return out
}
