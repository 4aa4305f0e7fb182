// Package stream accumulates streamed model output for progressive display.
package stream

import (
	"strings"
	"sync"
)

// Token identifies one generation. Fragments tagged with an older token
// are dropped.
type Token uint64

// Accumulator concatenates fragments in arrival order.
type Accumulator struct {
	mu        sync.Mutex
	buf       strings.Builder
	token     Token
	fragments int
}

// NewAccumulator returns an empty accumulator at token zero.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Append adds fragment and returns the full text so far.
func (a *Accumulator) Append(fragment string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.appendLocked(fragment)
}

// AppendFor appends only when token is the current generation. The
// second result is false for a stale fragment, which is discarded.
func (a *Accumulator) AppendFor(token Token, fragment string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if token != a.token {
		return "", false
	}
	return a.appendLocked(fragment), true
}

func (a *Accumulator) appendLocked(fragment string) string {
	a.buf.WriteString(fragment)
	a.fragments++
	return a.buf.String()
}

// Reset empties the buffer and starts a new generation.
func (a *Accumulator) Reset() Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buf.Reset()
	a.fragments = 0
	a.token++
	return a.token
}

// Current returns the token of the active generation.
func (a *Accumulator) Current() Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

// String returns the accumulated text.
func (a *Accumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// Fragments returns how many fragments the current generation received.
func (a *Accumulator) Fragments() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fragments
}

// Accumulate concatenates fragments with a fresh accumulator.
func Accumulate(fragments []string) string {
	acc := NewAccumulator()
	var text string
	for _, f := range fragments {
		text = acc.Append(f)
	}
	return text
}
