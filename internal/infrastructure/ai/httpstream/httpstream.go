// Package httpstream holds the HTTP plumbing shared by the streaming chat
// adapters: a traced client, status errors and a UTF-8 safe body reader.
package httpstream

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns an HTTP client whose transport emits client spans.
// timeout bounds the whole exchange, body included; zero means none.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// StatusError reports a non-2xx upstream response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// CheckStatus returns a StatusError for non-2xx responses and closes the
// body in that case.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// ChunkReader turns a response body into text fragments as bytes arrive.
// A multi-byte character split across reads is held back until complete.
type ChunkReader struct {
	body    io.ReadCloser
	buf     []byte
	carry   []byte
	current string
	err     error
	done    bool
}

// NewChunkReader reads body in reads of at most size bytes
func NewChunkReader(body io.ReadCloser, size int) *ChunkReader {
	if size <= 0 {
		size = 4096
	}
	return &ChunkReader{body: body, buf: make([]byte, size)}
}

// Next blocks until the next non-empty fragment or the end of the body
func (r *ChunkReader) Next() bool {
	for !r.done {
		n, err := r.body.Read(r.buf)
		if n > 0 {
			data := append(r.carry, r.buf[:n]...)
			valid, rest := splitIncompleteRune(data)
			r.carry = append([]byte(nil), rest...)
			if len(valid) > 0 {
				r.current = string(valid)
				if err != nil {
					r.finish(err)
				}
				return true
			}
		}
		if err != nil {
			r.finish(err)
		}
	}
	if len(r.carry) > 0 {
		r.current = string(r.carry)
		r.carry = nil
		return true
	}
	return false
}

func (r *ChunkReader) finish(err error) {
	r.done = true
	if err != io.EOF {
		r.err = err
	}
}

// Fragment returns the current fragment
func (r *ChunkReader) Fragment() string {
	return r.current
}

// Err returns the read error that ended the body, if any
func (r *ChunkReader) Err() error {
	return r.err
}

// Close closes the underlying body
func (r *ChunkReader) Close() error {
	return r.body.Close()
}

// splitIncompleteRune splits off a trailing partial UTF-8 sequence.
func splitIncompleteRune(b []byte) (valid, rest []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i], b[i:]
			}
			break
		}
	}
	return b, nil
}
