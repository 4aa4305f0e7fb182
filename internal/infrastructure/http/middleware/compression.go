package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Encodings understood by Compression, in order of preference
const (
	EncodingBrotli = "br"
	EncodingGzip   = "gzip"
)

var compressibleTypes = []string{
	"application/json",
	"application/schema+json",
	"text/html",
	"text/plain",
	"text/css",
	"application/javascript",
}

// Compression buffers the response and compresses it with brotli or gzip
// when the client accepts it and the body reaches compression.min_size.
// Paths in skip are passed through untouched so streamed fragments and
// websocket upgrades are never held back.
func (m *Middleware) Compression(skip ...string) gin.HandlerFunc {
	cfg := m.config.Compression
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		if _, ok := skipped[c.Request.URL.Path]; ok || c.GetHeader("Upgrade") != "" {
			c.Next()
			return
		}

		encoding := negotiateEncoding(c.GetHeader("Accept-Encoding"))
		if encoding == "" {
			c.Next()
			return
		}

		original := c.Writer
		buffered := &bufferedWriter{ResponseWriter: original}
		c.Writer = buffered
		defer func() { c.Writer = original }()

		c.Next()

		body := buffered.buf.Bytes()
		header := original.Header()
		status := buffered.Status()

		if len(body) < cfg.MinSize ||
			header.Get("Content-Encoding") != "" ||
			!isCompressible(header.Get("Content-Type")) {
			original.WriteHeader(status)
			if len(body) > 0 {
				_, _ = original.Write(body)
			}
			return
		}

		header.Set("Content-Encoding", encoding)
		header.Add("Vary", "Accept-Encoding")
		header.Del("Content-Length")
		original.WriteHeader(status)

		if err := compress(original, encoding, cfg.Level, body); err != nil {
			m.logger.Warn("Response compression failed",
				zap.String("request_id", c.GetString(RequestIDKey)),
				zap.String("encoding", encoding),
				zap.Error(err),
			)
		}
	}
}

func compress(w io.Writer, encoding string, level int, body []byte) error {
	var enc io.WriteCloser
	switch encoding {
	case EncodingBrotli:
		if level < brotli.BestSpeed || level > brotli.BestCompression {
			level = brotli.DefaultCompression
		}
		enc = brotli.NewWriterLevel(w, level)
	default:
		if level > gzip.BestCompression {
			level = gzip.BestCompression
		}
		if level < gzip.DefaultCompression {
			level = gzip.DefaultCompression
		}
		zw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return err
		}
		enc = zw
	}

	if _, err := enc.Write(body); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// negotiateEncoding picks the best supported encoding from an
// Accept-Encoding header, honouring q-values. Brotli wins ties.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}

	weights := make(map[string]float64)
	for _, part := range strings.Split(header, ",") {
		fields := strings.Split(strings.TrimSpace(part), ";")
		name := strings.ToLower(strings.TrimSpace(fields[0]))
		if name == "" {
			continue
		}
		q := 1.0
		for _, param := range fields[1:] {
			param = strings.TrimSpace(param)
			if v, ok := strings.CutPrefix(param, "q="); ok {
				if parsed, err := strconv.ParseFloat(v, 64); err == nil {
					q = parsed
				}
			}
		}
		weights[name] = q
	}

	weight := func(name string) float64 {
		if q, ok := weights[name]; ok {
			return q
		}
		if q, ok := weights["*"]; ok {
			return q
		}
		return 0
	}

	br, gz := weight(EncodingBrotli), weight(EncodingGzip)
	switch {
	case br > 0 && br >= gz:
		return EncodingBrotli
	case gz > 0:
		return EncodingGzip
	default:
		return ""
	}
}

func isCompressible(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	for _, t := range compressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// bufferedWriter holds the status and body until the handler returns
type bufferedWriter struct {
	gin.ResponseWriter
	buf       bytes.Buffer
	status    int
	committed bool
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 && !w.Written() {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {
	w.committed = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.committed = true
	return w.buf.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.committed = true
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.buf.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.committed
}

// Flush is a no-op; buffered responses are written once the handler returns
func (w *bufferedWriter) Flush() {}
