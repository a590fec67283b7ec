package middleware

import (
	"compress/gzip"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// CompressionConfig controls response gzip.
type CompressionConfig struct {
	// MinSize is the smallest body worth compressing. A compressible body is
	// held back until it reaches MinSize; shorter bodies go out as-is.
	MinSize int
	// Level is the gzip level (gzip.BestSpeed to gzip.BestCompression).
	Level int
}

// DefaultCompressionConfig compresses JSON and text of 1KiB or more. Listings
// are the large responses here and compress well at BestSpeed.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.BestSpeed,
	}
}

// compressible decides from the response headers alone. Event streams must
// reach the client unbuffered, PNG and JPEG payloads are already compressed,
// and a handler that set its own Content-Encoding (promhttp negotiates gzip
// for /metrics) is left alone.
func compressible(h http.Header) bool {
	if h.Get("Content-Encoding") != "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	if err != nil {
		return false
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return true
	case mediaType == "text/event-stream":
		return false
	case strings.HasPrefix(mediaType, "text/"):
		return true
	default:
		return false
	}
}

type writeMode int

const (
	modeUndecided writeMode = iota
	modeBuffering           // compressible, fewer than MinSize bytes seen
	modePlain
	modeGzip
)

// compressWriter picks a mode when the handler commits its headers: plain
// pass-through for everything that is not compressible, otherwise a short
// buffer that turns into a gzip stream once MinSize bytes arrive.
type compressWriter struct {
	http.ResponseWriter
	pool    *sync.Pool
	minSize int
	status  int
	mode    writeMode
	buf     []byte
	gz      *gzip.Writer
}

func (c *compressWriter) WriteHeader(status int) {
	if c.mode != modeUndecided {
		return
	}
	c.status = status
	c.decide()
}

func (c *compressWriter) decide() {
	h := c.Header()
	bodyless := c.status < http.StatusOK || c.status == http.StatusNoContent || c.status == http.StatusNotModified
	if bodyless || !compressible(h) {
		c.mode = modePlain
		c.ResponseWriter.WriteHeader(c.status)
		return
	}
	if n, err := strconv.Atoi(h.Get("Content-Length")); err == nil && n < c.minSize {
		c.mode = modePlain
		c.ResponseWriter.WriteHeader(c.status)
		return
	}
	c.mode = modeBuffering
}

func (c *compressWriter) Write(p []byte) (int, error) {
	if c.mode == modeUndecided {
		if c.Header().Get("Content-Type") == "" {
			c.Header().Set("Content-Type", http.DetectContentType(p))
		}
		c.decide()
	}

	switch c.mode {
	case modePlain:
		return c.ResponseWriter.Write(p)
	case modeGzip:
		return c.gz.Write(p)
	}

	c.buf = append(c.buf, p...)
	if len(c.buf) >= c.minSize {
		if err := c.startGzip(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (c *compressWriter) startGzip() error {
	h := c.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	c.ResponseWriter.WriteHeader(c.status)

	c.gz = c.pool.Get().(*gzip.Writer)
	c.gz.Reset(c.ResponseWriter)
	c.mode = modeGzip

	buf := c.buf
	c.buf = nil
	_, err := c.gz.Write(buf)
	return err
}

// Flush commits a buffered compressible body to gzip so a streaming handler
// is not held back by MinSize.
func (c *compressWriter) Flush() {
	if c.mode == modeUndecided {
		c.decide()
	}
	if c.mode == modeBuffering {
		c.startGzip()
	}
	if c.mode == modeGzip {
		c.gz.Flush()
	}
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// finish sends a body that stayed under MinSize uncompressed, or closes the
// gzip stream.
func (c *compressWriter) finish() error {
	switch c.mode {
	case modeBuffering:
		c.mode = modePlain
		c.ResponseWriter.WriteHeader(c.status)
		_, err := c.ResponseWriter.Write(c.buf)
		c.buf = nil
		return err
	case modeGzip:
		err := c.gz.Close()
		c.pool.Put(c.gz)
		c.gz = nil
		return err
	}
	return nil
}

// Compression gzips compressible responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pool := &sync.Pool{
		New: func() interface{} {
			w, err := gzip.NewWriterLevel(io.Discard, config.Level)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressWriter{ResponseWriter: w, pool: pool, minSize: config.MinSize, status: http.StatusOK}
			defer cw.finish()
			next.ServeHTTP(cw, r)
		})
	}
}
