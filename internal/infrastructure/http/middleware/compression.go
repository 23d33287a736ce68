package middleware

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// CompressionConfig configures response compression
type CompressionConfig struct {
	BrotliLevel       int // 1-11
	GzipLevel         int // 1-9
	MinSizeBytes      int
	PreferBrotli      bool
	CompressibleTypes []string
}

// DefaultCompressionConfig returns sensible defaults
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		BrotliLevel:  6,
		GzipLevel:    6,
		MinSizeBytes: 1024,
		PreferBrotli: true,
		CompressibleTypes: []string{
			"text/html",
			"text/css",
			"text/javascript",
			"application/javascript",
			"application/json",
			"text/plain",
			"text/csv",
			"image/svg+xml",
		},
	}
}

// CompressionStats tracks compression effectiveness
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	BrotliRequests     int64
	GzipRequests       int64
	TotalBytesSaved    int64
}

// CompressionMiddleware negotiates and applies Brotli or Gzip
// compression. Responses are buffered so the status line goes out
// only after the encoding is known.
type CompressionMiddleware struct {
	config CompressionConfig

	mu    sync.Mutex
	stats CompressionStats
}

// NewCompressionMiddleware creates a compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	return &CompressionMiddleware{config: config}
}

// Handler returns the middleware handler function
func (cm *CompressionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cm.mu.Lock()
		cm.stats.TotalRequests++
		cm.mu.Unlock()

		encoding := cm.bestEncoding(r)
		if encoding == "" {
			next.ServeHTTP(w, r)
			return
		}

		buf := &bufferedResponseWriter{
			ResponseWriter: w,
			buffer:         new(bytes.Buffer),
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(buf, r)

		cm.finalize(buf, encoding)
	})
}

// bestEncoding picks the encoding from Accept-Encoding, honoring
// quality values.
func (cm *CompressionMiddleware) bestEncoding(r *http.Request) string {
	if r.Method == http.MethodHead || r.Method == http.MethodOptions {
		return ""
	}

	acceptEncoding := r.Header.Get("Accept-Encoding")
	if acceptEncoding == "" {
		return ""
	}

	encodings := parseAcceptEncoding(acceptEncoding)

	if cm.config.PreferBrotli {
		if quality, ok := encodings["br"]; ok && quality > 0 {
			return "br"
		}
	}
	if quality, ok := encodings["gzip"]; ok && quality > 0 {
		return "gzip"
	}

	return ""
}

func parseAcceptEncoding(header string) map[string]float64 {
	encodings := make(map[string]float64)

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)

		if name, q, found := strings.Cut(part, ";q="); found {
			if quality, err := strconv.ParseFloat(q, 64); err == nil {
				encodings[strings.TrimSpace(name)] = quality
			}
		} else {
			encodings[part] = 1.0
		}
	}

	return encodings
}

// finalize compresses the buffered body when worthwhile and writes
// the response.
func (cm *CompressionMiddleware) finalize(buf *bufferedResponseWriter, encoding string) {
	content := buf.buffer.Bytes()

	if len(content) < cm.config.MinSizeBytes ||
		!cm.isCompressibleType(buf.Header().Get("Content-Type")) ||
		buf.Header().Get("Content-Encoding") != "" {
		buf.flushUncompressed()
		return
	}

	compressed, err := cm.compress(content, encoding)
	if err != nil || len(compressed) >= len(content) {
		buf.flushUncompressed()
		return
	}

	header := buf.Header()
	header.Set("Content-Encoding", encoding)
	header.Set("Content-Length", strconv.Itoa(len(compressed)))
	header.Add("Vary", "Accept-Encoding")
	header.Del("Accept-Ranges")

	buf.ResponseWriter.WriteHeader(buf.statusCode)
	buf.ResponseWriter.Write(compressed)

	cm.mu.Lock()
	cm.stats.CompressedRequests++
	cm.stats.TotalBytesSaved += int64(len(content) - len(compressed))
	if encoding == "br" {
		cm.stats.BrotliRequests++
	} else {
		cm.stats.GzipRequests++
	}
	cm.mu.Unlock()
}

func (cm *CompressionMiddleware) compress(content []byte, encoding string) ([]byte, error) {
	var out bytes.Buffer

	switch encoding {
	case "br":
		writer := brotli.NewWriterLevel(&out, cm.config.BrotliLevel)
		if _, err := writer.Write(content); err != nil {
			writer.Close()
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	default:
		writer, err := gzip.NewWriterLevel(&out, cm.config.GzipLevel)
		if err != nil {
			return nil, err
		}
		if _, err := writer.Write(content); err != nil {
			writer.Close()
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	}

	return out.Bytes(), nil
}

func (cm *CompressionMiddleware) isCompressibleType(contentType string) bool {
	if contentType == "" {
		return false
	}

	mainType := strings.TrimSpace(strings.ToLower(strings.Split(contentType, ";")[0]))
	for _, compressible := range cm.config.CompressibleTypes {
		if mainType == compressible {
			return true
		}
	}

	return false
}

// GetStats returns a snapshot of compression statistics
func (cm *CompressionMiddleware) GetStats() CompressionStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.stats
}

// bufferedResponseWriter captures status and body so headers can be
// rewritten before anything reaches the client.
type bufferedResponseWriter struct {
	http.ResponseWriter
	buffer     *bytes.Buffer
	statusCode int
}

func (bw *bufferedResponseWriter) Write(b []byte) (int, error) {
	return bw.buffer.Write(b)
}

func (bw *bufferedResponseWriter) WriteHeader(statusCode int) {
	bw.statusCode = statusCode
}

func (bw *bufferedResponseWriter) flushUncompressed() {
	bw.ResponseWriter.WriteHeader(bw.statusCode)
	bw.ResponseWriter.Write(bw.buffer.Bytes())
}
