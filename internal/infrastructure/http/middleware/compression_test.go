package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func largeHTMLHandler() http.Handler {
	body := strings.Repeat("<p>meal plan</p>", 200)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	})
}

func TestCompression_BrotliPreferred(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	handler := cm.Handler(largeHTMLHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Values("Vary"), "Accept-Encoding")

	decoded, err := io.ReadAll(brotli.NewReader(rec.Body))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("<p>meal plan</p>", 200), string(decoded))

	stats := cm.GetStats()
	assert.Equal(t, int64(1), stats.BrotliRequests)
	assert.Positive(t, stats.TotalBytesSaved)
}

func TestCompression_GzipFallback(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	handler := cm.Handler(largeHTMLHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("<p>meal plan</p>", 200), string(decoded))
}

func TestCompression_SmallResponsePassesThrough(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	handler := cm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("tiny"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "tiny", rec.Body.String())
}

func TestCompression_ImageBytesPassThrough(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	payload := make([]byte, 4096)
	handler := cm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	}))

	req := httptest.NewRequest(http.MethodGet, "/images/abc", nil)
	req.Header.Set("Accept-Encoding", "br, gzip")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, payload, rec.Body.Bytes())
}

func TestCompression_StatusCodeSurvivesBuffering(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	handler := cm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(strings.Repeat("missing ", 400)))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "br", rec.Header().Get("Content-Encoding"))
}

func TestCompression_NoAcceptEncoding(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())
	handler := cm.Handler(largeHTMLHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestParseAcceptEncoding(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]float64
	}{
		{
			name:   "plain list",
			header: "gzip, br",
			want:   map[string]float64{"gzip": 1.0, "br": 1.0},
		},
		{
			name:   "quality values",
			header: "gzip;q=0.5, br;q=0.9",
			want:   map[string]float64{"gzip": 0.5, "br": 0.9},
		},
		{
			name:   "disabled encoding",
			header: "br;q=0, gzip",
			want:   map[string]float64{"br": 0, "gzip": 1.0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAcceptEncoding(tt.header))
		})
	}
}

func TestBestEncoding_QualityZeroDisablesBrotli(t *testing.T) {
	cm := NewCompressionMiddleware(DefaultCompressionConfig())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "br;q=0, gzip")

	assert.Equal(t, "gzip", cm.bestEncoding(req))
}
