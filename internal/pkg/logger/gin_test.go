package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAccessLog(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	req = req.WithContext(WithTraceID(context.Background(), "trace-9"))

	line := formatAccessLog(gin.LogFormatterParams{
		Request:    req,
		TimeStamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		StatusCode: http.StatusServiceUnavailable,
		Latency:    1500 * time.Millisecond,
		ClientIP:   "10.0.0.1",
		Method:     http.MethodGet,
		Path:       "/api/conversations?userId=1",
	})
	require.True(t, strings.HasSuffix(line, "\n"))

	var entry accessLog
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "trace-9", entry.TraceID)
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, int64(1500), entry.LatencyMs)
	assert.Equal(t, "10.0.0.1", entry.ClientIP)
	assert.Equal(t, "2026-01-02T03:04:05Z", entry.Time)
}

func TestSetupGinSkipsPing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf strings.Builder
	prev := LogWriter
	LogWriter = &buf
	t.Cleanup(func() { LogWriter = prev })

	r := gin.New()
	SetupGin(r)
	r.GET("/api/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/conversations", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Empty(t, buf.String())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/conversations", nil))
	assert.Contains(t, buf.String(), `"path":"/api/conversations"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
}
