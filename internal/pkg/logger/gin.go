package logger

import (
	"Courier/internal/api/config"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// accessLog 访问日志字段与 slog JSON 记录保持一致，便于 Logstash 统一解析
type accessLog struct {
	Time        string `json:"time"`
	Level       string `json:"level"`
	Msg         string `json:"msg"`
	TraceID     string `json:"trace_id,omitempty"`
	LogToken    string `json:"log_token,omitempty"`
	TargetIndex string `json:"target_index,omitempty"`
	Method      string `json:"method"`
	Path        string `json:"path"`
	ClientIP    string `json:"client_ip"`
	Status      int    `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	BodySize    int    `json:"body_size"`
	Error       string `json:"error,omitempty"`
}

// SetupGin 访问日志与 panic 恢复，探活请求不记录
func SetupGin(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    LogWriter,
		SkipPaths: []string{"/api/ping"},
		Formatter: formatAccessLog,
	}))

	r.Use(gin.Recovery())
}

func formatAccessLog(p gin.LogFormatterParams) string {
	entry := accessLog{
		Time:      p.TimeStamp.Format(time.RFC3339),
		Level:     "INFO",
		Msg:       "GIN_ACCESS",
		TraceID:   accessTraceID(p),
		Method:    p.Method,
		Path:      p.Path,
		ClientIP:  p.ClientIP,
		Status:    p.StatusCode,
		LatencyMs: p.Latency.Milliseconds(),
		BodySize:  p.BodySize,
		Error:     p.ErrorMessage,
	}
	if p.StatusCode >= 500 {
		entry.Level = "ERROR"
	}
	if config.Cfg != nil {
		entry.LogToken = config.Cfg.Logstash.Token
		entry.TargetIndex = config.Cfg.Logstash.Index
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return ""
	}
	return string(line) + "\n"
}

func accessTraceID(p gin.LogFormatterParams) string {
	if id, ok := p.Keys[TraceIDKey].(string); ok && id != "" {
		return id
	}
	if p.Request != nil {
		return TraceIDFrom(p.Request.Context())
	}
	return ""
}
