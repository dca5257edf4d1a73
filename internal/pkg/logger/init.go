package logger

import (
	"Courier/internal/api/config"
	"io"
	log "log/slog"
	"net"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var LogWriter io.Writer = os.Stdout

// InitLogger 标准输出 (可选滚动文件) + Logstash (可选)，远程连接失败时只写本地
func InitLogger() {
	local := localWriter(config.Cfg.LogFile)
	LogWriter = local

	hLocal := log.NewJSONHandler(local, &log.HandlerOptions{Level: log.LevelInfo})
	var finalHandler log.Handler = hLocal

	cfg := config.Cfg.Logstash
	if cfg.Address != "" {
		conn, err := net.DialTimeout("tcp", cfg.Address, 3*time.Second)
		if err == nil {
			hRemote := log.NewJSONHandler(conn, &log.HandlerOptions{Level: log.LevelInfo}).
				WithAttrs([]log.Attr{
					log.String("target_index", cfg.Index),
					log.String("log_token", cfg.Token),
				})

			finalHandler = &TeeHandler{
				handlers: []log.Handler{hLocal, &RemoteFilterHandler{next: hRemote}},
			}
			LogWriter = io.MultiWriter(local, conn)
		} else {
			log.Warn("Failed to connect to Logstash, logging locally only", "err", err)
		}
	}

	log.SetDefault(log.New(&ContextHandler{finalHandler}))
}

func localWriter(cfg config.LogFileConfig) io.Writer {
	if cfg.Path == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})
}
