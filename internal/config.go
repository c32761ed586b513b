package internal

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=4000"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	UploadsFilepath      string        `env:"UPLOADS_FILEPATH,required=true"`
	ClientOrigin         string        `env:"CLIENT_ORIGIN,default=http://localhost:5173"`
	HeartbeatPeriod      time.Duration `env:"HEARTBEAT_PERIOD,default=5s"`
	DeathTimeout         time.Duration `env:"DEATH_TIMEOUT,default=1s"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=5m"`
}

// LoggerFromString builds the process logger for the configured level.
func LoggerFromString(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
