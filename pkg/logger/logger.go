package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// Init configures the process-wide structured logger. Safe to call more
// than once; later calls replace the logger.
func Init() {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.MessageKey = "event"

	level := zapcore.InfoLevel
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if parsed, err := zapcore.ParseLevel(v); err == nil {
			level = parsed
		}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(os.Stdout),
		level,
	)
	log = zap.New(core)
}

func fields(data map[string]interface{}) []zap.Field {
	if len(data) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(data))
	for k, v := range data {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Info(event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Info(event, fields(data)...)
}

func InfoWithUser(userID string, event string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["user_id"] = userID
	Info(event, data)
}

func Warn(event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Warn(event, fields(data)...)
}

func Error(event string, data map[string]interface{}) {
	if log == nil {
		Init()
	}
	log.Error(event, fields(data)...)
}
