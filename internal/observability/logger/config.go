package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const samplingTick = time.Second

// Config configura el logger global.
type Config struct {
	// Env "prod" implica JSON + sampling; cualquier otro valor, consola.
	Env string
	// Level: debug | info | warn | error (default info).
	Level string
	// Format fuerza "json" o "console" sin importar Env.
	Format string

	ServiceName string
	Version     string
}

func (c Config) json() bool {
	switch strings.ToLower(strings.TrimSpace(c.Format)) {
	case "json":
		return true
	case "console":
		return false
	}
	return strings.EqualFold(c.Env, "prod")
}

func (c Config) encoder() zapcore.Encoder {
	if c.json() {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeDuration = zapcore.SecondsDurationEncoder
		return zapcore.NewJSONEncoder(ec)
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	ec.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// build arma el logger a mano (encoder + core) para poder combinar formato,
// nivel y sampling sin pasar por zap.Config.
func build(cfg Config) *zap.Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	core := zapcore.NewCore(cfg.encoder(), zapcore.Lock(os.Stderr), level)

	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if strings.EqualFold(cfg.Env, "prod") {
		core = zapcore.NewSamplerWithOptions(core, samplingTick, 100, 100)
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	l := zap.New(core, opts...)
	if cfg.ServiceName != "" {
		l = l.With(zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		l = l.With(zap.String("version", cfg.Version))
	}
	return l
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
