package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options adjust a logger beyond its environment defaults.
type Options struct {
	Level  string // debug, info, warn, error; empty keeps the environment's level
	Engine string // search driver stamped on every entry
}

// New builds the searchdex logger. prod writes JSON with ISO-8601 timestamps;
// local, dev and docker write colored console output at debug level.
func New(env string, opts Options) (*zap.Logger, error) {
	cfg, err := buildConfig(env, opts)
	if err != nil {
		return nil, err
	}
	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func buildConfig(env string, opts Options) (zap.Config, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return cfg, fmt.Errorf("unknown environment %q for logger", env)
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return cfg, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	cfg.InitialFields = map[string]any{"service": "searchdex", "env": env}
	if opts.Engine != "" {
		cfg.InitialFields["engine"] = opts.Engine
	}
	return cfg, nil
}
