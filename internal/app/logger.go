package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "attendance"

// LogOptions параметры логгера сервиса
type LogOptions struct {
	Env string
	// Level пустой: debug в разработке, info в production
	Level string
	// Location часовой пояс меток времени; совпадает с поясом расписания
	Location *time.Location
}

// NewLogger в production пишет JSON с семплированием повторов,
// в разработке цветной консольный вывод. Метки времени в поясе расписания.
func NewLogger(opts LogOptions) (*zap.Logger, error) {
	config := loggerConfig(opts.Env)

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		config.Level = zap.NewAtomicLevelAt(level)
	}

	if opts.Location != nil {
		loc := opts.Location
		config.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(loc).Format("2006-01-02T15:04:05.000Z07:00"))
		}
	}

	config.OutputPaths = []string{"stdout"}
	config.InitialFields = map[string]any{
		"service": serviceName,
		"env":     opts.Env,
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func loggerConfig(env string) zap.Config {
	if env == "production" {
		config := zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		// повторы тика планировщика
		config.Sampling = &zap.SamplingConfig{Initial: 20, Thereafter: 100}
		return config
	}

	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.DisableStacktrace = true
	return config
}
