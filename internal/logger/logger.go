package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every log entry
const ServiceName = "printsync"

// New creates a structured logger for one binary (api, worker, ...)
func New(env, component string) (*zap.Logger, error) {
	logger, err := newConfig(env).Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return withComponent(logger, component), nil
}

func newConfig(env string) zap.Config {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		// Ensure structured JSON format in production
		config.Encoding = "json"
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Always log to stdout for container compatibility
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	return config
}

func withComponent(logger *zap.Logger, component string) *zap.Logger {
	logger = logger.With(zap.String("service", ServiceName))
	if component != "" {
		logger = logger.With(zap.String("component", component))
	}
	return logger
}
