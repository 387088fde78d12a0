package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func InitLogger(mode string) {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.OutputPaths = []string{"stdout"}
	var err error
	Log, err = config.Build()
	if err != nil {
		os.Exit(1)
	}
	zap.ReplaceGlobals(Log)
}

// InitTestLogger installs a no-op logger so service tests do not need
// a config file.
func InitTestLogger() {
	Log = zap.NewNop()
	zap.ReplaceGlobals(Log)
}
