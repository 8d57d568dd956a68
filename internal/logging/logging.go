package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// New builds the process-wide logger from LOG_LEVEL and redirects the
// standard library logger into it so all output is unified.
func New() *zap.Logger {
	var logger *zap.Logger
	if strings.ToLower(os.Getenv("LOG_LEVEL")) == "debug" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	zap.RedirectStdLog(logger)
	return logger
}
