// Package log wires up the logrus logger the scan engine and CLI log
// through. Production runs discard all output; debug runs
// write JSON-formatted entries to development.log under the config dir.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/var77/memscan/pkg/config"
)

// NewLogger returns a logger pre-tagged with build metadata from cfg.
func NewLogger(cfg *config.AppConfig) *logrus.Entry {
	var logger *logrus.Logger
	if cfg.Debug || os.Getenv("DEBUG") == "TRUE" {
		logger = newDevelopmentLogger(cfg)
	} else {
		logger = newProductionLogger()
	}

	logger.Formatter = &logrus.JSONFormatter{}

	return logger.WithFields(logrus.Fields{
		"debug":     cfg.Debug,
		"version":   cfg.Version,
		"commit":    cfg.Commit,
		"buildDate": cfg.BuildDate,
	})
}

func getLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}

func newDevelopmentLogger(cfg *config.AppConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(getLogLevel())
	file, err := os.OpenFile(filepath.Join(cfg.ConfigDir, "development.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		fmt.Println("unable to log to file")
		os.Exit(1)
	}
	logger.SetOutput(file)
	return logger
}

func newProductionLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}
