// Package app bootstraps the pieces a single CLI invocation needs: the
// loaded config and the logger built from it.
package app

import (
	"github.com/sirupsen/logrus"
	"github.com/var77/memscan/pkg/config"
	"github.com/var77/memscan/pkg/log"
)

// App bundles the config and logger every CLI command needs.
type App struct {
	Config *config.AppConfig
	Log    *logrus.Entry
}

// NewApp loads the config for name/version/commit/date and builds the
// logger from it.
func NewApp(name, version, commit, date string, debuggingFlag bool) (*App, error) {
	cfg, err := config.NewAppConfig(name, version, commit, date, "", debuggingFlag)
	if err != nil {
		return nil, err
	}

	return &App{
		Config: cfg,
		Log:    log.NewLogger(cfg),
	}, nil
}
