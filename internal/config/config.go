// Package config resolves client settings from the environment, with an
// optional .env file for development.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config interface {
	BaseURL() string
	RequestTimeout() time.Duration
	SessionFile() string
	SessionKeyFile() string
	LogLevel() string
}

type envVars struct {
	APIBaseURL     string        `env:"CRM_API_URL" envDefault:"http://localhost:8000/api"`
	Timeout        time.Duration `env:"CRM_REQUEST_TIMEOUT" envDefault:"15s"`
	SessionPath    string        `env:"CRM_SESSION_FILE"`
	SessionKeyPath string        `env:"CRM_SESSION_KEY_FILE"`
	Level          string        `env:"CRM_LOG_LEVEL" envDefault:"info"`
}

var _ Config = (*envVars)(nil)

// New loads settings from the process environment. A .env file in the
// working directory is folded in when present.
func New() (Config, error) {
	_ = godotenv.Load()

	var vars envVars
	if err := env.Parse(&vars); err != nil {
		return nil, errors.Wrap(err, "[config.New] parse environment")
	}
	return &vars, nil
}

func (e *envVars) BaseURL() string {
	return e.APIBaseURL
}

func (e *envVars) RequestTimeout() time.Duration {
	return e.Timeout
}

// SessionFile defaults to the platform config dir when unset.
func (e *envVars) SessionFile() string {
	if e.SessionPath != "" {
		return e.SessionPath
	}
	return filepath.Join(configDir(), "session.json")
}

// SessionKeyFile is empty when the snapshot should be stored unsealed.
func (e *envVars) SessionKeyFile() string {
	return e.SessionKeyPath
}

func (e *envVars) LogLevel() string {
	return e.Level
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "crm")
}
