package cli

import (
	"errors"

	"github.com/idlelock/idlelock/internal/api"
	"github.com/idlelock/idlelock/internal/daemon"
)

var errAPIDisabled = errors.New("status API is disabled in config (api.enabled = false)")

// newClient connects to the status API of the running guard.
func newClient() (*api.Client, error) {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.API.Enabled {
		return nil, errAPIDisabled
	}
	return api.NewClient(cfg.API.Host, cfg.API.Port), nil
}
