//go:build !windows && !linux

package platform

import (
	"github.com/sirupsen/logrus"

	"github.com/idlelock/idlelock/internal/domain"
)

// New reports that no backend exists for this operating system.
func New(log *logrus.Entry) (domain.Platform, error) {
	return nil, domain.ErrUnsupportedPlatform
}
