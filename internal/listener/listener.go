package listener

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/models"
)

// Listener is the UniFi controller integration point. In this release it
// never opens a controller session: grouping runs on caller-supplied device
// lists, and the poll loop only keeps the wiring warm for the future
// integration.
type Listener struct {
	host     string
	username string
	password string
	interval time.Duration
	logger   *zap.Logger
}

// New creates a listener for the given controller. Credentials are carried
// but stay unused until a real session exists.
func New(host, username, password string, interval time.Duration, logger *zap.Logger) *Listener {
	return &Listener{
		host:     host,
		username: username,
		password: password,
		interval: interval,
		logger:   logger,
	}
}

// Reachable reports the controller flag for the health endpoint. Stubbed to
// true until the listener holds a real session.
func (l *Listener) Reachable() bool {
	return true
}

// ConnectedDevices would return the controller's current client list.
// Without a session there is nothing to return.
func (l *Listener) ConnectedDevices() []models.RawDevice {
	l.logger.Warn("Device listing unavailable without controller connection")
	return []models.RawDevice{}
}

// Run starts the polling loop (placeholder for future use).
func (l *Listener) Run(ctx context.Context) {
	l.logger.Warn("UniFi controller connection not implemented - running in suggestion-only mode",
		zap.String("controller", l.host))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("VLAN listener stopped")
			return
		case <-ticker.C:
			l.logger.Debug("VLAN listener tick - controller polling not yet implemented")
		}
	}
}
