package system

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Manager starts services in registration order and stops them in
// reverse. A start failure stops the already-started services before
// returning.
type Manager struct {
	services []Service
	started  []Service
	logger   *logrus.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{logger: logger}
}

// Register appends a service to the start order.
func (m *Manager) Register(svc Service) {
	m.services = append(m.services, svc)
}

// Start brings every registered service up.
func (m *Manager) Start(ctx context.Context) error {
	for _, svc := range m.services {
		m.logger.WithField("service", svc.Name()).Info("Starting service")
		if err := svc.Start(ctx); err != nil {
			m.logger.WithField("service", svc.Name()).WithError(err).Error("Service failed to start")
			m.stopStarted(ctx)
			return fmt.Errorf("start %s: %w", svc.Name(), err)
		}
		m.started = append(m.started, svc)
	}
	return nil
}

// Stop shuts down started services in reverse order. All services are
// attempted; the first error is returned.
func (m *Manager) Stop(ctx context.Context) error {
	var firstErr error
	for i := len(m.started) - 1; i >= 0; i-- {
		svc := m.started[i]
		m.logger.WithField("service", svc.Name()).Info("Stopping service")
		if err := svc.Stop(ctx); err != nil {
			m.logger.WithField("service", svc.Name()).WithError(err).Error("Service failed to stop")
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", svc.Name(), err)
			}
		}
	}
	m.started = nil
	return firstErr
}

func (m *Manager) stopStarted(ctx context.Context) {
	for i := len(m.started) - 1; i >= 0; i-- {
		_ = m.started[i].Stop(ctx)
	}
	m.started = nil
}
