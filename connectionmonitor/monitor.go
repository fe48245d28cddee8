package connectionmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// defaultHealthCheckInterval defines interval between connection health checks
	defaultHealthCheckInterval = 30 * time.Second
	// defaultReconnectTimeout defines the wait between reconnection attempts
	defaultReconnectTimeout = 5 * time.Second
	// defaultMaxReconnectAttempts defines maximum number of reconnection attempts
	defaultMaxReconnectAttempts = 3
)

// ConnectionMonitor represents connection state monitoring interface
type ConnectionMonitor interface {
	// Start starts connection monitoring
	Start(ctx context.Context) error
	// Stop stops connection monitoring
	Stop()
}

// BlockchainClient represents blockchain client interface
type BlockchainClient interface {
	// CheckConnection checks if connection is alive
	CheckConnection(ctx context.Context) error
	// Reconnect attempts to reconnect to blockchain node
	Reconnect(ctx context.Context) error
}

// StatusReporter receives the result of every health check.
type StatusReporter interface {
	SetChainUp(chain string, up bool)
}

// Options tune the monitor. Zero values select the defaults.
type Options struct {
	Interval          time.Duration  // Interval between health checks.
	ReconnectWait     time.Duration  // Wait between reconnection attempts.
	ReconnectAttempts int            // Attempts before a check is reported as failed.
	Reporter          StatusReporter // Optional health sink.
}

type connectionMonitor struct {
	client       BlockchainClient
	logger       *logrus.Logger
	chainName    string
	opts         Options
	stopChan     chan struct{}
	isMonitoring bool
	monitorMutex sync.RWMutex
}

// NewConnectionMonitor creates a new connection monitor instance.
//
// Parameters:
// - client: the blockchain client to monitor.
// - logger: the logger for logging purposes.
// - chainName: the name of the blockchain chain.
// - opts: timing and reporting options.
//
// Returns:
// - ConnectionMonitor: the new connection monitor instance.
func NewConnectionMonitor(
	client BlockchainClient,
	logger *logrus.Logger,
	chainName string,
	opts Options,
) ConnectionMonitor {
	if opts.Interval <= 0 {
		opts.Interval = defaultHealthCheckInterval
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = defaultReconnectTimeout
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultMaxReconnectAttempts
	}

	return &connectionMonitor{
		client:       client,
		logger:       logger,
		chainName:    chainName,
		opts:         opts,
		stopChan:     make(chan struct{}),
		isMonitoring: false,
	}
}

// Start starts connection monitoring.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the connection monitor is already running.
func (m *connectionMonitor) Start(ctx context.Context) error {
	m.monitorMutex.Lock()
	if m.isMonitoring {
		m.monitorMutex.Unlock()
		return errors.Errorf("connection monitor is already running for chain %s", m.chainName)
	}
	m.isMonitoring = true
	m.monitorMutex.Unlock()

	go m.monitorConnection(ctx)
	return nil
}

// Stop stops connection monitoring.
func (m *connectionMonitor) Stop() {
	m.monitorMutex.Lock()
	defer m.monitorMutex.Unlock()

	if !m.isMonitoring {
		return
	}

	close(m.stopChan)
	m.isMonitoring = false
}

// monitorConnection monitors the connection state and attempts to reconnect if needed.
//
// Parameters:
// - ctx: the context for managing the request.
func (m *connectionMonitor) monitorConnection(ctx context.Context) {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.WithField("chain", m.chainName).Debug("Connection monitoring stopped due to context cancellation")
			return

		case <-m.stopChan:
			m.logger.WithField("chain", m.chainName).Debug("Connection monitoring stopped")
			return

		case <-ticker.C:
			err := m.checkAndReconnect(ctx)
			m.report(err == nil)
			if err != nil {
				m.logger.WithFields(logrus.Fields{
					"chain": m.chainName,
					"error": err,
				}).Error("Failed to check or reconnect")
			}
		}
	}
}

func (m *connectionMonitor) report(up bool) {
	if m.opts.Reporter != nil {
		m.opts.Reporter.SetChainUp(m.chainName, up)
	}
}

// checkAndReconnect checks the connection state and attempts to reconnect if needed.
//
// Parameters:
// - ctx: the context for managing the request.
//
// Returns:
// - error: an error if the reconnection fails.
func (m *connectionMonitor) checkAndReconnect(ctx context.Context) error {
	err := m.client.CheckConnection(ctx)
	if err == nil {
		m.logger.WithField("chain", m.chainName).Debug("Ping successful")
		return nil
	}

	m.logger.WithFields(logrus.Fields{
		"chain": m.chainName,
		"error": err,
	}).Warn("Connection check failed, attempting to reconnect")

	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		if err := m.client.Reconnect(ctx); err != nil {
			m.logger.WithFields(logrus.Fields{
				"chain":   m.chainName,
				"attempt": attempt,
				"error":   err,
			}).Error("Reconnection attempt failed")

			if attempt == m.opts.ReconnectAttempts {
				return errors.Wrapf(err, "failed to reconnect to chain %s", m.chainName)
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.opts.ReconnectWait):
				continue
			}
		}

		m.logger.WithFields(logrus.Fields{
			"chain":   m.chainName,
			"attempt": attempt,
		}).Info("Client successfully reconnected")
		return nil
	}

	return nil
}
