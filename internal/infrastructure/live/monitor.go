package live

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Monitor is the recurring sweep that bounds the size of the in-memory
// structures: any connection silent for longer than the timeout is
// force-closed and removed from both the registry and the membership index.
// Nothing else removes dead channels.
type Monitor struct {
	server   *Server
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time

	stopChan chan struct{}
	logger   *zap.SugaredLogger
}

func NewMonitor(server *Server, interval, timeout time.Duration, logger *zap.SugaredLogger, now func() time.Time) *Monitor {
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		server:   server,
		interval: interval,
		timeout:  timeout,
		now:      now,
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start runs sweeps until Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(ctx)
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) Stop() {
	close(m.stopChan)
}

// Sweep scans every registered connection once and evicts the stale ones.
// Stale means the silence strictly exceeds the timeout; a heartbeat exactly
// at the cutoff survives until the next tick. Exported so tests can drive
// the eviction boundary with a fake clock.
func (m *Monitor) Sweep(ctx context.Context) int {
	cutoff := m.now().Add(-m.timeout)
	evicted := 0

	for _, conn := range m.server.registry.Snapshot() {
		if !conn.LastHeartbeat.Before(cutoff) {
			continue
		}
		conn.Channel.Close()
		m.server.dropDevice(ctx, conn.DeviceID, conn.Channel, "heartbeat expired")
		m.server.metrics.RecordEviction()
		evicted++
		m.logger.Infow("evicted stale connection",
			"device_id", conn.DeviceID,
			"last_heartbeat", conn.LastHeartbeat,
		)
	}
	return evicted
}
