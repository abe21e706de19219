package live

import (
	"context"
	"testing"
	"time"

	"classhub/internal/infrastructure/monitoring"
	"classhub/internal/infrastructure/repositories/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, clock *fixedClock) *Server {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()
	collector := monitoring.NewPrometheusCollector(prometheus.NewRegistry())
	return NewServer(
		NewRegistry(clock.Now),
		NewMembership(),
		memory.NewMemoryDeviceRepository(),
		memory.NewMemoryParticipantRepository(),
		collector,
		Config{
			PingInterval:      30 * time.Second,
			ReadTimeout:       time.Minute,
			WriteTimeout:      10 * time.Second,
			SendQueueSize:     16,
			MessagesPerSecond: 100,
			MessageBurst:      100,
		},
		logger,
		clock.Now,
	)
}

func TestMonitorSweepEvictsStaleConnections(t *testing.T) {
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	server := newTestServer(t, clock)
	monitor := NewMonitor(server, 15*time.Second, 45*time.Second, zaptest.NewLogger(t).Sugar(), clock.Now)

	stale := newFakeChannel()
	fresh := newFakeChannel()
	server.registry.Register(&Connection{DeviceID: "dev-stale", UserID: "user-1", Channel: stale})
	server.registry.Register(&Connection{DeviceID: "dev-fresh", UserID: "user-2", Channel: fresh})
	server.membership.Join("session-1", "dev-stale")
	server.membership.Join("session-1", "dev-fresh")
	server.registry.SetSession("dev-stale", "session-1")
	server.registry.SetSession("dev-fresh", "session-1")

	clock.Advance(50 * time.Second)
	require.True(t, server.registry.TouchHeartbeat("dev-fresh"))

	evicted := monitor.Sweep(context.Background())
	assert.Equal(t, 1, evicted)

	assert.Equal(t, StateClosed, stale.State())
	assert.Equal(t, StateOpen, fresh.State())

	_, ok := server.registry.Get("dev-stale")
	assert.False(t, ok)
	_, ok = server.registry.Get("dev-fresh")
	assert.True(t, ok)

	// The surviving member hears about the departure.
	assert.Contains(t, fresh.eventTypes(), "participant_left")
	assert.Equal(t, 1, server.membership.Count("session-1"))
}

func TestMonitorSweepBoundary(t *testing.T) {
	clock := newFixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	server := newTestServer(t, clock)
	timeout := 45 * time.Second
	monitor := NewMonitor(server, 15*time.Second, timeout, zaptest.NewLogger(t).Sugar(), clock.Now)

	older := newFakeChannel()
	exact := newFakeChannel()
	server.registry.Register(&Connection{DeviceID: "dev-older", UserID: "user-1", Channel: older})

	// Register the second device one second later so its heartbeat sits
	// exactly at the cutoff when the first is strictly past it.
	clock.Advance(time.Second)
	server.registry.Register(&Connection{DeviceID: "dev-exact", UserID: "user-2", Channel: exact})

	clock.Advance(timeout)

	evicted := monitor.Sweep(context.Background())
	assert.Equal(t, 1, evicted)

	_, ok := server.registry.Get("dev-older")
	assert.False(t, ok, "silence strictly past the timeout is stale")
	_, ok = server.registry.Get("dev-exact")
	assert.True(t, ok, "heartbeat exactly at the cutoff survives until the next tick")
}

func TestMonitorStartStop(t *testing.T) {
	clock := newFixedClock(time.Now())
	server := newTestServer(t, clock)
	monitor := NewMonitor(server, 5*time.Millisecond, time.Minute, zaptest.NewLogger(t).Sugar(), clock.Now)

	done := make(chan struct{})
	go func() {
		monitor.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	monitor.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
