package live

import (
	"context"
	"errors"
	"net/http"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
	"classhub/internal/infrastructure/monitoring"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config controls the websocket surface of the hub.
type Config struct {
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	SendQueueSize     int
	MessagesPerSecond float64
	MessageBurst      int
}

const persistTimeout = 5 * time.Second

// Server is the message router and broadcaster. Each accepted websocket runs
// its own reader goroutine feeding a select loop, so one device's messages
// are processed in arrival order while devices never block each other.
// Server implements ports.EventSink for the services layered on top.
type Server struct {
	registry   *Registry
	membership *Membership

	devices      ports.DeviceRepository
	participants ports.ParticipantRepository

	control      ports.ControlService
	screenShares ports.ScreenShareService

	metrics  *monitoring.PrometheusCollector
	cfg      Config
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
	now      func() time.Time
}

func NewServer(
	registry *Registry,
	membership *Membership,
	devices ports.DeviceRepository,
	participants ports.ParticipantRepository,
	metrics *monitoring.PrometheusCollector,
	cfg Config,
	logger *zap.SugaredLogger,
	now func() time.Time,
) *Server {
	if now == nil {
		now = time.Now
	}
	return &Server{
		registry:     registry,
		membership:   membership,
		devices:      devices,
		participants: participants,
		metrics:      metrics,
		cfg:          cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // origin checks happen at the platform gateway
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		now:    now,
	}
}

// SetControlService and SetScreenShareService close the wiring loop: the
// services broadcast through the server, the server dispatches inbound
// control and share messages to the services.
func (s *Server) SetControlService(control ports.ControlService) {
	s.control = control
}

func (s *Server) SetScreenShareService(screenShares ports.ScreenShareService) {
	s.screenShares = screenShares
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	ch := newWSChannel(conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout, s.logger)
	defer ch.Close()

	conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.cfg.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSecond), s.cfg.MessageBurst)
	}

	messageChan := make(chan inboundMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
			messageChan <- msg
		}
	}()

	pingTicker := time.NewTicker(s.cfg.PingInterval)
	defer pingTicker.Stop()

	// Device identity is bound by the first successful register message.
	var deviceID domain.DeviceID

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				ch.TrySend(errorEvent("message rate exceeded"))
				continue
			}
			s.metrics.RecordInboundMessage(msg.Type)
			deviceID = s.dispatch(context.Background(), deviceID, ch, msg)

		case <-pingTicker.C:
			if ch.State() != StateOpen {
				goto cleanup
			}
			if err := ch.Ping(); err != nil {
				s.logger.Infow("ping failed", "device_id", deviceID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "device_id", deviceID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	ch.Close()
	if deviceID != "" {
		s.dropDevice(context.Background(), deviceID, ch, "disconnected")
	}
}

// dispatch decodes nothing beyond what ReadJSON already did: it routes the
// tagged variant. A malformed or unknown message yields an error event on
// the same channel; the channel is never closed for a decode problem.
func (s *Server) dispatch(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) domain.DeviceID {
	switch msg.Type {
	case msgRegister:
		return s.handleRegister(ctx, deviceID, ch, msg)
	case msgHeartbeat:
		s.handleHeartbeat(ctx, deviceID)
	case msgJoinSession:
		s.handleJoin(ctx, deviceID, ch, msg)
	case msgLeaveSession:
		s.handleLeave(ctx, deviceID, msg)
	case msgScreenShareStart:
		s.handleScreenShareStart(ctx, deviceID, ch, msg)
	case msgScreenShareStop:
		s.handleScreenShareStop(ctx, deviceID, ch, msg)
	case msgDeviceControl:
		s.handleDeviceControl(ctx, deviceID, ch, msg)
	default:
		ch.TrySend(errorEvent("unknown message type: " + msg.Type))
	}
	return deviceID
}

func (s *Server) handleRegister(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) domain.DeviceID {
	if msg.UserID == "" {
		ch.TrySend(errorEvent("userId is required"))
		return deviceID
	}

	id := msg.DeviceID
	if id == "" {
		id = domain.DeviceID(uuid.NewString())
	}

	outcome := s.registry.Register(&Connection{
		DeviceID: id,
		UserID:   msg.UserID,
		TenantID: msg.TenantID,
		Info:     msg.DeviceInfo,
		Channel:  ch,
	})
	if outcome == OutcomeRegistered {
		s.metrics.DeviceConnected()
	}
	s.metrics.RecordRegistration(string(outcome))

	// Best effort: a storage outage must not block registration.
	go func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		record := &domain.DeviceRecord{
			ID:            id,
			UserID:        msg.UserID,
			TenantID:      msg.TenantID,
			Info:          msg.DeviceInfo,
			LastHeartbeat: s.now(),
			RegisteredAt:  s.now(),
		}
		if err := s.devices.Register(persistCtx, record); err != nil {
			s.metrics.RecordPersistenceFailure()
			s.logger.Warnw("device record persist failed", "device_id", id, "error", err)
		}
	}()

	ch.TrySend(registeredEvent(id))
	s.logger.Infow("device registered", "device_id", id, "user_id", msg.UserID, "outcome", outcome)
	return id
}

func (s *Server) handleHeartbeat(ctx context.Context, deviceID domain.DeviceID) {
	if deviceID == "" {
		return
	}
	if !s.registry.TouchHeartbeat(deviceID) {
		return
	}
	go func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.devices.UpdateHeartbeat(persistCtx, deviceID, s.now()); err != nil {
			s.metrics.RecordPersistenceFailure()
			s.logger.Debugw("heartbeat persist failed", "device_id", deviceID, "error", err)
		}
	}()
}

func (s *Server) handleJoin(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) {
	if deviceID == "" {
		ch.TrySend(errorEvent("register before joining a session"))
		return
	}
	if msg.SessionID == "" {
		ch.TrySend(errorEvent("sessionId is required"))
		return
	}
	if msg.DeviceID != "" && msg.DeviceID != deviceID {
		ch.TrySend(errorEvent("deviceId does not match this channel"))
		return
	}

	conn, ok := s.registry.Get(deviceID)
	if !ok {
		// Evicted between register and join: no channel to associate.
		return
	}

	outcome, previous := s.membership.Join(msg.SessionID, deviceID)
	if previous != "" {
		s.Broadcast(ctx, previous, participantLeftEvent(deviceID), deviceID)
		s.removeParticipantRecord(previous, deviceID)
		if s.membership.Count(previous) == 0 {
			s.metrics.SessionDeactivated()
		}
	}
	if outcome == OutcomeAlreadyMember {
		ch.TrySend(sessionJoinedEvent(msg.SessionID))
		return
	}

	s.registry.SetSession(deviceID, msg.SessionID)
	if s.membership.Count(msg.SessionID) == 1 {
		s.metrics.SessionActivated()
	}

	joined := s.now()
	go func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		participant := &domain.Participant{
			SessionID: msg.SessionID,
			DeviceID:  deviceID,
			UserID:    conn.UserID,
			Role:      msg.Role,
			JoinedAt:  joined,
		}
		if err := s.participants.Add(persistCtx, participant); err != nil {
			s.metrics.RecordPersistenceFailure()
			s.logger.Warnw("participant persist failed",
				"session_id", msg.SessionID, "device_id", deviceID, "error", err)
		}
	}()

	ch.TrySend(sessionJoinedEvent(msg.SessionID))
	s.Broadcast(ctx, msg.SessionID, participantJoinedEvent(conn.UserID, deviceID, conn.Info), deviceID)
	s.logger.Infow("device joined session", "session_id", msg.SessionID, "device_id", deviceID)
}

func (s *Server) handleLeave(ctx context.Context, deviceID domain.DeviceID, msg inboundMessage) {
	if deviceID == "" {
		return
	}
	sessionID := msg.SessionID
	if sessionID == "" {
		current, ok := s.membership.SessionOf(deviceID)
		if !ok {
			return
		}
		sessionID = current
	}

	if !s.membership.Leave(sessionID, deviceID) {
		return
	}
	s.registry.ClearSession(deviceID)
	s.removeParticipantRecord(sessionID, deviceID)
	s.Broadcast(ctx, sessionID, participantLeftEvent(deviceID), deviceID)
	if s.membership.Count(sessionID) == 0 {
		s.metrics.SessionDeactivated()
	}
	s.logger.Infow("device left session", "session_id", sessionID, "device_id", deviceID)
}

func (s *Server) handleScreenShareStart(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) {
	if deviceID == "" {
		ch.TrySend(errorEvent("register before sharing"))
		return
	}
	if msg.SessionID == "" || msg.StreamURL == "" {
		ch.TrySend(errorEvent("sessionId and streamUrl are required"))
		return
	}
	conn, ok := s.registry.Get(deviceID)
	if !ok {
		return
	}

	if _, err := s.screenShares.Start(ctx, msg.SessionID, conn.UserID, deviceID, msg.ShareType, msg.Quality, msg.StreamURL); err != nil {
		s.logger.Warnw("screen share start failed", "session_id", msg.SessionID, "error", err)
		ch.TrySend(errorEvent("screen share start failed"))
	}
}

func (s *Server) handleScreenShareStop(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) {
	if deviceID == "" {
		return
	}
	if msg.ScreenShareID == "" {
		ch.TrySend(errorEvent("screenShareId is required"))
		return
	}
	if err := s.screenShares.Stop(ctx, msg.ScreenShareID); err != nil {
		// Unknown share is a silent no-op; anything else is reported.
		if !errors.Is(err, domain.ErrShareNotFound) {
			s.logger.Warnw("screen share stop failed", "share_id", msg.ScreenShareID, "error", err)
			ch.TrySend(errorEvent("screen share stop failed"))
		}
	}
}

func (s *Server) handleDeviceControl(ctx context.Context, deviceID domain.DeviceID, ch Channel, msg inboundMessage) {
	if deviceID == "" {
		ch.TrySend(errorEvent("register before issuing control commands"))
		return
	}
	if msg.SessionID == "" || msg.TargetDeviceID == "" || msg.ActionType == "" {
		ch.TrySend(errorEvent("sessionId, targetDeviceId and actionType are required"))
		return
	}
	conn, ok := s.registry.Get(deviceID)
	if !ok {
		return
	}

	_, delivery, err := s.control.Issue(ctx, msg.SessionID, conn.UserID, msg.TargetDeviceID, msg.TargetUserID, msg.ActionType, msg.ActionData)
	if err != nil {
		s.logger.Warnw("control issue failed", "session_id", msg.SessionID, "target", msg.TargetDeviceID, "error", err)
		ch.TrySend(errorEvent("device control failed"))
		return
	}
	s.metrics.RecordControlAction(string(delivery))
}

// dropDevice removes the device from both live structures, but only while
// the registry entry still belongs to ch: a connection that was replaced
// must not tear down its successor.
func (s *Server) dropDevice(ctx context.Context, deviceID domain.DeviceID, ch Channel, reason string) {
	conn, ok := s.registry.RemoveIfChannel(deviceID, ch)
	if !ok {
		return
	}
	s.metrics.DeviceDisconnected()

	// A join lands in the membership index before the session is bound in
	// the registry, so the reverse index is authoritative when the snapshot
	// carries no session.
	sessionID := conn.SessionID
	if sessionID == "" {
		if current, ok := s.membership.SessionOf(deviceID); ok {
			sessionID = current
		}
	}

	if sessionID != "" && s.membership.Leave(sessionID, deviceID) {
		s.removeParticipantRecord(sessionID, deviceID)
		s.Broadcast(ctx, sessionID, participantLeftEvent(deviceID), deviceID)
		if s.membership.Count(sessionID) == 0 {
			s.metrics.SessionDeactivated()
		}
	}
	s.logger.Infow("device removed", "device_id", deviceID, "reason", reason)
}

func (s *Server) removeParticipantRecord(sessionID domain.SessionID, deviceID domain.DeviceID) {
	go func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.participants.Remove(persistCtx, sessionID, deviceID); err != nil {
			s.metrics.RecordPersistenceFailure()
			s.logger.Debugw("participant remove persist failed",
				"session_id", sessionID, "device_id", deviceID, "error", err)
		}
	}()
}

// Broadcast fans event out to the session's current members, skipping
// exclude. Sends are fire-and-forget: a member whose channel is not open is
// skipped and left in the set for the heartbeat monitor to reap.
func (s *Server) Broadcast(ctx context.Context, sessionID domain.SessionID, event ports.Event, exclude domain.DeviceID) int {
	delivered := 0
	for _, memberID := range s.membership.Members(sessionID) {
		if memberID == exclude {
			continue
		}
		conn, ok := s.registry.Get(memberID)
		if !ok || conn.Channel.State() != StateOpen {
			continue
		}
		if conn.Channel.TrySend(event) {
			delivered++
		} else {
			s.metrics.RecordDroppedEvent()
		}
	}
	s.metrics.RecordBroadcast(delivered)
	return delivered
}

// SendToDevice attempts a targeted non-blocking send.
func (s *Server) SendToDevice(deviceID domain.DeviceID, event ports.Event) bool {
	conn, ok := s.registry.Get(deviceID)
	if !ok || conn.Channel.State() != StateOpen {
		return false
	}
	if !conn.Channel.TrySend(event) {
		s.metrics.RecordDroppedEvent()
		return false
	}
	return true
}

// Liveness reports connection state and last heartbeat for merged queries.
func (s *Server) Liveness(deviceID domain.DeviceID) (bool, time.Time) {
	conn, ok := s.registry.Get(deviceID)
	if !ok {
		return false, time.Time{}
	}
	return conn.Channel.State() == StateOpen, conn.LastHeartbeat
}

// TearDown evicts all members of an ended session from the live structures.
// Channels stay open; devices may register interest in another session.
func (s *Server) TearDown(ctx context.Context, sessionID domain.SessionID) {
	members := s.membership.Drop(sessionID)
	for _, memberID := range members {
		s.registry.ClearSession(memberID)
	}
	if len(members) > 0 {
		s.metrics.SessionDeactivated()
		s.logger.Infow("session torn down", "session_id", sessionID, "members", len(members))
	}
}

// ConnectionCount feeds the health surface.
func (s *Server) ConnectionCount() int {
	return s.registry.Count()
}
