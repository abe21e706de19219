package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
	"classhub/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions     ports.SessionService
	control      ports.ControlService
	screenShares ports.ScreenShareService
}

func NewSessionHandler(
	sessions ports.SessionService,
	control ports.ControlService,
	screenShares ports.ScreenShareService,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		control:      control,
		screenShares: screenShares,
	}
}

func (h *SessionHandler) SetupRoutes(api *gin.RouterGroup) {
	api.POST("/sessions", middleware.RequireTeacher(), h.CreateSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.PATCH("/sessions/:id/status", middleware.RequireTeacher(), h.UpdateSessionStatus)
	api.GET("/sessions/:id/participants", h.ListParticipants)
	api.GET("/sessions/:id/devices", h.ListDevices)
	api.GET("/sessions/:id/screenshares", h.ListScreenShares)
	api.POST("/sessions/:id/control", middleware.RequireTeacher(), h.IssueControl)
	api.POST("/controls/:id/response", h.ReportControlResponse)
	api.GET("/controls/pending", h.ListPendingControls)
}

func callerID(c *gin.Context) domain.UserID {
	if v, exists := c.Get(middleware.ContextUserID); exists {
		if id, ok := v.(domain.UserID); ok {
			return id
		}
	}
	return ""
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		Title          string    `json:"title" binding:"required,min=1,max=200"`
		TenantID       string    `json:"tenantId"`
		ScheduledStart time.Time `json:"scheduledStart" binding:"required"`
		ScheduledEnd   time.Time `json:"scheduledEnd" binding:"required"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), callerID(c),
		domain.TenantID(req.TenantID), req.Title, req.ScheduledStart, req.ScheduledEnd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": sessionJSON(session)})
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListByTeacher(c.Request.Context(), callerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionJSON(s))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionJSON(session)})
}

func (h *SessionHandler) UpdateSessionStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next := domain.SessionStatus(req.Status)
	switch next {
	case domain.SessionScheduled, domain.SessionLive, domain.SessionEnded:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown session status"})
		return
	}

	session, err := h.sessions.UpdateStatus(c.Request.Context(),
		domain.SessionID(c.Param("id")), callerID(c), next)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sessionJSON(session)})
}

func (h *SessionHandler) ListParticipants(c *gin.Context) {
	views, err := h.sessions.Participants(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(views))
	for _, v := range views {
		out = append(out, gin.H{
			"deviceId":      v.DeviceID,
			"userId":        v.UserID,
			"role":          v.Role,
			"joinedAt":      v.JoinedAt,
			"connected":     v.Connected,
			"lastHeartbeat": v.LastHeartbeat,
		})
	}
	c.JSON(http.StatusOK, gin.H{"participants": out})
}

func (h *SessionHandler) ListDevices(c *gin.Context) {
	devices, err := h.sessions.Devices(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(devices))
	for _, d := range devices {
		out = append(out, gin.H{
			"deviceId":      d.ID,
			"userId":        d.UserID,
			"info":          d.Info,
			"connected":     d.Connected,
			"lastHeartbeat": d.LastHeartbeat,
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (h *SessionHandler) ListScreenShares(c *gin.Context) {
	shares, err := h.screenShares.ListActive(c.Request.Context(), domain.SessionID(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(shares))
	for _, s := range shares {
		out = append(out, gin.H{
			"screenShareId":     s.ID,
			"sessionId":         s.SessionID,
			"presenterId":       s.PresenterUserID,
			"presenterDeviceId": s.PresenterDeviceID,
			"shareType":         s.ShareType,
			"quality":           s.Quality,
			"streamUrl":         s.StreamURL,
			"active":            s.Active,
			"startedAt":         s.StartedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"screenShares": out})
}

func (h *SessionHandler) IssueControl(c *gin.Context) {
	var req struct {
		TargetDeviceID string          `json:"targetDeviceId" binding:"required"`
		TargetUserID   string          `json:"targetUserId"`
		ActionType     string          `json:"actionType" binding:"required"`
		ActionData     json.RawMessage `json:"actionData"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, delivery, err := h.control.Issue(c.Request.Context(),
		domain.SessionID(c.Param("id")), callerID(c),
		domain.DeviceID(req.TargetDeviceID), domain.UserID(req.TargetUserID),
		req.ActionType, req.ActionData)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"action":   actionJSON(action),
		"delivery": delivery,
	})
}

func (h *SessionHandler) ReportControlResponse(c *gin.Context) {
	var req struct {
		Status   string          `json:"status" binding:"required"`
		Response json.RawMessage `json:"response"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	status := domain.ActionStatus(req.Status)
	switch status {
	case domain.ActionDelivered, domain.ActionAcknowledged, domain.ActionFailed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action status"})
		return
	}

	err := h.control.ReportResponse(c.Request.Context(),
		domain.ActionID(c.Param("id")), status, req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SessionHandler) ListPendingControls(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device_id query parameter required"})
		return
	}

	actions, err := h.control.ListPending(c.Request.Context(), domain.DeviceID(deviceID))
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]gin.H, 0, len(actions))
	for _, a := range actions {
		out = append(out, actionJSON(a))
	}
	c.JSON(http.StatusOK, gin.H{"actions": out})
}

func sessionJSON(s *domain.LiveSession) gin.H {
	return gin.H{
		"id":             s.ID,
		"teacherId":      s.TeacherID,
		"tenantId":       s.TenantID,
		"title":          s.Title,
		"status":         s.Status,
		"scheduledStart": s.ScheduledStart,
		"scheduledEnd":   s.ScheduledEnd,
		"actualStart":    s.ActualStart,
		"actualEnd":      s.ActualEnd,
		"createdAt":      s.CreatedAt,
	}
}

func actionJSON(a *domain.ControlAction) gin.H {
	return gin.H{
		"actionId":       a.ID,
		"sessionId":      a.SessionID,
		"controllerId":   a.ControllerID,
		"targetDeviceId": a.TargetDeviceID,
		"targetUserId":   a.TargetUserID,
		"actionType":     a.ActionType,
		"actionData":     a.ActionData,
		"status":         a.Status,
		"response":       a.Response,
		"createdAt":      a.CreatedAt,
		"updatedAt":      a.UpdatedAt,
	}
}

// respondError maps domain sentinels onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrDeviceNotFound),
		errors.Is(err, domain.ErrActionNotFound),
		errors.Is(err, domain.ErrShareNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotSessionOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
