package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classhub/internal/core/domain"
	"classhub/internal/core/ports"
	"classhub/internal/core/services"
	"classhub/internal/infrastructure/middleware"
	"classhub/internal/infrastructure/repositories/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// nullSink satisfies the event sink for handler tests: nothing is live.
type nullSink struct{}

func (nullSink) Broadcast(ctx context.Context, sessionID domain.SessionID, event ports.Event, exclude domain.DeviceID) int {
	return 0
}
func (nullSink) SendToDevice(deviceID domain.DeviceID, event ports.Event) bool { return false }
func (nullSink) Liveness(deviceID domain.DeviceID) (bool, time.Time)           { return false, time.Time{} }
func (nullSink) TearDown(ctx context.Context, sessionID domain.SessionID)      {}

type apiFixture struct {
	router  *gin.Engine
	auth    services.AuthService
	actions ports.ControlActionRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t).Sugar()

	sessionRepo := memory.NewMemorySessionRepository()
	participantRepo := memory.NewMemoryParticipantRepository()
	deviceRepo := memory.NewMemoryDeviceRepository()
	actionRepo := memory.NewMemoryControlActionRepository()
	shareRepo := memory.NewMemoryScreenShareRepository()

	sink := nullSink{}
	sessionService := services.NewSessionService(sessionRepo, participantRepo, deviceRepo, sink, logger, nil)
	controlService := services.NewControlService(actionRepo, sink, logger, nil)
	screenShareService := services.NewScreenShareService(shareRepo, sink, logger, nil)
	auth := services.NewAuthService("test-secret", 15*time.Minute)

	handler := NewSessionHandler(sessionService, controlService, screenShareService)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(auth))
	handler.SetupRoutes(api)

	return &apiFixture{router: router, auth: auth, actions: actionRepo}
}

func (f *apiFixture) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := f.auth.GenerateToken(domain.UserID(userID), role)
	require.NoError(t, err)
	return token
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func createSessionBody() map[string]interface{} {
	start := time.Now().Add(time.Hour)
	return map[string]interface{}{
		"title":          "Algebra II",
		"tenantId":       "tenant-1",
		"scheduledStart": start.Format(time.RFC3339),
		"scheduledEnd":   start.Add(time.Hour).Format(time.RFC3339),
	}
}

func (f *apiFixture) createSession(t *testing.T, token string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/sessions", token, createSessionBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Session.ID)
	return resp.Session.ID
}

func TestCreateSessionRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/sessions", "", createSessionBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateSessionTeacherOnly(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/sessions", f.token(t, "student-1", "student"), createSessionBody())
	assert.Equal(t, http.StatusForbidden, w.Code)

	f.createSession(t, f.token(t, "teacher-1", services.RoleTeacher))
}

func TestGetSession(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "teacher-1", services.RoleTeacher)
	id := f.createSession(t, teacher)

	w := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, teacher, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"scheduled"`)

	w = f.do(t, http.MethodGet, "/api/v1/sessions/missing", teacher, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSessionsScopedToCaller(t *testing.T) {
	f := newAPIFixture(t)
	teacherA := f.token(t, "teacher-a", services.RoleTeacher)
	teacherB := f.token(t, "teacher-b", services.RoleTeacher)
	f.createSession(t, teacherA)
	f.createSession(t, teacherA)

	w := f.do(t, http.MethodGet, "/api/v1/sessions", teacherA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var respA struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respA))
	assert.Len(t, respA.Sessions, 2)

	w = f.do(t, http.MethodGet, "/api/v1/sessions", teacherB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var respB struct {
		Sessions []json.RawMessage `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &respB))
	assert.Empty(t, respB.Sessions)
}

func TestUpdateSessionStatus(t *testing.T) {
	f := newAPIFixture(t)
	owner := f.token(t, "teacher-1", services.RoleTeacher)
	other := f.token(t, "teacher-2", services.RoleTeacher)
	id := f.createSession(t, owner)

	// Only the owner may transition.
	w := f.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/status", other,
		map[string]string{"status": "live"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/status", owner,
		map[string]string{"status": "live"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"live"`)

	// Illegal transition conflicts.
	w = f.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/status", owner,
		map[string]string{"status": "scheduled"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown status is a bad request.
	w = f.do(t, http.MethodPatch, "/api/v1/sessions/"+id+"/status", owner,
		map[string]string{"status": "paused"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueControlAndPendingDiscovery(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "teacher-1", services.RoleTeacher)
	id := f.createSession(t, teacher)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/control", teacher,
		map[string]interface{}{
			"targetDeviceId": "dev-1",
			"actionType":     "lock_screen",
			"actionData":     map[string]interface{}{"duration": 300},
		})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Action struct {
			ActionID string `json:"actionId"`
		} `json:"action"`
		Delivery string `json:"delivery"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Nothing is connected in this fixture, so delivery stays pending.
	assert.Equal(t, "pending", resp.Delivery)

	// The target device discovers the action by polling.
	w = f.do(t, http.MethodGet, "/api/v1/controls/pending?device_id=dev-1",
		f.token(t, "student-1", "student"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.Action.ActionID)

	// Reporting the response drains the pending queue.
	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/controls/%s/response", resp.Action.ActionID),
		f.token(t, "student-1", "student"),
		map[string]interface{}{"status": "acknowledged", "response": map[string]bool{"locked": true}})
	assert.Equal(t, http.StatusOK, w.Code)

	pending, err := f.actions.ListPending(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestIssueControlStudentForbidden(t *testing.T) {
	f := newAPIFixture(t)
	teacher := f.token(t, "teacher-1", services.RoleTeacher)
	id := f.createSession(t, teacher)

	w := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/control",
		f.token(t, "student-1", "student"),
		map[string]interface{}{"targetDeviceId": "dev-1", "actionType": "lock_screen"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestControlResponseValidation(t *testing.T) {
	f := newAPIFixture(t)
	token := f.token(t, "student-1", "student")

	w := f.do(t, http.MethodPost, "/api/v1/controls/a-1/response", token,
		map[string]string{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/controls/missing/response", token,
		map[string]string{"status": "acknowledged"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPendingControlsRequiresDeviceID(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/controls/pending",
		f.token(t, "student-1", "student"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
