package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service"
)

type stubNotificationService struct {
	notifications []models.Notification
	unread        int
	stats         []models.AttendanceStat
	markAllCount  int
	gotLimit      int
	err           error
}

func (s *stubNotificationService) GenerateForStudent(ctx context.Context, studentID string, onlyEscalated bool) ([]models.Notification, []models.AttendanceStat, error) {
	return s.notifications, s.stats, s.err
}

func (s *stubNotificationService) List(ctx context.Context, studentID string, limit int) ([]models.Notification, int, error) {
	s.gotLimit = limit
	return s.notifications, s.unread, s.err
}

func (s *stubNotificationService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	return s.unread, s.err
}

func (s *stubNotificationService) MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Notification{ID: id, StudentID: studentID, IsRead: true}, nil
}

func (s *stubNotificationService) MarkAllRead(ctx context.Context, studentID string) (int, error) {
	return s.markAllCount, s.err
}

func (s *stubNotificationService) Delete(ctx context.Context, id, studentID string) error {
	return s.err
}

type stubCampaignService struct {
	running bool
	summary *models.CampaignSummary
}

func (s *stubCampaignService) Run(ctx context.Context) (*models.CampaignSummary, error) {
	return s.summary, nil
}

func (s *stubCampaignService) Running() bool { return s.running }

type stubSyncService struct {
	authURL     string
	integration *models.Integration
	status      *models.IntegrationStatusResponse
	result      *models.SyncResult
	courses     []models.ExternalCourse
	assignments []models.ExternalAssignment
	err         error
}

func (s *stubSyncService) BuildAuthURL(userID string) (string, error) {
	return s.authURL, s.err
}

func (s *stubSyncService) HandleCallback(ctx context.Context, code, state string) (*models.Integration, error) {
	return s.integration, s.err
}

func (s *stubSyncService) Status(ctx context.Context, userID string) (*models.IntegrationStatusResponse, error) {
	return s.status, s.err
}

func (s *stubSyncService) Disconnect(ctx context.Context, userID string) error {
	return s.err
}

func (s *stubSyncService) SyncForUser(ctx context.Context, userID string) (*models.SyncResult, error) {
	return s.result, s.err
}

func (s *stubSyncService) SyncOne(ctx context.Context, intg *models.Integration) (*models.SyncResult, error) {
	return s.result, s.err
}

func (s *stubSyncService) SyncAll(ctx context.Context) (*models.SyncAllSummary, error) {
	return nil, s.err
}

func (s *stubSyncService) Courses(ctx context.Context, userID string) ([]models.ExternalCourse, error) {
	return s.courses, s.err
}

func (s *stubSyncService) Assignments(ctx context.Context, userID string) ([]models.ExternalAssignment, error) {
	return s.assignments, s.err
}

func (s *stubSyncService) ReapStaleLogs(ctx context.Context) (int, error) {
	return 0, s.err
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }

type handlerFixture struct {
	notifications *stubNotificationService
	campaign      *stubCampaignService
	sync          *stubSyncService
	pinger        *stubPinger
	router        chi.Router
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		notifications: &stubNotificationService{},
		campaign:      &stubCampaignService{},
		sync:          &stubSyncService{},
		pinger:        &stubPinger{},
	}

	h := NewHandler(f.notifications, f.campaign, f.sync, nil, f.pinger, "https://app.acadence.test", zerolog.Nop())
	f.router = chi.NewRouter()
	h.RegisterRoutes(f.router)
	return f
}

func (f *handlerFixture) do(t *testing.T, method, target, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMissingIdentityHeader(t *testing.T) {
	f := newHandlerFixture()

	endpoints := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/v1/notifications/"},
		{http.MethodGet, "/api/v1/notifications/unread-count"},
		{http.MethodPost, "/api/v1/notifications/generate"},
		{http.MethodPatch, "/api/v1/notifications/n-1/read"},
		{http.MethodGet, "/api/v1/integrations/google-classroom/auth"},
		{http.MethodPost, "/api/v1/integrations/google-classroom/sync"},
	}

	for _, ep := range endpoints {
		rec := f.do(t, ep.method, ep.target, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", ep.method, ep.target)

		body := decodeBody(t, rec)
		assert.Equal(t, "X-User-ID header is required", body["message"])
	}
}

func TestListNotifications(t *testing.T) {
	f := newHandlerFixture()
	f.notifications.notifications = []models.Notification{
		{ID: "n-1", StudentID: "stu-1", SubjectCode: "CS301", Type: models.RiskCritical},
	}
	f.notifications.unread = 1

	rec := f.do(t, http.MethodGet, "/api/v1/notifications/", "stu-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.NotificationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Len(t, resp.Notifications, 1)
	assert.Equal(t, 1, resp.UnreadCount)
}

func TestListNotificationsLimitParam(t *testing.T) {
	f := newHandlerFixture()

	f.do(t, http.MethodGet, "/api/v1/notifications/?limit=5", "stu-1")
	assert.Equal(t, 5, f.notifications.gotLimit)

	f.do(t, http.MethodGet, "/api/v1/notifications/", "stu-1")
	assert.Equal(t, 50, f.notifications.gotLimit)

	f.do(t, http.MethodGet, "/api/v1/notifications/?limit=nonsense", "stu-1")
	assert.Equal(t, 50, f.notifications.gotLimit)
}

func TestGenerateNotificationsUnknownStudent(t *testing.T) {
	f := newHandlerFixture()
	f.notifications.err = service.ErrStudentNotFound

	rec := f.do(t, http.MethodPost, "/api/v1/notifications/generate", "ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

const testNotificationID = "3f8c2a5e-9f1b-4c6d-8a7e-2b4d6f8a0c1e"

func TestMarkNotificationRead(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPatch, "/api/v1/notifications/"+testNotificationID+"/read", "stu-1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])

	f.notifications.err = service.ErrNotificationNotFound
	rec = f.do(t, http.MethodPatch, "/api/v1/notifications/"+testNotificationID+"/read", "stu-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationIDValidation(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodPatch, "/api/v1/notifications/not-a-uuid/read", "stu-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/notifications/not-a-uuid", "stu-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteNotification(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodDelete, "/api/v1/notifications/"+testNotificationID, "stu-1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["deleted"])
}

func TestSendWeeklyCampaignConflict(t *testing.T) {
	f := newHandlerFixture()
	f.campaign.running = true

	rec := f.do(t, http.MethodPost, "/api/v1/notifications/send-weekly", "admin-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSendWeeklyCampaignAccepted(t *testing.T) {
	f := newHandlerFixture()
	f.campaign.summary = &models.CampaignSummary{Sent: 3}

	rec := f.do(t, http.MethodPost, "/api/v1/notifications/send-weekly", "admin-1")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "Weekly campaign started", body["message"])
}

func TestGetAuthURL(t *testing.T) {
	f := newHandlerFixture()
	f.sync.authURL = "https://accounts.google.com/o/oauth2/auth?state=abc"

	rec := f.do(t, http.MethodGet, "/api/v1/integrations/google-classroom/auth", "stu-1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, f.sync.authURL, data["auth_url"])
}

func TestOAuthCallbackRedirects(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		syncErr   error
		wantQuery url.Values
	}{
		{
			name:      "provider denied consent",
			target:    "/api/v1/integrations/google-classroom/callback?error=access_denied",
			wantQuery: url.Values{"error": {"access_denied"}},
		},
		{
			name:      "missing code",
			target:    "/api/v1/integrations/google-classroom/callback?state=abc",
			wantQuery: url.Values{"error": {"missing_code_or_state"}},
		},
		{
			name:      "invalid state",
			target:    "/api/v1/integrations/google-classroom/callback?code=c&state=junk",
			syncErr:   service.ErrInvalidState,
			wantQuery: url.Values{"error": {"invalid_state"}},
		},
		{
			name:      "exchange failure",
			target:    "/api/v1/integrations/google-classroom/callback?code=c&state=abc",
			syncErr:   errors.New("google is down"),
			wantQuery: url.Values{"error": {"connection_failed"}},
		},
		{
			name:      "connected",
			target:    "/api/v1/integrations/google-classroom/callback?code=c&state=abc",
			wantQuery: url.Values{"status": {"connected"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.sync.err = tt.syncErr
			f.sync.integration = &models.Integration{UserID: "stu-1"}

			// No identity header: Google is the caller on this endpoint.
			rec := f.do(t, http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusFound, rec.Code)

			location, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "/settings/integrations", location.Path)
			assert.Equal(t, tt.wantQuery, location.Query())
		})
	}
}

func TestSyncClassroomErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "not connected", err: service.ErrIntegrationNotFound, wantCode: http.StatusNotFound},
		{name: "expired grant", err: service.ErrTokenRefresh, wantCode: http.StatusUnauthorized},
		{name: "other failure", err: errors.New("boom"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			f.sync.err = tt.err

			rec := f.do(t, http.MethodPost, "/api/v1/integrations/google-classroom/sync", "stu-1")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestSyncClassroomSuccess(t *testing.T) {
	f := newHandlerFixture()
	f.sync.result = &models.SyncResult{CoursesCount: 2, AssignmentsCount: 5, ItemsSynced: 7}

	rec := f.do(t, http.MethodPost, "/api/v1/integrations/google-classroom/sync", "stu-1")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["courses_count"])
	assert.Equal(t, float64(5), data["assignments_count"])
}

func TestDisconnectIntegrationNotConnected(t *testing.T) {
	f := newHandlerFixture()
	f.sync.err = service.ErrIntegrationNotFound

	rec := f.do(t, http.MethodDelete, "/api/v1/integrations/google-classroom/disconnect", "stu-1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "up", body["database"])
	assert.Equal(t, "notification-service", body["service"])
}

func TestHealthCheckDegraded(t *testing.T) {
	f := newHandlerFixture()
	f.pinger.err = errors.New("connection refused")

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "down", body["database"])
}

func TestWorkerStatsDisabled(t *testing.T) {
	f := newHandlerFixture()

	rec := f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "disabled", data["worker"])
}
