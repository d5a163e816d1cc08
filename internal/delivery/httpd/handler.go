package httpd

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service"
	"github.com/acadence/notification-service/internal/worker"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	notificationService service.NotificationService
	campaignService     service.CampaignService
	syncService         service.SyncService
	attendanceWorker    worker.AttendanceWorker
	db                  Pinger
	frontendBaseURL     string
	logger              zerolog.Logger

	campaignMu   sync.RWMutex
	lastCampaign *models.CampaignSummary
}

func NewHandler(
	notificationService service.NotificationService,
	campaignService service.CampaignService,
	syncService service.SyncService,
	attendanceWorker worker.AttendanceWorker,
	db Pinger,
	frontendBaseURL string,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		notificationService: notificationService,
		campaignService:     campaignService,
		syncService:         syncService,
		attendanceWorker:    attendanceWorker,
		db:                  db,
		frontendBaseURL:     frontendBaseURL,
		logger:              logger,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	// Health check
	router.Get("/health", h.HealthCheck)
	router.Get("/stats", h.GetWorkerStats)

	// Versioned API
	router.Route("/api/v1", func(api chi.Router) {
		// Notification endpoints
		api.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Get("/unread-count", h.GetUnreadCount)
			r.Post("/generate", h.GenerateNotifications)
			r.Patch("/{notification_id}/read", h.MarkNotificationRead)
			r.Patch("/mark-all-read", h.MarkAllNotificationsRead)
			r.Delete("/{notification_id}", h.DeleteNotification)
			r.Post("/send-weekly", h.SendWeeklyCampaign)
		})

		// Google Classroom integration endpoints
		api.Route("/integrations/google-classroom", func(r chi.Router) {
			r.Get("/auth", h.GetAuthURL)
			r.Get("/callback", h.OAuthCallback)
			r.Post("/sync", h.SyncClassroom)
			r.Get("/status", h.GetIntegrationStatus)
			r.Delete("/disconnect", h.DisconnectIntegration)
			r.Get("/courses", h.ListCourses)
			r.Get("/assignments", h.ListAssignments)
		})
	})
}

// userID returns the caller identity set by the platform gateway, or writes a
// 401 and returns "" when the header is missing.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) string {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "X-User-ID header is required")
	}
	return userID
}

func getIntQueryParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	response := map[string]interface{}{
		"success": true,
		"data":    data,
	}
	writeJSON(w, http.StatusOK, response)
}
