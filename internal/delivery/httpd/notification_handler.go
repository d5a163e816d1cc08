package httpd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service"
	"github.com/acadence/notification-service/pkg/utils"
)

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	limit := getIntQueryParam(r, "limit", 50)

	ctx := r.Context()
	notifications, unread, err := h.notificationService.List(ctx, userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list notifications")
		writeError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, models.NotificationListResponse{
		Success:       true,
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

func (h *Handler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	count, err := h.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to count unread notifications")
		writeError(w, http.StatusInternalServerError, "Failed to count unread notifications")
		return
	}

	writeJSON(w, http.StatusOK, models.UnreadCountResponse{
		Success:     true,
		UnreadCount: count,
	})
}

// GenerateNotifications runs the risk pipeline for the caller on demand,
// covering all risk levels rather than only escalated ones.
func (h *Handler) GenerateNotifications(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	notifications, stats, err := h.notificationService.GenerateForStudent(ctx, userID, false)
	if err != nil {
		if errors.Is(err, service.ErrStudentNotFound) {
			writeError(w, http.StatusNotFound, "Student not found")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to generate notifications")
		writeError(w, http.StatusInternalServerError, "Failed to generate notifications")
		return
	}

	writeJSON(w, http.StatusOK, models.GenerateNotificationsResponse{
		Success:       true,
		Message:       fmt.Sprintf("Generated %d notifications", len(notifications)),
		Notifications: notifications,
		Stats:         stats,
	})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	notificationID := chi.URLParam(r, "notification_id")
	if !utils.ValidateUUID(notificationID) {
		writeError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	ctx := r.Context()
	notification, err := h.notificationService.MarkRead(ctx, notificationID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notificationID).Msg("Failed to mark notification read")
		writeError(w, http.StatusInternalServerError, "Failed to mark notification read")
		return
	}

	writeSuccess(w, notification)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	count, err := h.notificationService.MarkAllRead(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to mark notifications read")
		writeError(w, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	writeSuccess(w, map[string]interface{}{
		"marked_read": count,
	})
}

func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	notificationID := chi.URLParam(r, "notification_id")
	if !utils.ValidateUUID(notificationID) {
		writeError(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}

	ctx := r.Context()
	if err := h.notificationService.Delete(ctx, notificationID, userID); err != nil {
		if errors.Is(err, service.ErrNotificationNotFound) {
			writeError(w, http.StatusNotFound, "Notification not found")
			return
		}
		h.logger.Error().Err(err).Str("notification_id", notificationID).Msg("Failed to delete notification")
		writeError(w, http.StatusInternalServerError, "Failed to delete notification")
		return
	}

	writeSuccess(w, map[string]interface{}{
		"deleted": true,
	})
}

// SendWeeklyCampaign kicks off the weekly digest run in the background and
// reports the summary of the most recently finished run.
func (h *Handler) SendWeeklyCampaign(w http.ResponseWriter, r *http.Request) {
	if h.campaignService.Running() {
		writeError(w, http.StatusConflict, "A campaign run is already in progress")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		summary, err := h.campaignService.Run(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("Manual campaign run failed")
			return
		}

		h.campaignMu.Lock()
		h.lastCampaign = summary
		h.campaignMu.Unlock()
	}()

	h.campaignMu.RLock()
	last := h.lastCampaign
	h.campaignMu.RUnlock()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"message":  "Weekly campaign started",
		"last_run": last,
	})
}
