package httpd

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service"
)

func (h *Handler) GetAuthURL(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	authURL, err := h.syncService.BuildAuthURL(userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to build auth URL")
		writeError(w, http.StatusInternalServerError, "Failed to build authorization URL")
		return
	}

	writeSuccess(w, models.AuthURLResponse{AuthURL: authURL})
}

// OAuthCallback lands the browser redirect from Google. It always finishes
// with a redirect back to the frontend, carrying either status=connected or
// an error code. Identity comes from the signed-in state blob, not headers,
// since Google is the caller here.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warn().Str("error", providerErr).Msg("OAuth consent denied")
		h.redirectToFrontend(w, r, url.Values{"error": {providerErr}})
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		h.redirectToFrontend(w, r, url.Values{"error": {"missing_code_or_state"}})
		return
	}

	ctx := r.Context()
	if _, err := h.syncService.HandleCallback(ctx, code, state); err != nil {
		h.logger.Error().Err(err).Msg("OAuth callback failed")

		reason := "connection_failed"
		if errors.Is(err, service.ErrInvalidState) {
			reason = "invalid_state"
		}
		h.redirectToFrontend(w, r, url.Values{"error": {reason}})
		return
	}

	h.redirectToFrontend(w, r, url.Values{"status": {"connected"}})
}

func (h *Handler) redirectToFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := fmt.Sprintf("%s/settings/integrations?%s", h.frontendBaseURL, params.Encode())
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) SyncClassroom(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	result, err := h.syncService.SyncForUser(ctx, userID)
	if err != nil {
		h.handleSyncError(w, userID, err)
		return
	}

	writeSuccess(w, models.SyncResponse{
		Message:          "Sync completed",
		CoursesCount:     result.CoursesCount,
		AssignmentsCount: result.AssignmentsCount,
	})
}

func (h *Handler) GetIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	status, err := h.syncService.Status(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to get integration status")
		writeError(w, http.StatusInternalServerError, "Failed to get integration status")
		return
	}

	writeSuccess(w, status)
}

func (h *Handler) DisconnectIntegration(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	if err := h.syncService.Disconnect(ctx, userID); err != nil {
		if errors.Is(err, service.ErrIntegrationNotFound) {
			writeError(w, http.StatusNotFound, "No active Google Classroom connection")
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to disconnect integration")
		writeError(w, http.StatusInternalServerError, "Failed to disconnect integration")
		return
	}

	writeSuccess(w, map[string]interface{}{
		"disconnected": true,
	})
}

func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	courses, err := h.syncService.Courses(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list courses")
		writeError(w, http.StatusInternalServerError, "Failed to list courses")
		return
	}

	writeSuccess(w, courses)
}

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(w, r)
	if userID == "" {
		return
	}

	ctx := r.Context()
	assignments, err := h.syncService.Assignments(ctx, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list assignments")
		writeError(w, http.StatusInternalServerError, "Failed to list assignments")
		return
	}

	writeSuccess(w, assignments)
}

func (h *Handler) handleSyncError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, service.ErrIntegrationNotFound):
		writeError(w, http.StatusNotFound, "Google Classroom is not connected")
	case errors.Is(err, service.ErrTokenRefresh):
		writeError(w, http.StatusUnauthorized, "Google authorization expired, please reconnect")
	default:
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Classroom sync failed")
		writeError(w, http.StatusInternalServerError, "Sync failed")
	}
}
