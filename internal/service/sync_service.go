package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/acadence/notification-service/internal/config"
	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/repository"
	"github.com/acadence/notification-service/internal/service/integration"
)

// TokenExchanger wraps the OAuth endpoints so tests can fake the provider.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

type oauthExchanger struct {
	conf *oauth2.Config
}

func NewGoogleExchanger(cfg config.GoogleConfig) TokenExchanger {
	return &oauthExchanger{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     google.Endpoint,
		},
	}
}

func (e *oauthExchanger) AuthCodeURL(state string) string {
	return e.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

func (e *oauthExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return e.conf.Exchange(ctx, code)
}

func (e *oauthExchanger) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := e.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return source.Token()
}

// authState is carried through the OAuth round trip so the callback can
// associate tokens with the initiating user without server-side sessions.
type authState struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
}

func encodeState(userID string) string {
	payload, _ := json.Marshal(authState{UserID: userID, Nonce: uuid.New().String()})
	return base64.URLEncoding.EncodeToString(payload)
}

func decodeState(state string) (string, error) {
	payload, err := base64.URLEncoding.DecodeString(state)
	if err != nil {
		return "", ErrInvalidState
	}
	var decoded authState
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", ErrInvalidState
	}
	if decoded.UserID == "" {
		return "", ErrInvalidState
	}
	return decoded.UserID, nil
}

type SyncService interface {
	BuildAuthURL(userID string) (string, error)
	HandleCallback(ctx context.Context, code, state string) (*models.Integration, error)
	Status(ctx context.Context, userID string) (*models.IntegrationStatusResponse, error)
	Disconnect(ctx context.Context, userID string) error
	SyncForUser(ctx context.Context, userID string) (*models.SyncResult, error)
	SyncOne(ctx context.Context, intg *models.Integration) (*models.SyncResult, error)
	SyncAll(ctx context.Context) (*models.SyncAllSummary, error)
	Courses(ctx context.Context, userID string) ([]models.ExternalCourse, error)
	Assignments(ctx context.Context, userID string) ([]models.ExternalAssignment, error)
	ReapStaleLogs(ctx context.Context) (int, error)
}

type syncService struct {
	integrationRepo repository.IntegrationRepository
	syncLogRepo     repository.SyncLogRepository
	courseRepo      repository.CourseRepository
	classroom       integration.ClassroomClient
	exchanger       TokenExchanger
	cfg             config.SyncConfig
	logger          zerolog.Logger
}

func NewSyncService(
	integrationRepo repository.IntegrationRepository,
	syncLogRepo repository.SyncLogRepository,
	courseRepo repository.CourseRepository,
	classroom integration.ClassroomClient,
	exchanger TokenExchanger,
	cfg config.SyncConfig,
	logger zerolog.Logger,
) SyncService {
	return &syncService{
		integrationRepo: integrationRepo,
		syncLogRepo:     syncLogRepo,
		courseRepo:      courseRepo,
		classroom:       classroom,
		exchanger:       exchanger,
		cfg:             cfg,
		logger:          logger,
	}
}

func (s *syncService) BuildAuthURL(userID string) (string, error) {
	if userID == "" {
		return "", ErrInvalidUserID
	}
	return s.exchanger.AuthCodeURL(encodeState(userID)), nil
}

func (s *syncService) HandleCallback(ctx context.Context, code, state string) (*models.Integration, error) {
	userID, err := decodeState(state)
	if err != nil {
		return nil, err
	}

	token, err := s.exchanger.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	now := time.Now()
	intg := &models.Integration{
		ID:           uuid.New().String(),
		UserID:       userID,
		Platform:     models.PlatformGoogleClassroom,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.integrationRepo.Upsert(ctx, intg); err != nil {
		return nil, fmt.Errorf("failed to persist integration: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("integration_id", intg.ID).
		Msg("Google Classroom connected")

	return intg, nil
}

func (s *syncService) Status(ctx context.Context, userID string) (*models.IntegrationStatusResponse, error) {
	intg, err := s.integrationRepo.GetByUserAndPlatform(ctx, userID, models.PlatformGoogleClassroom)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if intg == nil {
		return &models.IntegrationStatusResponse{Connected: false}, nil
	}

	return &models.IntegrationStatusResponse{
		Connected:  intg.IsActive,
		Platform:   intg.Platform,
		LastSynced: intg.LastSynced,
		IsActive:   &intg.IsActive,
	}, nil
}

// Disconnect soft-deletes: the row and its tokens stay for history.
func (s *syncService) Disconnect(ctx context.Context, userID string) error {
	intg, err := s.integrationRepo.GetByUserAndPlatform(ctx, userID, models.PlatformGoogleClassroom)
	if err != nil {
		return fmt.Errorf("failed to load integration: %w", err)
	}
	if intg == nil || !intg.IsActive {
		return ErrIntegrationNotFound
	}

	if err := s.integrationRepo.Deactivate(ctx, intg.ID); err != nil {
		return fmt.Errorf("failed to deactivate integration: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Msg("Google Classroom disconnected")
	return nil
}

// ensureFreshToken returns a usable access token, refreshing and persisting
// it when expired. Concurrent refreshes are last-writer-wins.
func (s *syncService) ensureFreshToken(ctx context.Context, intg *models.Integration) (string, error) {
	if intg.TokenExpiry.After(time.Now()) {
		return intg.AccessToken, nil
	}

	token, err := s.exchanger.Refresh(ctx, intg.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenRefresh, err)
	}

	if err := s.integrationRepo.UpdateToken(ctx, intg.ID, token.AccessToken, token.Expiry); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	intg.AccessToken = token.AccessToken
	intg.TokenExpiry = token.Expiry

	s.logger.Info().Str("integration_id", intg.ID).Msg("Access token refreshed")
	return token.AccessToken, nil
}

func (s *syncService) SyncForUser(ctx context.Context, userID string) (*models.SyncResult, error) {
	intg, err := s.integrationRepo.GetByUserAndPlatform(ctx, userID, models.PlatformGoogleClassroom)
	if err != nil {
		return nil, fmt.Errorf("failed to load integration: %w", err)
	}
	if intg == nil || !intg.IsActive {
		return nil, ErrIntegrationNotFound
	}

	return s.SyncOne(ctx, intg)
}

// SyncOne runs a full sync for one integration. It opens a SyncLog before any
// network call and always closes it. Errors propagate to the caller; only
// per-course fetch failures are swallowed so one bad course cannot sink the
// rest of the user's sync.
func (s *syncService) SyncOne(ctx context.Context, intg *models.Integration) (*models.SyncResult, error) {
	syncLog := &models.SyncLog{
		ID:            uuid.New().String(),
		IntegrationID: intg.ID,
		UserID:        intg.UserID,
		Platform:      intg.Platform,
		SyncStatus:    models.SyncStatusStarted,
		SyncStarted:   time.Now(),
	}
	if err := s.syncLogRepo.Create(ctx, syncLog); err != nil {
		return nil, fmt.Errorf("failed to open sync log: %w", err)
	}

	token, err := s.ensureFreshToken(ctx, intg)
	if err != nil {
		s.failSync(ctx, syncLog.ID, err)
		return nil, err
	}

	courses, err := s.classroom.ListCourses(ctx, token)
	if err != nil {
		err = fmt.Errorf("failed to fetch courses: %w", err)
		s.failSync(ctx, syncLog.ID, err)
		return nil, err
	}

	result := &models.SyncResult{}
	now := time.Now()

	for _, course := range courses {
		external := &models.ExternalCourse{
			ID:          uuid.New().String(),
			UserID:      intg.UserID,
			Source:      intg.Platform,
			ExternalID:  course.ID,
			Name:        course.Name,
			Section:     course.Section,
			Description: course.Description,
			Link:        course.Link,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.courseRepo.UpsertCourse(ctx, external); err != nil {
			s.logger.Error().Err(err).
				Str("course_id", course.ID).
				Msg("Failed to upsert course, continuing")
			continue
		}
		result.CoursesCount++
		result.ItemsSynced++

		work, err := s.classroom.ListCourseWork(ctx, token, course.ID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("course_id", course.ID).
				Msg("Failed to fetch coursework, continuing with next course")
			continue
		}

		for _, item := range work {
			assignment := &models.ExternalAssignment{
				ID:          uuid.New().String(),
				UserID:      intg.UserID,
				Source:      intg.Platform,
				ExternalID:  item.ID,
				CourseID:    item.CourseID,
				Title:       item.Title,
				Description: item.Description,
				DueDate:     item.DueDate,
				MaxPoints:   item.MaxPoints,
				Link:        item.Link,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.courseRepo.UpsertAssignment(ctx, assignment); err != nil {
				s.logger.Error().Err(err).
					Str("assignment_id", item.ID).
					Msg("Failed to upsert assignment, continuing")
				continue
			}
			result.AssignmentsCount++
			result.ItemsSynced++
		}
	}

	if err := s.syncLogRepo.Complete(ctx, syncLog.ID, models.SyncStatusSuccess, result.ItemsSynced, nil); err != nil {
		s.logger.Error().Err(err).Str("sync_log_id", syncLog.ID).Msg("Failed to close sync log")
	}
	if err := s.integrationRepo.UpdateLastSynced(ctx, intg.ID, time.Now()); err != nil {
		s.logger.Error().Err(err).Str("integration_id", intg.ID).Msg("Failed to update last_synced")
	}

	s.logger.Info().
		Str("user_id", intg.UserID).
		Int("courses", result.CoursesCount).
		Int("assignments", result.AssignmentsCount).
		Msg("Classroom sync finished")

	return result, nil
}

func (s *syncService) failSync(ctx context.Context, syncLogID string, cause error) {
	message := cause.Error()
	if err := s.syncLogRepo.Complete(ctx, syncLogID, models.SyncStatusFailed, 0, &message); err != nil {
		s.logger.Error().Err(err).Str("sync_log_id", syncLogID).Msg("Failed to record sync failure")
	}
}

// SyncAll iterates every active integration sequentially with an inter-item
// delay. Per-integration failures are logged and counted, never propagated.
func (s *syncService) SyncAll(ctx context.Context) (*models.SyncAllSummary, error) {
	integrations, err := s.integrationRepo.GetAllActive(ctx, models.PlatformGoogleClassroom)
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}

	summary := &models.SyncAllSummary{Total: len(integrations)}

	for i := range integrations {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && s.cfg.IntegrationDelay > 0 {
			time.Sleep(s.cfg.IntegrationDelay)
		}

		result, err := s.SyncOne(ctx, &integrations[i])
		if err != nil {
			s.logger.Error().Err(err).
				Str("user_id", integrations[i].UserID).
				Msg("Sync failed for integration, continuing")
			summary.Failed++
			continue
		}

		summary.Succeeded++
		summary.ItemsSynced += result.ItemsSynced
	}

	s.logger.Info().
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Msg("Batch sync finished")

	return summary, nil
}

func (s *syncService) Courses(ctx context.Context, userID string) ([]models.ExternalCourse, error) {
	return s.courseRepo.GetCourses(ctx, userID, models.PlatformGoogleClassroom)
}

func (s *syncService) Assignments(ctx context.Context, userID string) ([]models.ExternalAssignment, error) {
	return s.courseRepo.GetAssignments(ctx, userID, models.PlatformGoogleClassroom)
}

func (s *syncService) ReapStaleLogs(ctx context.Context) (int, error) {
	return s.syncLogRepo.MarkStaleAsFailed(ctx, s.cfg.StalenessWindow)
}
