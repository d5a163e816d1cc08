package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// Course is a Google Classroom course as this service consumes it.
type Course struct {
	ID          string
	Name        string
	Section     string
	Description string
	Link        string
}

// CourseWork is one assignment within a course.
type CourseWork struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	MaxPoints   float64
	Link        string
	DueDate     *time.Time
}

// ClassroomClient fetches course data from the Google Classroom REST API.
type ClassroomClient interface {
	ListCourses(ctx context.Context, accessToken string) ([]Course, error)
	ListCourseWork(ctx context.Context, accessToken, courseID string) ([]CourseWork, error)
}

type classroomClient struct {
	baseURL    string
	timeout    time.Duration
	retryCount int
	retryDelay time.Duration
	client     *http.Client
	logger     zerolog.Logger
}

const defaultBaseURL = "https://classroom.googleapis.com/v1"

func NewClassroomClient(timeout time.Duration, retryCount int, retryDelay time.Duration, logger zerolog.Logger) ClassroomClient {
	return &classroomClient{
		baseURL:    defaultBaseURL,
		timeout:    timeout,
		retryCount: retryCount,
		retryDelay: retryDelay,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type courseListResponse struct {
	Courses []struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		Section            string `json:"section"`
		DescriptionHeading string `json:"descriptionHeading"`
		AlternateLink      string `json:"alternateLink"`
	} `json:"courses"`
	NextPageToken string `json:"nextPageToken"`
}

type courseWorkListResponse struct {
	CourseWork []struct {
		ID            string  `json:"id"`
		CourseID      string  `json:"courseId"`
		Title         string  `json:"title"`
		Description   string  `json:"description"`
		MaxPoints     float64 `json:"maxPoints"`
		AlternateLink string  `json:"alternateLink"`
		DueDate       *struct {
			Year  int `json:"year"`
			Month int `json:"month"`
			Day   int `json:"day"`
		} `json:"dueDate"`
		DueTime *struct {
			Hours   int `json:"hours"`
			Minutes int `json:"minutes"`
		} `json:"dueTime"`
	} `json:"courseWork"`
	NextPageToken string `json:"nextPageToken"`
}

func (c *classroomClient) ListCourses(ctx context.Context, accessToken string) ([]Course, error) {
	var courses []Course
	pageToken := ""

	for {
		query := url.Values{}
		query.Set("courseStates", "ACTIVE")
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/courses?%s", c.baseURL, query.Encode())

		var page courseListResponse
		if err := c.getJSON(ctx, accessToken, endpoint, &page); err != nil {
			return nil, fmt.Errorf("failed to list courses: %w", err)
		}

		for _, course := range page.Courses {
			courses = append(courses, Course{
				ID:          course.ID,
				Name:        course.Name,
				Section:     course.Section,
				Description: course.DescriptionHeading,
				Link:        course.AlternateLink,
			})
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Debug().Int("courses", len(courses)).Msg("Fetched classroom courses")
	return courses, nil
}

func (c *classroomClient) ListCourseWork(ctx context.Context, accessToken, courseID string) ([]CourseWork, error) {
	var work []CourseWork
	pageToken := ""

	for {
		query := url.Values{}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		endpoint := fmt.Sprintf("%s/courses/%s/courseWork?%s", c.baseURL, url.PathEscape(courseID), query.Encode())

		var page courseWorkListResponse
		if err := c.getJSON(ctx, accessToken, endpoint, &page); err != nil {
			return nil, fmt.Errorf("failed to list coursework for course %s: %w", courseID, err)
		}

		for _, item := range page.CourseWork {
			cw := CourseWork{
				ID:          item.ID,
				CourseID:    item.CourseID,
				Title:       item.Title,
				Description: item.Description,
				MaxPoints:   item.MaxPoints,
				Link:        item.AlternateLink,
			}
			if item.DueDate != nil {
				hours, minutes := 23, 59
				if item.DueTime != nil {
					hours, minutes = item.DueTime.Hours, item.DueTime.Minutes
				}
				due := time.Date(item.DueDate.Year, time.Month(item.DueDate.Month), item.DueDate.Day,
					hours, minutes, 0, 0, time.UTC)
				cw.DueDate = &due
			}
			work = append(work, cw)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return work, nil
}

func (c *classroomClient) getJSON(ctx context.Context, accessToken, endpoint string, dst interface{}) error {
	var lastErr error

	for i := 0; i <= c.retryCount; i++ {
		if i > 0 {
			c.logger.Warn().Int("attempt", i).Str("endpoint", endpoint).Msg("Retrying classroom fetch")
			time.Sleep(c.retryDelay * time.Duration(i))
		}

		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			continue
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to call classroom api: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(dst)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("failed to decode response: %w", err)
				continue
			}
			return nil
		}

		// 401/403 will not heal on retry; surface immediately so the sync
		// layer can treat it as a credentials problem.
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("classroom api denied request (%d): %s", resp.StatusCode, string(body))
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("classroom api returned status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("classroom fetch failed after %d attempts: %w", c.retryCount+1, lastErr)
}
