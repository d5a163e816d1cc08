package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acadence/notification-service/internal/models"
	"github.com/acadence/notification-service/internal/service/advisor"
	"github.com/acadence/notification-service/internal/service/email"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func (f *fakeStudentRepo) GetByID(ctx context.Context, id string) (*models.Student, error) {
	return f.students[id], nil
}

func (f *fakeStudentRepo) GetAllActive(ctx context.Context) ([]models.Student, error) {
	var out []models.Student
	for _, s := range f.students {
		if s.IsActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu        sync.Mutex
	created   []models.Notification
	recent    map[string]bool // key: studentID+subjectCode+level
	createErr map[string]error
	gotLimit  int
}

func recentKey(studentID, subjectCode string, level models.RiskLevel) string {
	return studentID + "|" + subjectCode + "|" + level.String()
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	if err := f.createErr[n.SubjectCode]; err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, *n)
	return nil
}

func (f *fakeNotificationRepo) ExistsRecent(ctx context.Context, studentID, subjectCode string, level models.RiskLevel, within time.Duration) (bool, error) {
	return f.recent[recentKey(studentID, subjectCode, level)], nil
}

func (f *fakeNotificationRepo) GetByStudent(ctx context.Context, studentID string, limit int) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotLimit = limit
	var out []models.Notification
	for _, n := range f.created {
		if n.StudentID == studentID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) UnreadCount(ctx context.Context, studentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.created {
		if n.StudentID == studentID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, studentID string) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].ID == id && f.created[i].StudentID == studentID {
			f.created[i].IsRead = true
			n := f.created[i]
			return &n, nil
		}
	}
	return nil, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, studentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for i := range f.created {
		if f.created[i].StudentID == studentID && !f.created[i].IsRead {
			f.created[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].ID == id && f.created[i].StudentID == studentID {
			f.created = append(f.created[:i], f.created[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotificationRepo) Ping(ctx context.Context) error { return nil }

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []email.Message
	fail bool
}

func (f *fakeDispatcher) Send(ctx context.Context, msg email.Message) email.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.fail {
		return email.Result{Success: false, Error: "boom"}
	}
	return email.Result{Success: true, MessageID: "msg-1"}
}

func (f *fakeDispatcher) Configured() bool { return !f.fail }

func (f *fakeDispatcher) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// inlineSubmitter runs tasks synchronously so tests never race the pool.
type inlineSubmitter struct{}

func (inlineSubmitter) Submit(task func()) { task() }

func newNotificationFixture(attendanceRepo *fakeAttendanceRepo) (NotificationService, *fakeNotificationRepo, *fakeDispatcher) {
	studentRepo := &fakeStudentRepo{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", Name: "Priya Sharma", Email: "priya@example.com", IsActive: true},
	}}
	notificationRepo := &fakeNotificationRepo{recent: map[string]bool{}, createErr: map[string]error{}}
	dispatcher := &fakeDispatcher{}

	svc := NewNotificationService(
		studentRepo,
		notificationRepo,
		NewAttendanceService(attendanceRepo, zerolog.Nop()),
		advisor.NewTemplateComposer(rand.New(rand.NewSource(1))),
		dispatcher,
		inlineSubmitter{},
		zerolog.Nop(),
	)
	return svc, notificationRepo, dispatcher
}

// Two subjects, one critical and one good: both get stored, only the
// escalated one is emailed.
func TestGenerateForStudent(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
			{ID: "class-ph", Name: "Physics", SubjectCode: "PH101", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusPresent),
			record("class-os", "2026-08-04", models.AttendanceStatusAbsent),
			record("class-os", "2026-08-05", models.AttendanceStatusAbsent),
			record("class-os", "2026-08-06", models.AttendanceStatusAbsent),
			record("class-ph", "2026-08-03", models.AttendanceStatusPresent),
			record("class-ph", "2026-08-04", models.AttendanceStatusPresent),
		},
	}

	svc, repo, dispatcher := newNotificationFixture(attendanceRepo)

	created, stats, err := svc.GenerateForStudent(context.Background(), "stu-1", false)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d notifications, want 2", len(created))
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}

	if created[0].Type != models.RiskCritical {
		t.Errorf("CS301 level = %v, want critical", created[0].Type)
	}
	if created[1].Type != models.RiskExcellent {
		t.Errorf("PH101 level = %v, want excellent", created[1].Type)
	}

	if len(repo.created) != 2 {
		t.Errorf("persisted %d notifications, want 2", len(repo.created))
	}
	if dispatcher.sentCount() != 1 {
		t.Errorf("sent %d emails, want 1 (escalated only)", dispatcher.sentCount())
	}
}

func TestGenerateForStudentOnlyEscalated(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
			{ID: "class-ph", Name: "Physics", SubjectCode: "PH101", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusAbsent),
			record("class-os", "2026-08-04", models.AttendanceStatusAbsent),
			record("class-ph", "2026-08-03", models.AttendanceStatusPresent),
		},
	}

	svc, _, _ := newNotificationFixture(attendanceRepo)

	created, _, err := svc.GenerateForStudent(context.Background(), "stu-1", true)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d notifications, want 1 (good tier skipped)", len(created))
	}
	if created[0].SubjectCode != "CS301" {
		t.Errorf("created for %s, want CS301", created[0].SubjectCode)
	}
}

func TestGenerateForStudentSuppression(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusAbsent),
			record("class-os", "2026-08-04", models.AttendanceStatusAbsent),
		},
	}

	svc, repo, dispatcher := newNotificationFixture(attendanceRepo)
	repo.recent[recentKey("stu-1", "CS301", models.RiskCritical)] = true

	created, _, err := svc.GenerateForStudent(context.Background(), "stu-1", false)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created %d notifications, want 0 (suppressed)", len(created))
	}
	if dispatcher.sentCount() != 0 {
		t.Errorf("sent %d emails, want 0", dispatcher.sentCount())
	}
}

// One subject's insert failing must not stop the others.
func TestGenerateForStudentPerSubjectIsolation(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
			{ID: "class-la", Name: "Linear Algebra", SubjectCode: "MA102", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusAbsent),
			record("class-la", "2026-08-03", models.AttendanceStatusAbsent),
		},
	}

	svc, repo, _ := newNotificationFixture(attendanceRepo)
	repo.createErr["CS301"] = errors.New("insert failed")

	created, _, err := svc.GenerateForStudent(context.Background(), "stu-1", false)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(created))
	}
	if created[0].SubjectCode != "MA102" {
		t.Errorf("surviving subject = %s, want MA102", created[0].SubjectCode)
	}
}

func TestGenerateForStudentUnknownStudent(t *testing.T) {
	svc, _, _ := newNotificationFixture(&fakeAttendanceRepo{})

	_, _, err := svc.GenerateForStudent(context.Background(), "nobody", false)
	if !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("error = %v, want ErrStudentNotFound", err)
	}
}

func TestGenerateForStudentEmailFailureIsSwallowed(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusAbsent),
		},
	}

	svc, repo, dispatcher := newNotificationFixture(attendanceRepo)
	dispatcher.fail = true

	created, _, err := svc.GenerateForStudent(context.Background(), "stu-1", false)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	if len(created) != 1 {
		t.Errorf("created %d notifications, want 1 despite email failure", len(created))
	}
	if len(repo.created) != 1 {
		t.Errorf("notification should stay persisted when email fails")
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	attendanceRepo := &fakeAttendanceRepo{
		sessions: []models.ClassSession{
			{ID: "class-os", Name: "Operating Systems", SubjectCode: "CS301", GroupName: "A"},
		},
		records: []models.AttendanceRecord{
			record("class-os", "2026-08-03", models.AttendanceStatusAbsent),
		},
	}

	svc, repo, _ := newNotificationFixture(attendanceRepo)

	created, _, err := svc.GenerateForStudent(context.Background(), "stu-1", false)
	if err != nil {
		t.Fatalf("GenerateForStudent() error = %v", err)
	}
	id := created[0].ID

	if _, err := svc.MarkRead(context.Background(), id, "someone-else"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("MarkRead for wrong student: error = %v, want ErrNotificationNotFound", err)
	}

	n, err := svc.MarkRead(context.Background(), id, "stu-1")
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if !n.IsRead {
		t.Errorf("notification not marked read")
	}

	unread, err := svc.UnreadCount(context.Background(), "stu-1")
	if err != nil || unread != 0 {
		t.Errorf("UnreadCount() = %d, %v, want 0, nil", unread, err)
	}

	if err := svc.Delete(context.Background(), id, "stu-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(context.Background(), id, "stu-1"); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("second Delete: error = %v, want ErrNotificationNotFound", err)
	}

	_ = repo
}

func TestListClampsLimit(t *testing.T) {
	svc, repo, _ := newNotificationFixture(&fakeAttendanceRepo{})

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "explicit limit passes through", limit: 10, want: 10},
		{name: "zero falls back to default", limit: 0, want: 50},
		{name: "negative falls back to default", limit: -5, want: 50},
		{name: "over cap falls back to default", limit: 1000, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := svc.List(context.Background(), "stu-1", tt.limit); err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if repo.gotLimit != tt.want {
				t.Errorf("repository limit = %d, want %d", repo.gotLimit, tt.want)
			}
		})
	}
}
