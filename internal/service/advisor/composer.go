package advisor

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/acadence/notification-service/internal/models"
)

// SubjectInput carries everything needed to word a single-subject advisory.
type SubjectInput struct {
	StudentName string
	SubjectCode string
	SubjectName string
	Percentage  float64
	Level       models.RiskLevel
	AbsentDays  int
	TotalDays   int
}

// WeeklySubject is one subject line in the weekly digest.
type WeeklySubject struct {
	SubjectCode      string
	SubjectName      string
	Percentage       float64
	Level            models.RiskLevel
	SessionsNeeded   int
	UpcomingSessions []models.ClassSession
}

// Composer produces advisory copy. Implementations must be swappable: an
// AI-backed composer can replace the template one behind the same contract.
type Composer interface {
	ComposeSubjectAdvice(in SubjectInput) string
	ComposeWeeklyDigest(studentName string, subjects []WeeklySubject, currentWeek string) string
	ComposeSubjectLine(subjects []WeeklySubject) string
}

// templateComposer picks among equivalent phrasings using an injected
// randomness source, so tests can pin a deterministic variant via the seed.
type templateComposer struct {
	rng *rand.Rand
}

func NewTemplateComposer(rng *rand.Rand) Composer {
	return &templateComposer{rng: rng}
}

func (c *templateComposer) ComposeSubjectAdvice(in SubjectInput) string {
	firstName := firstName(in.StudentName)

	var pool []string
	switch in.Level {
	case models.RiskCritical:
		pool = []string{
			fmt.Sprintf("%s, your attendance in %s (%s) has dropped to %.0f%%. You have missed %d of %d classes, and you are below the %.0f%% requirement. Please attend every upcoming session.",
				firstName, in.SubjectName, in.SubjectCode, in.Percentage, in.AbsentDays, in.TotalDays, MinimumRequired),
			fmt.Sprintf("Urgent: %s attendance is at %.0f%% for %s. Missing more classes in %s puts your eligibility at risk. Every session counts from here.",
				in.SubjectCode, in.Percentage, firstName, in.SubjectName),
			fmt.Sprintf("%s, %s needs your attention now. With %d absences out of %d classes you are at %.0f%%, under the %.0f%% floor. Talk to your instructor and do not miss another session.",
				firstName, in.SubjectName, in.AbsentDays, in.TotalDays, in.Percentage, MinimumRequired),
		}
	case models.RiskWarning:
		pool = []string{
			fmt.Sprintf("%s, your attendance in %s (%s) is at %.0f%%. You are above the floor but close to it; a couple of missed classes would put you under %.0f%%.",
				firstName, in.SubjectName, in.SubjectCode, in.Percentage, MinimumRequired),
			fmt.Sprintf("Heads up %s: %s attendance is %.0f%% (%d of %d classes missed). Keep showing up to stay clear of the %.0f%% requirement.",
				firstName, in.SubjectCode, in.Percentage, in.AbsentDays, in.TotalDays, MinimumRequired),
			fmt.Sprintf("%s is trending down for you, %s. At %.0f%% you still have room, but make the next few %s sessions a priority.",
				in.SubjectName, firstName, in.Percentage, in.SubjectCode),
		}
	case models.RiskGood:
		pool = []string{
			fmt.Sprintf("Good going %s, your %s attendance is a solid %.0f%%. Keep it up.",
				firstName, in.SubjectName, in.Percentage),
			fmt.Sprintf("%s attendance check: %.0f%%. You are in good shape, %s — stay consistent.",
				in.SubjectCode, in.Percentage, firstName),
		}
	default:
		pool = []string{
			fmt.Sprintf("Excellent work %s! %.0f%% attendance in %s. That consistency pays off.",
				firstName, in.Percentage, in.SubjectName),
			fmt.Sprintf("%s, your %s attendance is outstanding at %.0f%%. Nothing to change.",
				firstName, in.SubjectCode, in.Percentage),
		}
	}

	return pool[c.rng.Intn(len(pool))]
}

// ComposeWeeklyDigest builds the multi-section campaign message. Unlike the
// single-subject path it is fully deterministic.
func (c *templateComposer) ComposeWeeklyDigest(studentName string, subjects []WeeklySubject, currentWeek string) string {
	var b strings.Builder

	anyCritical := false
	anyWarning := false
	for _, s := range subjects {
		switch s.Level {
		case models.RiskCritical:
			anyCritical = true
		case models.RiskWarning:
			anyWarning = true
		}
	}

	name := firstName(studentName)

	switch {
	case anyCritical:
		fmt.Fprintf(&b, "Hi %s,\n\nThis needs your immediate attention. Some of your subjects are below the %.0f%% attendance requirement for %s.\n",
			name, MinimumRequired, currentWeek)
	case anyWarning:
		fmt.Fprintf(&b, "Hi %s,\n\nA quick reminder for %s: some of your subjects are running close to the %.0f%% attendance requirement.\n",
			name, currentWeek, MinimumRequired)
	default:
		fmt.Fprintf(&b, "Hi %s,\n\nGood news for %s: all your subjects are at 80%% attendance or better. Keep the streak going!\n",
			name, currentWeek)
	}

	for _, s := range subjects {
		fmt.Fprintf(&b, "\n%s (%s) — %.0f%% attendance\n", s.SubjectName, s.SubjectCode, s.Percentage)

		if s.SessionsNeeded > 0 {
			fmt.Fprintf(&b, "  Attend the next %d session(s) without a miss to get back to %.0f%%.\n",
				s.SessionsNeeded, MinimumRequired)
		} else if s.Level == models.RiskCritical || s.Level == models.RiskWarning {
			fmt.Fprintf(&b, "  Do not miss any upcoming sessions.\n")
		}

		for _, session := range s.UpcomingSessions {
			fmt.Fprintf(&b, "  Upcoming: %s %s–%s (%s)\n",
				weekdayName(session.DayOfWeek), session.StartTime, session.EndTime, session.Name)
		}
	}

	b.WriteString("\n— Acadence\n")
	return b.String()
}

func (c *templateComposer) ComposeSubjectLine(subjects []WeeklySubject) string {
	for _, s := range subjects {
		if s.Level == models.RiskCritical {
			return "URGENT: Your attendance needs immediate attention"
		}
	}
	for _, s := range subjects {
		if s.Level == models.RiskWarning {
			return "Reminder: Keep an eye on your attendance this week"
		}
	}
	return "Your weekly attendance summary"
}

func firstName(full string) string {
	if fields := strings.Fields(full); len(fields) > 0 {
		return fields[0]
	}
	return full
}

func weekdayName(day int) string {
	names := []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
	if day < 0 || day >= len(names) {
		return "—"
	}
	return names[day]
}
