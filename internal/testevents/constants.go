package testevents

// Generation defaults.
const (
	DefaultEventsPerDay = 3
	DefaultMinDuration  = 30 // minutes
	DefaultMaxDuration  = 60 // minutes
	DefaultTimeZone     = "UTC"

	// MaxEventsPerDay caps eventsPerDay. A working day cannot hold more
	// meetings of the minimum length than this.
	MaxEventsPerDay = 24
)

// Working day bounds in hours.
const (
	workStartHour = 9
	workEndHour   = 17
)

// Pause after each generated event, in minutes.
const (
	minBreakMinutes   = 15
	breakRangeMinutes = 45
)

// Realistic week shape.
const (
	weekDays            = 7
	busyWeekdayMeetings = 5
	baseWeekdayMeetings = 2
	extraWeekdayRange   = 4
	realisticMinMinutes = 30
	realisticMaxMinutes = 90
)

const (
	minutesPerHour = 60
	dateLayout     = "2006-01-02"
	isoLayout      = "2006-01-02T15:04:05.000Z07:00"
	bodyContent    = "<p>Test event generated for calendar analysis.</p>"
	bodyType       = "HTML"
)

var meetingSubjects = []string{
	"Team Standup",
	"Project Review",
	"Client Meeting",
	"Sprint Planning",
	"Code Review",
	"Design Discussion",
	"One-on-One",
	"Product Demo",
	"Strategy Session",
	"Weekly Sync",
	"Retrospective",
	"Training Session",
	"Workshop",
	"Interview",
	"Budget Review",
	"Status Update",
	"Brainstorming",
	"Technical Deep Dive",
	"Architecture Review",
	"Performance Review",
}

var subjectSuffixes = []string{
	"Q1 Planning",
	"2024",
	"Review",
	"Follow-up",
	"Part 1",
	"Part 2",
	"Final",
	"Initial",
}
