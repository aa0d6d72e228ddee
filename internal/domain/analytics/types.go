package analytics

import "github.com/okian/calpulse/internal/domain/types"

// Gap is the free interval between one event's end and the next event's start.
type Gap struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Duration int    `json:"duration"` // minutes
}

// RangeMetadata aggregates a whole date range.
type RangeMetadata struct {
	DateRange         types.DateRange `json:"dateRange"`
	TotalEvents       int             `json:"totalEvents"`
	TotalDuration     int             `json:"totalDuration"`   // minutes
	AverageDuration   float64         `json:"averageDuration"` // minutes
	EventsPerDay      map[string]int  `json:"eventsPerDay"`
	Gaps              []Gap           `json:"gaps"`
	AverageGap        float64         `json:"averageGap"` // minutes
	TotalMeetingHours float64         `json:"totalMeetingHours"`
}

// DailyMetric holds the figures of a single calendar day.
type DailyMetric struct {
	Date            string  `json:"date"`
	MeetingCount    int     `json:"meetingCount"`
	MeetingHours    float64 `json:"meetingHours"`
	TotalDuration   int     `json:"totalDuration"`   // minutes
	AverageDuration float64 `json:"averageDuration"` // minutes
	AverageGap      float64 `json:"averageGap"`      // minutes
	LongestGap      int     `json:"longestGap"`      // minutes
	ShortestGap     int     `json:"shortestGap"`     // minutes
}

// DayCount pairs a date with a meeting count.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimeSeriesSummary summarises the daily metrics.
type TimeSeriesSummary struct {
	TotalDays             int      `json:"totalDays"`
	AverageMeetingsPerDay float64  `json:"averageMeetingsPerDay"`
	AverageHoursPerDay    float64  `json:"averageHoursPerDay"`
	PeakDay               DayCount `json:"peakDay"`
	QuietestDay           DayCount `json:"quietestDay"`
}

// TimeSeriesData is one metric per day plus the summary.
type TimeSeriesData struct {
	Metrics []DailyMetric     `json:"metrics"`
	Summary TimeSeriesSummary `json:"summary"`
}

// InsightType classifies an insight.
type InsightType string

const (
	InsightWarning    InsightType = "warning"
	InsightSuggestion InsightType = "suggestion"
	InsightInfo       InsightType = "info"
	InsightSuccess    InsightType = "success"
)

// Priority ranks an insight.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Balance is the work-life balance classification.
type Balance string

const (
	BalanceGood     Balance = "good"
	BalanceModerate Balance = "moderate"
	BalancePoor     Balance = "poor"
)

// Insight is a single human-readable finding.
type Insight struct {
	Type        InsightType `json:"type"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    Priority    `json:"priority"`
	Actionable  string      `json:"actionable,omitempty"`
}

// Patterns are the derived workload indicators.
type Patterns struct {
	BusiestDay            DayCount `json:"busiestDay"`
	AverageMeetingsPerDay float64  `json:"averageMeetingsPerDay"`
	MeetingOverload       bool     `json:"meetingOverload"`
	FocusTimeAvailable    bool     `json:"focusTimeAvailable"`
	WorkLifeBalance       Balance  `json:"workLifeBalance"`
	LongMeetingCount      int      `json:"longMeetingCount"`
}

// CalendarInsights is the output of GenerateInsights.
type CalendarInsights struct {
	Insights        []Insight `json:"insights"`
	Patterns        Patterns  `json:"patterns"`
	Recommendations []string  `json:"recommendations"`
}
