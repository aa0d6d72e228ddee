package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/okian/calpulse/internal/domain/analytics"
	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// ErrNoEvents is returned when the configuration yields nothing to write.
var ErrNoEvents = errors.New("no events generated, check the date range and configuration")

// Run executes the generator and returns the run statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	return run(ctx, config, NewRand())
}

func run(ctx context.Context, config *Config, rng Rand) (*Stats, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	gen := config.Generator
	logger.Get().Info(ctx, "starting test event generation",
		logger.String("startDate", gen.StartDate),
		logger.String("endDate", gen.EndDate),
		logger.Int("eventsPerDay", gen.EventsPerDay),
		logger.Int("minDuration", gen.MinDuration),
		logger.Int("maxDuration", gen.MaxDuration),
		logger.String("timeZone", gen.TimeZone),
		logger.Bool("realistic", gen.Realistic))

	// Step 1: Generate events
	events, err := Generate(rng, gen)
	if err != nil {
		return stats, fmt.Errorf("event generation failed: %w", err)
	}
	if len(events) == 0 {
		return stats, ErrNoEvents
	}
	stats.EventsGenerated = len(events)
	if start, end, err := ParseRange(gen.StartDate, gen.EndDate); err == nil {
		stats.DaysCovered = DaySpan(start, end) + 1
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Step 2: Save events to file
	filename, err := saveEventsToFile(ctx, config, events)
	if err != nil {
		return stats, fmt.Errorf("failed to save events: %w", err)
	}
	config.OutputFile = filename

	// Step 3: Analyze the generated set
	if config.Analyze {
		analyze(ctx, gen, events)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	return stats, nil
}

// analyze runs the analytics over the generated events as if read back.
func analyze(ctx context.Context, gen GeneratorConfig, events []model.NewEvent) {
	calendar := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		calendar = append(calendar, ev.AsCalendarEvent(uuid.NewString()))
	}

	endDate := gen.EndDate
	if gen.Realistic {
		if start, err := time.ParseInLocation(dateLayout, gen.StartDate, time.UTC); err == nil {
			endDate = start.AddDate(0, 0, weekDays-1).Format(dateLayout)
		}
	}

	metadata := analytics.AnalyzeRange(calendar, gen.StartDate, endDate)
	series := analytics.AnalyzeTimeSeries(calendar, gen.StartDate, endDate)
	insights := analytics.GenerateInsights(calendar, metadata)

	log := logger.Named("analytics")
	log.Info(ctx, "range metadata",
		logger.Int("totalEvents", metadata.TotalEvents),
		logger.Int("totalDuration", metadata.TotalDuration),
		logger.Float64("averageDuration", metadata.AverageDuration),
		logger.Int("gaps", len(metadata.Gaps)),
		logger.Float64("averageGap", metadata.AverageGap),
		logger.Float64("totalMeetingHours", metadata.TotalMeetingHours))
	log.Info(ctx, "time series summary",
		logger.Int("totalDays", series.Summary.TotalDays),
		logger.Float64("averageMeetingsPerDay", series.Summary.AverageMeetingsPerDay),
		logger.Float64("averageHoursPerDay", series.Summary.AverageHoursPerDay),
		logger.String("peakDay", series.Summary.PeakDay.Date),
		logger.String("quietestDay", series.Summary.QuietestDay.Date))
	for _, in := range insights.Insights {
		log.Info(ctx, in.Title,
			logger.String("type", string(in.Type)),
			logger.String("priority", string(in.Priority)),
			logger.String("description", in.Description))
	}
	log.Info(ctx, "patterns",
		logger.Bool("meetingOverload", insights.Patterns.MeetingOverload),
		logger.Bool("focusTimeAvailable", insights.Patterns.FocusTimeAvailable),
		logger.String("workLifeBalance", string(insights.Patterns.WorkLifeBalance)),
		logger.Any("recommendations", insights.Recommendations))
}

// saveEventsToFile saves the generated events to a JSON file and returns its name.
func saveEventsToFile(ctx context.Context, config *Config, events []model.NewEvent) (string, error) {
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_events_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(events); err != nil {
		return "", fmt.Errorf("failed to write events: %w", err)
	}

	logger.Get().Info(ctx, "events saved to file",
		logger.String("filename", filename),
		logger.Int("count", len(events)))
	return filename, nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var eventsPerDay float64
	if stats.DaysCovered > 0 {
		eventsPerDay = float64(stats.EventsGenerated) / float64(stats.DaysCovered)
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("eventsGenerated", stats.EventsGenerated),
		logger.Int("daysCovered", stats.DaysCovered),
		logger.Float64("eventsPerDay", eventsPerDay),
		logger.Duration("duration", stats.Duration))
}
