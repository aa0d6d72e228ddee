package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/calpulse/internal/testevents"
)

// Default configuration constants.
const (
	defaultSpanDays   = 6
	defaultRunTimeout = 1 * time.Minute
)

func main() {
	today := time.Now().UTC().Format("2006-01-02")

	var (
		startDate  = flag.String("start", today, "First day to generate, YYYY-MM-DD")
		endDate    = flag.String("end", "", "Last day to generate, YYYY-MM-DD (default: start + 6 days)")
		perDay     = flag.Int("per-day", testevents.DefaultEventsPerDay, "Number of events per day")
		minMinutes = flag.Int("min", testevents.DefaultMinDuration, "Minimum event duration in minutes")
		maxMinutes = flag.Int("max", testevents.DefaultMaxDuration, "Maximum event duration in minutes")
		timeZone   = flag.String("tz", testevents.DefaultTimeZone, "Timezone label stored on each event")
		realistic  = flag.Bool("realistic", false, "Generate a realistic working week from -start")
		outputFile = flag.String("output", "", "Output file for generated events (default: generated_events_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for tool output (default: test_events_TIMESTAMP.log)")
		analyze    = flag.Bool("analyze", false, "Log analytics for the generated events")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	if *endDate == "" {
		if start, err := time.Parse("2006-01-02", *startDate); err == nil {
			*endDate = start.AddDate(0, 0, defaultSpanDays).Format("2006-01-02")
		} else {
			*endDate = *startDate
		}
	}

	if err := testevents.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)

	config := &testevents.Config{
		Generator: testevents.GeneratorConfig{
			StartDate:    *startDate,
			EndDate:      *endDate,
			EventsPerDay: *perDay,
			MinDuration:  *minMinutes,
			MaxDuration:  *maxMinutes,
			TimeZone:     *timeZone,
			Realistic:    *realistic,
		},
		OutputFile: *outputFile,
		LogFile:    *logFile,
		Analyze:    *analyze,
		Verbose:    *verbose,
	}

	_, err := testevents.Run(ctx, config)
	cancel()
	if err != nil {
		_, _ = os.Stderr.WriteString("Generation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
