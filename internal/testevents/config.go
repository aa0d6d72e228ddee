package testevents

import "time"

// Config holds configuration for the generator CLI
type Config struct {
	Generator  GeneratorConfig // What to generate
	OutputFile string          // Output file for events
	LogFile    string          // Log file for tool output
	Analyze    bool            // Print analytics for the generated set
	Verbose    bool            // Enable verbose logging
}

// Stats holds run statistics
type Stats struct {
	EventsGenerated int
	DaysCovered     int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
