package testgrades

import "time"

// Config holds configuration for a generated course run.
type Config struct {
	Dir         string  // Output directory for the course files
	Students    int     // Number of students to generate
	Homeworks   int     // Number of homework assignments
	Quizzes     int     // Number of quizzes, each with two attempts
	Workers     int     // Number of concurrent generator workers
	LateRate    float64 // Share of homework submitted late
	MissingRate float64 // Share of homework never submitted
	Drops       int     // Lowest homeworks dropped per student
	Seed        uint64  // Seed for reproducible scores
	Verbose     bool    // Log the top of the class
}

// Stats holds run statistics.
type Stats struct {
	StudentsGenerated int
	CellsGenerated    int
	CellsLate         int
	CellsMissing      int
	Revisions         int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
