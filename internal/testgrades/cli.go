package testgrades

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/gradebook/pkg/logger"
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated. The returned
// function closes the file.
func SetupLogging(logFile string) (func() error, error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "gen_grades_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWithWriter(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return file.Close, nil
}

// ShowHelp prints usage information for the course generator.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `Gradebook Course Generator
==========================

Generates a synthetic course (long-format grades plus a course file),
grades it end to end and verifies the result.

Usage:
  go run ./cmd/gen-grades [options]

Options:
  -dir string
        Output directory (default: generated_course_TIMESTAMP)
  -students int
        Number of students (default 500)
  -homeworks int
        Number of homework assignments (default 8)
  -quizzes int
        Number of quizzes, two attempts each (default 4)
  -drops int
        Lowest homeworks dropped per student (default 1)
  -late float
        Share of homework submitted late (default 0.15)
  -missing float
        Share of homework never submitted (default 0.05)
  -seed uint
        Score seed (default: current time)
  -workers int
        Number of concurrent workers (default CPU cores)
  -log string
        Log file (default: gen_grades_TIMESTAMP.log)
  -verbose
        Log the top of the class
  -help
        Show this help message

Examples:
  # Generate and grade with default settings
  go run ./cmd/gen-grades

  # A large class, kept for later runs of the gradebook command
  go run ./cmd/gen-grades -students 20000 -dir ./testdata/big
  go run ./cmd/gradebook -course ./testdata/big/course.yaml
`)
}
