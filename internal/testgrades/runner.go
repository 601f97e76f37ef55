package testgrades

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/gradebook/internal/adapters/csvio"
	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/internal/domain/policy"
	"github.com/okian/gradebook/pkg/logger"
)

// Run generates a course, grades it end to end and verifies the result.
func Run(ctx context.Context, cfg *Config) (*app.Grades, error) {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting gradebook course test",
		logger.String("dir", cfg.Dir),
		logger.Int("students", cfg.Students),
		logger.Int("homeworks", cfg.Homeworks),
		logger.Int("quizzes", cfg.Quizzes),
		logger.Int("workers", cfg.Workers),
		logger.Any("verbose", cfg.Verbose))

	// Step 1: Generate grades
	t, err := generateTable(ctx, cfg, stats)
	if err != nil {
		return nil, fmt.Errorf("grade generation failed: %w", err)
	}

	// Step 2: Write the course files
	coursePath, err := writeCourse(ctx, cfg, func(path string) error {
		return csvio.WriteFile(ctx, path, t)
	})
	if err != nil {
		return nil, fmt.Errorf("writing course failed: %w", err)
	}

	// Step 3: Grade the course
	course, err := config.LoadCourse(ctx, coursePath)
	if err != nil {
		return nil, fmt.Errorf("loading course failed: %w", err)
	}
	svc := app.New(
		app.WithWorkerCount(cfg.Workers),
		app.WithDropSearch(policy.DefaultExhaustiveLimit, policy.FallbackGreedy),
	)
	if err := svc.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting service failed: %w", err)
	}
	defer func() {
		if err := svc.Stop(context.Background()); err != nil {
			logger.Get().Error(context.Background(), "failed to stop service", logger.Error(err))
		}
	}()
	grades, err := svc.RunCourse(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("grading failed: %w", err)
	}
	stats.Revisions = len(svc.History(ctx))

	// Step 4: Verify results
	if err := verifyResults(ctx, cfg, grades); err != nil {
		return nil, fmt.Errorf("result verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return grades, nil
}

// writeCourse writes the grades through writeGrades and the course file
// next to them, returning the course path.
func writeCourse(ctx context.Context, cfg *Config, writeGrades func(path string) error) (string, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "generated_course_" + time.Now().Format("20060102_150405")
	}
	if err := os.MkdirAll(dir, directoryPermission); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := writeGrades(filepath.Join(dir, GradesFile)); err != nil {
		return "", fmt.Errorf("failed to write grades: %w", err)
	}

	doc, err := marshalCourse(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, CourseFile)
	if err := os.WriteFile(path, doc, filePermission); err != nil {
		return "", fmt.Errorf("failed to write course: %w", err)
	}

	logger.Get().Info(ctx, "course saved", logger.String("dir", dir))
	return path, nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var studentsPerSecond float64
	if stats.Duration > 0 {
		studentsPerSecond = float64(stats.StudentsGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("studentsGenerated", stats.StudentsGenerated),
		logger.Int("cellsGenerated", stats.CellsGenerated),
		logger.Int("cellsLate", stats.CellsLate),
		logger.Int("cellsMissing", stats.CellsMissing),
		logger.Int("revisions", stats.Revisions),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("studentsPerSecond", studentsPerSecond))
}
