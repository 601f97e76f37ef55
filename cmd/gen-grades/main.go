package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/gradebook/internal/testgrades"
)

// Default configuration constants.
const (
	defaultStudents    = 500
	defaultHomeworks   = 8
	defaultQuizzes     = 4
	defaultDrops       = 1
	defaultLateRate    = 0.15
	defaultMissingRate = 0.05
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		dir       = flag.String("dir", "", "Output directory (default: generated_course_TIMESTAMP)")
		students  = flag.Int("students", defaultStudents, "Number of students")
		homeworks = flag.Int("homeworks", defaultHomeworks, "Number of homework assignments")
		quizzes   = flag.Int("quizzes", defaultQuizzes, "Number of quizzes, two attempts each")
		drops     = flag.Int("drops", defaultDrops, "Lowest homeworks dropped per student")
		late      = flag.Float64("late", defaultLateRate, "Share of homework submitted late")
		missing   = flag.Float64("missing", defaultMissingRate, "Share of homework never submitted")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Score seed")
		workers   = flag.Int("workers", runtime.NumCPU(), "Number of concurrent workers")
		logFile   = flag.String("log", "", "Log file (default: gen_grades_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Log the top of the class")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testgrades.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := testgrades.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testgrades.Config{
		Dir:         *dir,
		Students:    *students,
		Homeworks:   *homeworks,
		Quizzes:     *quizzes,
		Workers:     *workers,
		LateRate:    *late,
		MissingRate: *missing,
		Drops:       *drops,
		Seed:        *seed,
		Verbose:     *verbose,
	}

	if _, err := testgrades.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		cancel()
		_ = closeLog()
		os.Exit(1)
	}
}
