package testgrades

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
)

// Performer tiers as a share of full marks.
const (
	tierCount = 8

	avgPerformerMin     = 0.55
	avgPerformerRange   = 0.25
	highPerformerMin    = 0.80
	highPerformerRange  = 0.12
	lowPerformerMin     = 0.30
	lowPerformerRange   = 0.25
	elitePerformerMin   = 0.92
	elitePerformerRange = 0.08

	scoreNoise = 0.12
)

type rowResult struct {
	index int
	cells []gradebook.Cell
	err   error
}

// Assignments lists the generated columns: homework, two attempts per quiz
// and the final exam.
func Assignments(cfg *Config) []gradebook.Assignment {
	out := make([]gradebook.Assignment, 0, cfg.Homeworks+2*cfg.Quizzes+1)
	for _, name := range HomeworkNames(cfg) {
		out = append(out, gradebook.Assignment{Name: name, PointsPossible: HomeworkPoints})
	}
	for q := 1; q <= cfg.Quizzes; q++ {
		for _, name := range QuizAttempts(q) {
			out = append(out, gradebook.Assignment{Name: name, PointsPossible: QuizPoints})
		}
	}
	return append(out, gradebook.Assignment{Name: "exam", PointsPossible: ExamPoints})
}

// HomeworkNames returns hw1..hwN.
func HomeworkNames(cfg *Config) []string {
	names := make([]string, cfg.Homeworks)
	for i := range names {
		names[i] = fmt.Sprintf("hw%d", i+1)
	}
	return names
}

// QuizName is the column take_best leaves behind for quiz q.
func QuizName(q int) string { return fmt.Sprintf("quiz-%d", q) }

// QuizAttempts returns the two attempt columns of quiz q.
func QuizAttempts(q int) []string {
	return []string{QuizName(q) + "a", QuizName(q) + "b"}
}

// generateTable builds a table of random students and scores.
func generateTable(ctx context.Context, cfg *Config, stats *Stats) (*gradebook.Table, error) {
	if cfg.Students <= 0 {
		return nil, fmt.Errorf("number of students must be positive")
	}
	logger.Get().Info(ctx, "generating grades", logger.Int("students", cfg.Students))

	students := make([]gradebook.Student, cfg.Students)
	for i := range students {
		students[i] = gradebook.Student{
			ID:   uuid.NewString(),
			Name: fmt.Sprintf("Student %04d", i+1),
		}
	}
	assignments := Assignments(cfg)
	t, err := gradebook.NewTable(students, assignments)
	if err != nil {
		return nil, err
	}

	resultChan := make(chan rowResult, cfg.Students)

	workerCount := max(1, min(cfg.Workers, cfg.Students))
	perWorker := cfg.Students / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = cfg.Students
		}

		go func(worker, start, end int) {
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(worker)))
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- rowResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- rowResult{index: i, cells: generateRow(rng, cfg, assignments)}
				}
			}
		}(worker, start, end)
	}

	for n := 0; n < cfg.Students; n++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during generation: %w", ctx.Err())
		case res := <-resultChan:
			if res.err != nil {
				return nil, fmt.Errorf("failed to generate student %d: %w", res.index, res.err)
			}
			for j, c := range res.cells {
				t.SetCell(res.index, j, c)
				stats.CellsGenerated++
				if c.Missing() {
					stats.CellsMissing++
				}
				if c.Lateness > 0 {
					stats.CellsLate++
				}
			}
		}
	}

	stats.StudentsGenerated = t.NumStudents()
	logger.Get().Info(ctx, "generated grades successfully",
		logger.Int("students", stats.StudentsGenerated),
		logger.Int("cells", stats.CellsGenerated))
	return t, nil
}

// generateRow scores one student around a randomly drawn ability.
func generateRow(rng *rand.Rand, cfg *Config, assignments []gradebook.Assignment) []gradebook.Cell {
	ability := generateAbility(rng)
	cells := make([]gradebook.Cell, len(assignments))
	for j, a := range assignments {
		homework := j < cfg.Homeworks
		if homework && rng.Float64() < cfg.MissingRate {
			continue
		}
		share := ability + (rng.Float64()*2-1)*scoreNoise
		share = math.Min(1, math.Max(0, share))
		cells[j] = gradebook.Cell{
			Earned: math.Round(share*a.PointsPossible*2) / 2,
			Graded: true,
		}
		if homework && rng.Float64() < cfg.LateRate {
			cells[j].Lateness = time.Duration(rng.Int64N(int64(MaxLateness))).Truncate(time.Second) + time.Hour
		}
	}
	return cells
}

// generateAbility draws a student's expected share of full marks.
func generateAbility(rng *rand.Rand) float64 {
	switch rng.IntN(tierCount) {
	case 0, 1, 2:
		return avgPerformerMin + rng.Float64()*avgPerformerRange
	case 3, 4:
		return highPerformerMin + rng.Float64()*highPerformerRange
	case 5, 6:
		return lowPerformerMin + rng.Float64()*lowPerformerRange
	default:
		return elitePerformerMin + rng.Float64()*elitePerformerRange
	}
}
