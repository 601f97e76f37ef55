package testgrades

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/gradebook/internal/adapters/report"
	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/pkg/logger"
)

const topPerformers = 10

// verifyResults checks the graded course for internal consistency.
func verifyResults(ctx context.Context, cfg *Config, grades *app.Grades) error {
	logger.Get().Info(ctx, "verifying results")

	rep := grades.Report
	if rep == nil || len(rep.Students) == 0 {
		return fmt.Errorf("no students to verify")
	}
	if rep.Class.Students != cfg.Students {
		return fmt.Errorf("report has %d students, generated %d", rep.Class.Students, cfg.Students)
	}

	sc := grades.Table.Scale()
	for _, s := range rep.Students {
		score, ok := s.Overall.Get()
		if !ok {
			continue
		}
		if score < 0 || score > 1 {
			return fmt.Errorf("student %s has overall %v outside [0, 1]", s.ID, score)
		}
		if want := sc.Letter(score); s.Letter != want {
			return fmt.Errorf("student %s has letter %q, scale gives %q", s.ID, s.Letter, want)
		}
	}

	if err := verifyRanks(rep.Students); err != nil {
		return err
	}
	if err := verifyDistribution(rep); err != nil {
		return err
	}
	if err := verifyDrops(cfg, grades); err != nil {
		return err
	}

	displayTopPerformers(ctx, rep.Students, cfg.Verbose)
	logger.Get().Info(ctx, "result verification completed")
	return nil
}

// verifyRanks checks that a higher overall never ranks below a lower one.
func verifyRanks(students []report.StudentSummary) error {
	ranked := rankedStudents(students)
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Rank < ranked[i-1].Rank {
			return fmt.Errorf("student %s (%s) ranks above %s (%s)",
				ranked[i].ID, ranked[i].Percent, ranked[i-1].ID, ranked[i-1].Percent)
		}
	}
	return nil
}

// verifyDistribution checks that the letter distribution counts every letter.
func verifyDistribution(rep *report.Report) error {
	lettered := 0
	for _, s := range rep.Students {
		if s.Letter != "" {
			lettered++
		}
	}
	counted := 0
	for _, c := range rep.Class.Distribution {
		counted += c.N
	}
	if counted != lettered {
		return fmt.Errorf("distribution counts %d letters, report holds %d", counted, lettered)
	}
	return nil
}

// verifyDrops checks that no student lost more homework than configured.
func verifyDrops(cfg *Config, grades *app.Grades) error {
	cols, err := grades.Table.Resolve(HomeworkNames(cfg)...)
	if err != nil {
		return err
	}
	for i := 0; i < grades.Table.NumStudents(); i++ {
		dropped := 0
		for _, j := range cols {
			if grades.Table.Cell(i, j).Dropped {
				dropped++
			}
		}
		if dropped > cfg.Drops {
			return fmt.Errorf("student %s has %d dropped homeworks, want at most %d",
				grades.Table.Student(i).ID, dropped, cfg.Drops)
		}
	}
	return nil
}

// rankedStudents returns students with a defined overall, best first.
func rankedStudents(students []report.StudentSummary) []report.StudentSummary {
	ranked := make([]report.StudentSummary, 0, len(students))
	for _, s := range students {
		if s.Overall.Defined {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Overall.Value > ranked[j].Overall.Value
	})
	return ranked
}

// displayTopPerformers logs the top of the class.
func displayTopPerformers(ctx context.Context, students []report.StudentSummary, verbose bool) {
	if !verbose {
		return
	}
	ranked := rankedStudents(students)
	for i := 0; i < min(topPerformers, len(ranked)); i++ {
		s := ranked[i]
		logger.Get().Info(ctx, "top performer",
			logger.Int("rank", s.Rank),
			logger.String("id", s.ID),
			logger.String("overall", s.Percent),
			logger.String("letter", s.Letter))
	}
	if stats := report.Summarize(scores(ranked)); stats.N > 0 {
		logger.Get().Info(ctx, "score statistics",
			logger.Float64("mean", stats.Mean),
			logger.Float64("median", stats.Median),
			logger.Float64("max", stats.Max),
			logger.Float64("min", stats.Min))
	}
}

func scores(students []report.StudentSummary) []gradebook.Score {
	out := make([]gradebook.Score, len(students))
	for i, s := range students {
		out[i] = s.Overall
	}
	return out
}
