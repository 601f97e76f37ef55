package testgrades

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
)

// CourseDocument describes the generated course: homework, best-of-two
// quizzes and an exam, late penalties and homework drops.
func CourseDocument(cfg *Config) map[string]any {
	quizzes := make([]string, cfg.Quizzes)
	sets := make([]any, cfg.Quizzes)
	for q := 1; q <= cfg.Quizzes; q++ {
		quizzes[q-1] = QuizName(q)
		sets[q-1] = map[string]any{"name": QuizName(q), "members": QuizAttempts(q)}
	}
	homework := HomeworkNames(cfg)

	exam := map[string]any{"name": "exam", "weight": ExamWeight + QuizWeight}
	groups := []any{
		map[string]any{"name": "homework", "weight": HomeworkWeight, "equal_weight": homework},
		exam,
	}
	var policies []any
	if cfg.Quizzes > 0 {
		exam["weight"] = ExamWeight
		groups = append(groups, map[string]any{"name": "quiz", "weight": QuizWeight, "proportional": quizzes})
		policies = append(policies, map[string]any{"type": "take_best", "sets": sets})
	}
	policies = append(policies, map[string]any{
		"type":    "penalize_lates",
		"within":  homework,
		"forgive": ForgivenLates,
		"deduct":  map[string]any{"percent": LatePenaltyPercent},
	})
	if cfg.Drops > 0 {
		policies = append(policies, map[string]any{
			"type":   "drop_most_favorable",
			"k":      cfg.Drops,
			"within": homework,
		})
	}

	return map[string]any{
		"input": map[string]any{
			"format": "long",
			"files":  []string{GradesFile},
		},
		"groups":   groups,
		"scale":    map[string]any{"rounded": true},
		"policies": policies,
	}
}

// marshalCourse renders the course document as YAML.
func marshalCourse(cfg *Config) ([]byte, error) {
	b, err := yaml.Parser().Marshal(CourseDocument(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal course: %w", err)
	}
	return b, nil
}
