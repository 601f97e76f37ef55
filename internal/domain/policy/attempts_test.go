package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
)

func attemptsTable(t *testing.T) *gradebook.Table {
	return build(t, []string{"s1", "s2", "s3"},
		[]gradebook.Assignment{{Name: "intro", PointsPossible: 5}, {Name: "quiz-1", PointsPossible: 30}, {Name: "quiz-2", PointsPossible: 30}, {Name: "quiz-3", PointsPossible: 30}},
		[]cell{
			{"s1", "quiz-1", 27, time.Hour},
			{"s2", "quiz-1", 15, 0},
			{"s2", "quiz-2", 21, 2 * time.Hour},
			{"s2", "quiz-3", 30, 30 * time.Minute},
			{"s3", "intro", 5, 0},
		},
	)
}

var quizzes = []policy.AttemptSet{{Name: "quiz", Attempts: []string{"quiz-1", "quiz-2", "quiz-3"}}}

func score(tbl *gradebook.Table, student, assignment string) gradebook.Score {
	i, _ := tbl.StudentIndex(student)
	j, _ := tbl.AssignmentIndex(assignment)
	return tbl.Score(i, j)
}

func TestTakeBest(t *testing.T) {
	Convey("Given three attempts at a quiz", t, func() {
		tbl := attemptsTable(t)

		Convey("When the best attempt is taken without penalty", func() {
			So(policy.TakeBest{Sets: quizzes}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then each student keeps their maximum", func() {
				So(score(tbl, "s1", "quiz").Value, ShouldAlmostEqual, 0.9)
				So(score(tbl, "s2", "quiz").Value, ShouldAlmostEqual, 1.0)
			})

			Convey("Then a student with no attempts is missing, not zero", func() {
				So(score(tbl, "s3", "quiz").Defined, ShouldBeFalse)
			})

			Convey("Then the attempts are replaced in place", func() {
				So(tbl.AssignmentNames(), ShouldResemble, []string{"intro", "quiz"})
				So(tbl.Assignment(1).PointsPossible, ShouldEqual, 30)
			})

			Convey("Then the choice is noted when several attempts were graded", func() {
				So(tbl.Notes(0), ShouldBeEmpty)
				So(tbl.Notes(1), ShouldHaveLength, 1)
				So(tbl.Notes(1)[0].Channel, ShouldEqual, gradebook.ChannelAttempts)
			})

			Convey("Then the combined lateness is the latest attempt by default", func() {
				c, _ := tbl.Get("s2", "quiz")
				So(c.Lateness, ShouldEqual, 2*time.Hour)
			})
		})

		Convey("When later attempts lose 10% each", func() {
			So(policy.TakeBest{Sets: quizzes, Penalty: policy.PenalizeSubsequent{Percent: 10}}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the adjusted maximum is kept", func() {
				So(score(tbl, "s1", "quiz").Value, ShouldAlmostEqual, 0.9)
				So(score(tbl, "s2", "quiz").Value, ShouldAlmostEqual, 0.8)
			})
		})

		Convey("When the lateness of the best attempt is used", func() {
			So(policy.TakeBest{Sets: quizzes, Lateness: policy.LatenessOfBest}.Apply(context.Background(), tbl), ShouldBeNil)
			c, _ := tbl.Get("s2", "quiz")
			So(c.Lateness, ShouldEqual, 30*time.Minute)
		})

		Convey("When the earliest lateness is used", func() {
			So(policy.TakeBest{Sets: quizzes, Lateness: policy.MinLateness}.Apply(context.Background(), tbl), ShouldBeNil)
			c, _ := tbl.Get("s2", "quiz")
			So(c.Lateness, ShouldEqual, time.Duration(0))
			c, _ = tbl.Get("s1", "quiz")
			So(c.Lateness, ShouldEqual, time.Hour)
		})

		Convey("When the attempts are kept", func() {
			So(policy.TakeBest{Sets: quizzes, KeepAttempts: true}.Apply(context.Background(), tbl), ShouldBeNil)
			So(tbl.AssignmentNames(), ShouldResemble, []string{"intro", "quiz-1", "quiz", "quiz-2", "quiz-3"})
		})

		Convey("When a custom penalty halves the first attempt", func() {
			halveFirst := policy.AttemptPenaltyFunc(func(s []gradebook.Score) []gradebook.Score {
				if s[0].Defined {
					s[0].Value /= 2
				}
				return s
			})
			So(policy.TakeBest{Sets: quizzes, Penalty: halveFirst}.Apply(context.Background(), tbl), ShouldBeNil)
			So(score(tbl, "s1", "quiz").Value, ShouldAlmostEqual, 0.45)
		})

		Convey("When attempts differ in points possible", func() {
			So(tbl.AddAssignment(gradebook.Assignment{Name: "quiz-4", PointsPossible: 40}, nil), ShouldBeNil)
			err := policy.TakeBest{Sets: []policy.AttemptSet{{Name: "quiz", Attempts: []string{"quiz-1", "quiz-4"}}}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When an attempt does not exist", func() {
			err := policy.TakeBest{Sets: []policy.AttemptSet{{Name: "quiz", Attempts: []string{"quiz-1", "quiz-9"}}}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrScope), ShouldBeTrue)
		})

		Convey("When the combined name collides with another column", func() {
			err := policy.TakeBest{Sets: []policy.AttemptSet{{Name: "intro", Attempts: []string{"quiz-1", "quiz-2"}}}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrDuplicateAssignment), ShouldBeTrue)
		})
	})
}

func TestPenalizeSubsequent(t *testing.T) {
	Convey("Given raw attempt scores", t, func() {
		raw := []gradebook.Score{gradebook.ScoreOf(0.5), gradebook.Undefined(), gradebook.ScoreOf(1)}

		Convey("Then each later attempt loses a growing share", func() {
			out := policy.PenalizeSubsequent{Percent: 10}.Adjust(raw)
			So(out[0].Value, ShouldAlmostEqual, 0.5)
			So(out[1].Defined, ShouldBeFalse)
			So(out[2].Value, ShouldAlmostEqual, 0.8)
		})

		Convey("Then the factor never goes below zero", func() {
			out := policy.PenalizeSubsequent{Percent: 80}.Adjust(raw)
			So(out[2].Value, ShouldEqual, 0)
		})
	})
}
