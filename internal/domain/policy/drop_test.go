package policy_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	"github.com/okian/gradebook/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func proportional(t *testing.T, tbl *gradebook.Table, names ...string) {
	t.Helper()
	if err := tbl.SetGroups(gradebook.GroupSpec{Name: "all", Definition: gradebook.Proportional(names...), Weight: gradebook.RegularWeight(1)}); err != nil {
		t.Fatalf("set groups: %v", err)
	}
}

func overall(t *testing.T, tbl *gradebook.Table, student string) float64 {
	t.Helper()
	r, err := scoring.Aggregate(context.Background(), tbl)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	s, _ := r.OverallFor(student)
	return s.Value
}

func TestDropMostFavorable(t *testing.T) {
	Convey("Given assignments of different weight", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "quiz", PointsPossible: 10}, {Name: "project", PointsPossible: 100}, {Name: "exam", PointsPossible: 100}},
			[]cell{{"s1", "quiz", 5, 0}, {"s1", "project", 60, 0}, {"s1", "exam", 100, 0}},
		)
		proportional(t, tbl, "quiz", "project", "exam")

		Convey("When one assignment is dropped", func() {
			So(policy.DropMostFavorable{K: 1}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the heavier assignment goes even though the quiz scored lower", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"project"})
				So(overall(t, tbl, "s1"), ShouldAlmostEqual, 105.0/110)
			})

			Convey("Then the drop is noted", func() {
				notes := tbl.Notes(0)
				So(notes, ShouldHaveLength, 1)
				So(notes[0].Channel, ShouldEqual, gradebook.ChannelDrops)
				So(notes[0].Message, ShouldContainSubstring, "project")
			})
		})

		Convey("When the scope excludes the project", func() {
			So(policy.DropMostFavorable{K: 1, Within: []string{"quiz", "exam"}}.Apply(context.Background(), tbl), ShouldBeNil)
			So(dropped(tbl, "s1"), ShouldResemble, []string{"quiz"})
		})

		Convey("When the scope names an unknown assignment", func() {
			err := policy.DropMostFavorable{K: 1, Within: []string{"nope"}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrScope), ShouldBeTrue)
		})

		Convey("When more drops are allowed than would help", func() {
			So(policy.DropMostFavorable{K: 3}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the group is never emptied", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"quiz", "project"})
				So(overall(t, tbl, "s1"), ShouldAlmostEqual, 1.0)
			})
		})

		Convey("When no groups are configured", func() {
			tbl.ClearGroups()
			err := policy.DropMostFavorable{K: 1}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestDropMostFavorable_Ties(t *testing.T) {
	Convey("Given two identical low scores", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "a", PointsPossible: 10}, {Name: "b", PointsPossible: 10}, {Name: "c", PointsPossible: 10}},
			[]cell{{"s1", "a", 9, 0}, {"s1", "b", 5, 0}, {"s1", "c", 5, 0}},
		)
		proportional(t, tbl, "a", "b", "c")

		Convey("When one is dropped", func() {
			So(policy.DropMostFavorable{K: 1}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the first in column order goes", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"b"})
			})
		})
	})
}

func TestDropMostFavorable_Candidates(t *testing.T) {
	Convey("Given missing and already dropped work", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "a", PointsPossible: 10}, {Name: "b", PointsPossible: 10}, {Name: "c", PointsPossible: 10}, {Name: "d", PointsPossible: 10}},
			[]cell{{"s1", "a", 2, 0}, {"s1", "c", 6, 0}, {"s1", "d", 9, 0}},
		)
		So(tbl.SetDropped("s1", "a", true), ShouldBeNil)
		proportional(t, tbl, "a", "b", "c", "d")

		Convey("When one more is dropped", func() {
			So(policy.DropMostFavorable{K: 1}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then only graded, undropped cells were candidates", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"a", "c"})
				So(tbl.Notes(0), ShouldHaveLength, 1)
			})
		})
	})
}

func TestDropMostFavorable_Monotonic(t *testing.T) {
	Convey("Given a synthetic class", t, func() {
		var assignments []gradebook.Assignment
		var names []string
		for j := 0; j < 7; j++ {
			name := fmt.Sprintf("hw%02d", j+1)
			names = append(names, name)
			assignments = append(assignments, gradebook.Assignment{Name: name, PointsPossible: float64(10 + 15*j)})
		}
		students := []string{"s1", "s2", "s3", "s4"}
		var cells []cell
		for i, s := range students {
			for j, a := range assignments {
				if (i+j)%5 == 4 {
					continue
				}
				frac := float64((i*37+j*53)%100) / 100
				cells = append(cells, cell{s, a.Name, frac * a.PointsPossible, 0})
			}
		}

		Convey("When k grows from 0 to 4", func() {
			for _, s := range students {
				prev := -1.0
				for k := 0; k <= 4; k++ {
					tbl := build(t, students, assignments, cells)
					proportional(t, tbl, names...)
					So(policy.DropMostFavorable{K: k}.Apply(context.Background(), tbl), ShouldBeNil)
					got := overall(t, tbl, s)

					So(got, ShouldBeGreaterThanOrEqualTo, prev)
					So(len(dropped(tbl, s)), ShouldBeLessThanOrEqualTo, k)
					prev = got
				}
			}
		})

		Convey("When the drops run on a concurrent runner", func() {
			seq := build(t, students, assignments, cells)
			par := build(t, students, assignments, cells)
			proportional(t, seq, names...)
			proportional(t, par, names...)
			So(policy.DropMostFavorable{K: 2}.Apply(context.Background(), seq), ShouldBeNil)
			So(policy.DropMostFavorable{K: 2, Runner: parallel{}}.Apply(context.Background(), par), ShouldBeNil)

			Convey("Then the result is the same", func() {
				for _, s := range students {
					So(dropped(par, s), ShouldResemble, dropped(seq, s))
				}
			})
		})
	})
}

func TestDropMostFavorable_Limit(t *testing.T) {
	Convey("Given more candidates than the exhaustive limit", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "a", PointsPossible: 10}, {Name: "b", PointsPossible: 10}, {Name: "c", PointsPossible: 10}},
			[]cell{{"s1", "a", 3, 0}, {"s1", "b", 9, 0}, {"s1", "c", 6, 0}},
		)
		proportional(t, tbl, "a", "b", "c")

		Convey("When the fallback is an error", func() {
			err := policy.DropMostFavorable{K: 1, ExhaustiveLimit: 2}.Apply(context.Background(), tbl)

			Convey("Then the policy reports the combinatorial limit", func() {
				So(errors.Is(err, gradebook.ErrCombinatorialLimit), ShouldBeTrue)
				So(dropped(tbl, "s1"), ShouldBeEmpty)
			})
		})

		Convey("When the fallback is greedy", func() {
			err := policy.DropMostFavorable{K: 1, ExhaustiveLimit: 2, Fallback: policy.FallbackGreedy}.Apply(context.Background(), tbl)
			So(err, ShouldBeNil)

			Convey("Then it drops greedily and says so", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"a"})
				notes := tbl.Notes(0)
				So(notes, ShouldHaveLength, 2)
				So(notes[0].Message, ShouldContainSubstring, "greedily")
			})
		})
	})
}

func TestDropMostFavorable_Group(t *testing.T) {
	Convey("Given two groups", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "hw1", PointsPossible: 10}, {Name: "hw2", PointsPossible: 10}, {Name: "lab1", PointsPossible: 10}, {Name: "lab2", PointsPossible: 10}},
			[]cell{{"s1", "hw1", 2, 0}, {"s1", "hw2", 8, 0}, {"s1", "lab1", 1, 0}, {"s1", "lab2", 9, 0}},
		)
		So(tbl.SetGroups(
			gradebook.GroupSpec{Name: "hw", Definition: gradebook.EqualWeight("hw1", "hw2"), Weight: gradebook.RegularWeight(0.5)},
			gradebook.GroupSpec{Name: "lab", Definition: gradebook.EqualWeight("lab1", "lab2"), Weight: gradebook.RegularWeight(0.5)},
		), ShouldBeNil)

		Convey("When the objective is the homework group", func() {
			So(policy.DropMostFavorable{K: 1, Group: "hw"}.Apply(context.Background(), tbl), ShouldBeNil)
			So(dropped(tbl, "s1"), ShouldResemble, []string{"hw1"})
		})

		Convey("When two homework slots target the homework group", func() {
			So(policy.DropMostFavorable{K: 2, Group: "hw"}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then only homework is dropped and the labs still count", func() {
				So(dropped(tbl, "s1"), ShouldResemble, []string{"hw1"})
				So(overall(t, tbl, "s1"), ShouldAlmostEqual, 0.5*0.8+0.5*0.5)
			})
		})

		Convey("When the objective is overall", func() {
			So(policy.DropMostFavorable{K: 1}.Apply(context.Background(), tbl), ShouldBeNil)
			So(dropped(tbl, "s1"), ShouldResemble, []string{"lab1"})
		})

		Convey("When the objective group does not exist", func() {
			err := policy.DropMostFavorable{K: 1, Group: "quiz"}.Apply(context.Background(), tbl)
			So(errors.Is(err, policy.ErrUnknownGroup), ShouldBeTrue)
		})
	})
}
