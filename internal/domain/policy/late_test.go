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

func lateTable(t *testing.T) *gradebook.Table {
	return build(t, []string{"s1", "s2"},
		[]gradebook.Assignment{{Name: "hw01", PointsPossible: 10}, {Name: "hw02", PointsPossible: 10}, {Name: "hw03", PointsPossible: 10}, {Name: "lab", PointsPossible: 20}},
		[]cell{
			{"s1", "hw01", 10, 2 * time.Hour},
			{"s1", "hw02", 8, 3 * time.Minute},
			{"s1", "hw03", 6, 48 * time.Hour},
			{"s1", "lab", 20, time.Hour},
			{"s2", "hw01", 9, 0},
			{"s2", "hw02", 9, 0},
		},
	)
}

func TestPenalizeLates_Deduct(t *testing.T) {
	Convey("Given late submissions", t, func() {
		tbl := lateTable(t)

		Convey("When a percentage is deducted within the homework", func() {
			p := policy.PenalizeLates{Within: []string{"hw01", "hw02", "hw03"}, Strategy: policy.Deduct{Amount: gradebook.Percentage(50)}}
			So(p.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then each late cell loses that share of its points earned", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 5)
				So(earned(tbl, "s1", "hw03"), ShouldEqual, 3)
			})

			Convey("Then lateness within the fudge is on time", func() {
				So(earned(tbl, "s1", "hw02"), ShouldEqual, 8)
			})

			Convey("Then assignments outside the scope are untouched", func() {
				So(earned(tbl, "s1", "lab"), ShouldEqual, 20)
			})

			Convey("Then every deduction is noted and on-time students get no notes", func() {
				notes := tbl.Notes(0)
				So(notes, ShouldHaveLength, 2)
				So(notes[0].Channel, ShouldEqual, gradebook.ChannelLates)
				So(notes[0].Message, ShouldContainSubstring, "hw01")
				So(notes[0].Message, ShouldContainSubstring, "50%")
				So(tbl.Notes(1), ShouldBeEmpty)
			})

			Convey("Then lateness is never cleared, so a second pass deducts again", func() {
				c, _ := tbl.Get("s1", "hw01")
				So(c.Lateness, ShouldEqual, 2*time.Hour)
				So(p.Apply(context.Background(), tbl), ShouldBeNil)
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 2.5)
			})
		})

		Convey("When no strategy is given", func() {
			So(policy.PenalizeLates{}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then late work loses all credit", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 0)
				So(earned(tbl, "s1", "lab"), ShouldEqual, 0)
				c, _ := tbl.Get("s1", "hw01")
				So(c.Graded, ShouldBeTrue)
			})
		})

		Convey("When the deduction is invalid", func() {
			err := policy.PenalizeLates{Strategy: policy.Deduct{Amount: gradebook.Percentage(120)}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
			So(earned(tbl, "s1", "hw01"), ShouldEqual, 10)
		})
	})
}

func TestPenalizeLates_Forgive(t *testing.T) {
	Convey("Given three late submissions", t, func() {
		tbl := lateTable(t)

		Convey("When the first late is forgiven", func() {
			p := policy.PenalizeLates{Strategy: policy.Forgive{N: 1}}
			So(p.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the earliest late column is exempt and the rest lose all credit", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 10)
				So(earned(tbl, "s1", "hw03"), ShouldEqual, 0)
				So(earned(tbl, "s1", "lab"), ShouldEqual, 0)
			})

			Convey("Then the forgiveness is noted", func() {
				So(tbl.Notes(0)[0].Message, ShouldContainSubstring, "forgiven")
			})
		})

		Convey("When a forgiven slot would go to a dropped late", func() {
			So(tbl.SetDropped("s1", "hw01", true), ShouldBeNil)
			p := policy.PenalizeLates{Strategy: policy.Forgive{N: 1, Then: policy.Deduct{Amount: gradebook.Points(1)}}}
			So(p.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then the dropped late does not consume forgiveness", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 10)
				So(earned(tbl, "s1", "hw03"), ShouldEqual, 6)
				So(earned(tbl, "s1", "lab"), ShouldEqual, 19)
			})
		})

		Convey("When a negative number of lates is forgiven", func() {
			err := policy.PenalizeLates{Strategy: policy.Forgive{N: -1}}.Apply(context.Background(), tbl)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestPenalizeLates_Func(t *testing.T) {
	Convey("Given a strategy that scales with lateness", t, func() {
		tbl := lateTable(t)
		var seen []policy.LateInfo
		perDay := policy.LatePenaltyFunc(func(info policy.LateInfo) (policy.Penalty, error) {
			seen = append(seen, info)
			days := float64(info.Lateness/(24*time.Hour)) + 1
			return policy.Penalty{Amount: gradebook.Points(days), Reason: "per day"}, nil
		})

		Convey("When applied", func() {
			So(policy.PenalizeLates{Strategy: perDay}.Apply(context.Background(), tbl), ShouldBeNil)

			Convey("Then each late cell gets its own deduction", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 9)
				So(earned(tbl, "s1", "hw03"), ShouldEqual, 3)
				So(earned(tbl, "s1", "lab"), ShouldEqual, 19)
			})

			Convey("Then the strategy sees the student, assignment and a read-only table", func() {
				So(seen, ShouldHaveLength, 3)
				So(seen[1].Assignment.Name, ShouldEqual, "hw03")
				So(seen[1].Number, ShouldEqual, 2)
				So(seen[1].Earned, ShouldEqual, 6)
				So(seen[1].Student.ID, ShouldEqual, "s1")
				So(seen[1].Table.Students(), ShouldHaveLength, 2)
			})
		})

		Convey("When the strategy fails", func() {
			boom := policy.LatePenaltyFunc(func(policy.LateInfo) (policy.Penalty, error) {
				return policy.Penalty{}, errors.New("boom")
			})
			err := policy.PenalizeLates{Strategy: boom}.Apply(context.Background(), tbl)
			So(err, ShouldNotBeNil)
		})
	})
}
