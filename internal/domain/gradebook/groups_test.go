package gradebook_test

import (
	"errors"
	"testing"

	"github.com/okian/gradebook/internal/domain/gradebook"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTable_SetGroups(t *testing.T) {
	Convey("Given a table", t, func() {
		tbl := newTable(t)

		Convey("When regular group weights do not sum to one", func() {
			err := tbl.SetGroups(
				gradebook.GroupSpec{Name: "hw", Definition: gradebook.EqualWeight("hw01", "hw02"), Weight: gradebook.RegularWeight(0.5)},
				gradebook.GroupSpec{Name: "exam", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.4)},
			)

			Convey("Then the configuration is rejected and nothing is attached", func() {
				So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
				So(tbl.HasGroups(), ShouldBeFalse)
			})
		})

		Convey("When an extra-credit group sits on top of weights summing to one", func() {
			err := tbl.SetGroups(
				gradebook.GroupSpec{Name: "hw02", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.5)},
				gradebook.GroupSpec{Name: "exam", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.5)},
				gradebook.GroupSpec{Name: "hw01", Definition: gradebook.Single(), Weight: gradebook.ExtraCreditWeight(0.05)},
			)

			Convey("Then the extra-credit weight is not part of the sum", func() {
				So(err, ShouldBeNil)
				So(tbl.Groups()[2].ExtraCredit, ShouldBeTrue)
			})
		})

		Convey("When weights sum to one within tolerance", func() {
			err := tbl.SetGroups(
				gradebook.GroupSpec{Name: "hw", Definition: gradebook.Weighted(gradebook.Counted("hw01", 2), gradebook.Counted("hw02", 2)), Weight: gradebook.RegularWeight(0.3333333)},
				gradebook.GroupSpec{Name: "exam", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.6666667)},
			)

			Convey("Then member weights are normalized to sum to one", func() {
				So(err, ShouldBeNil)
				g := tbl.Groups()[0]
				So(g.Members[0].Weight, ShouldAlmostEqual, 0.5)
				So(g.Members[1].Weight, ShouldAlmostEqual, 0.5)
				So(tbl.Groups()[1].Members[0].Assignment, ShouldEqual, "exam")
			})
		})

		Convey("When the proportional mode is used", func() {
			So(tbl.SetGroups(gradebook.GroupSpec{Name: "all", Definition: gradebook.Proportional("hw01", "hw02"), Weight: gradebook.RegularWeight(1)}), ShouldBeNil)

			Convey("Then weights follow points possible", func() {
				g := tbl.Groups()[0]
				So(g.Members[0].Weight, ShouldAlmostEqual, 10.0/60)
				So(g.Members[1].Weight, ShouldAlmostEqual, 50.0/60)
			})
		})

		Convey("When a bonus member is added", func() {
			So(tbl.SetGroups(gradebook.GroupSpec{
				Name:        "all",
				Definition:  gradebook.EqualWeight("hw01", "hw02"),
				Weight:      gradebook.RegularWeight(1),
				ExtraCredit: []gradebook.Member{gradebook.Bonus("exam", 0.1)},
			}), ShouldBeNil)

			Convey("Then its weight is kept as a fraction of full credit", func() {
				g := tbl.Groups()[0]
				So(g.Members[2].ExtraCredit, ShouldBeTrue)
				So(g.Members[2].Weight, ShouldEqual, 0.1)
				So(g.Regular(), ShouldHaveLength, 2)
			})
		})

		Convey("When a group references an unknown assignment", func() {
			err := tbl.SetGroups(gradebook.GroupSpec{Name: "hw", Definition: gradebook.EqualWeight("hw01", "hw09"), Weight: gradebook.RegularWeight(1)})
			So(errors.Is(err, gradebook.ErrScope), ShouldBeTrue)
		})

		Convey("When a weight is negative", func() {
			err := tbl.SetGroups(gradebook.GroupSpec{Name: "hw", Definition: gradebook.Weighted(gradebook.Counted("hw01", -1), gradebook.Counted("hw02", 2)), Weight: gradebook.RegularWeight(1)})
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When a group has only extra credit", func() {
			err := tbl.SetGroups(gradebook.GroupSpec{Name: "hw", Definition: gradebook.Weighted(gradebook.Bonus("hw01", 1)), Weight: gradebook.RegularWeight(1)})
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When group names repeat", func() {
			err := tbl.SetGroups(
				gradebook.GroupSpec{Name: "hw01", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.5)},
				gradebook.GroupSpec{Name: "hw01", Definition: gradebook.Single(), Weight: gradebook.RegularWeight(0.5)},
			)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})

		Convey("When only extra-credit groups are given", func() {
			err := tbl.SetGroups(gradebook.GroupSpec{Name: "hw01", Definition: gradebook.Single(), Weight: gradebook.ExtraCreditWeight(1)})
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestCombine(t *testing.T) {
	Convey("Given two exports of the same class", t, func() {
		left, err := gradebook.NewTable(
			[]gradebook.Student{{ID: "a"}, {ID: "b"}},
			[]gradebook.Assignment{{Name: "hw01", PointsPossible: 10}},
		)
		So(err, ShouldBeNil)
		right, err := gradebook.NewTable(
			[]gradebook.Student{{ID: "B"}, {ID: "A"}},
			[]gradebook.Assignment{{Name: "lab01", PointsPossible: 20}},
		)
		So(err, ShouldBeNil)
		So(left.SetEarned("a", "hw01", 7), ShouldBeNil)
		So(right.SetEarned("a", "lab01", 15), ShouldBeNil)
		right.AddNote(1, gradebook.ChannelMisc, "from lab export")

		Convey("When they are combined", func() {
			out, err := gradebook.Combine(left, right)
			So(err, ShouldBeNil)

			Convey("Then rows follow the first table and columns are appended", func() {
				So(out.AssignmentNames(), ShouldResemble, []string{"hw01", "lab01"})
				So(out.Student(0).ID, ShouldEqual, "a")
				c, _ := out.Get("a", "lab01")
				So(c.Earned, ShouldEqual, 15)
				So(out.Notes(0), ShouldHaveLength, 1)
			})
		})

		Convey("When a column name collides", func() {
			clash, _ := gradebook.NewTable(
				[]gradebook.Student{{ID: "a"}, {ID: "b"}},
				[]gradebook.Assignment{{Name: "hw01", PointsPossible: 10}},
			)
			_, err := gradebook.Combine(left, clash)
			So(errors.Is(err, gradebook.ErrDuplicateAssignment), ShouldBeTrue)
		})

		Convey("When the student sets differ", func() {
			other, _ := gradebook.NewTable(
				[]gradebook.Student{{ID: "a"}, {ID: "c"}},
				[]gradebook.Assignment{{Name: "quiz", PointsPossible: 10}},
			)
			_, err := gradebook.Combine(left, other)
			So(errors.Is(err, gradebook.ErrStudentMismatch), ShouldBeTrue)
		})
	})
}
