package scale_test

import (
	"testing"

	"github.com/okian/gradebook/internal/domain/scale"
	. "github.com/smartystreets/goconvey/convey"
)

// clustered has students just below 90% and just above 93%, none between.
var clustered = []float64{0.50, 0.72, 0.81, 0.885, 0.889, 0.895, 0.931, 0.94, 0.945}

func TestFindRobust(t *testing.T) {
	Convey("Given a distribution with an empty band between 89.5% and 93.1%", t, func() {
		robust, err := scale.FindRobust(clustered, scale.Default())
		So(err, ShouldBeNil)

		Convey("Then the result is still a valid scale", func() {
			So(robust.Validate(), ShouldBeNil)
			So(robust.Letters(), ShouldResemble, scale.Default().Letters())
		})

		Convey("Then the A and A- cutoffs sit strictly inside the empty band", func() {
			a, aMinus := robust[1].Cutoff, robust[2].Cutoff
			So(a, ShouldBeGreaterThan, 0.895)
			So(a, ShouldBeLessThan, 0.931)
			So(aMinus, ShouldBeGreaterThan, 0.895)
			So(aMinus, ShouldBeLessThan, 0.931)
			So(a, ShouldBeGreaterThan, aMinus)
		})

		Convey("Then thresholds without nearby scores are unchanged", func() {
			So(robust[0].Cutoff, ShouldEqual, 0.97)
			So(robust[len(robust)-1].Cutoff, ShouldEqual, 0.0)
		})

		Convey("Then students on either side of the band keep their letters", func() {
			So(robust.Letter(0.895), ShouldEqual, "B+")
			So(robust.Letter(0.931), ShouldEqual, "A")
		})

		Convey("When run again with the same distribution", func() {
			again, err := scale.FindRobust(clustered, scale.Default())

			Convey("Then the output is identical", func() {
				So(err, ShouldBeNil)
				So(again.Equal(robust), ShouldBeTrue)
			})
		})
	})

	Convey("Given upper-edge placement", t, func() {
		robust, err := scale.FindRobust(clustered, scale.Default(), scale.WithPlacement(scale.UpperEdge))
		So(err, ShouldBeNil)

		Convey("Then the A cutoff lands on the student just above the band", func() {
			So(robust[1].Cutoff, ShouldEqual, 0.931)
			So(robust.Validate(), ShouldBeNil)
		})
	})

	Convey("Given no scores at all", t, func() {
		robust, err := scale.FindRobust(nil, scale.Default())

		Convey("Then the base scale is returned unchanged", func() {
			So(err, ShouldBeNil)
			So(robust.Equal(scale.Default()), ShouldBeTrue)
		})
	})

	Convey("Given a tiny tolerance", t, func() {
		robust, err := scale.FindRobust([]float64{0.899, 0.901}, scale.Default(), scale.WithTolerance(0.0005))

		Convey("Then a threshold with no score in its window does not move", func() {
			So(err, ShouldBeNil)
			So(robust[2].Cutoff, ShouldEqual, 0.90)
		})
	})

	Convey("Given an invalid base scale", t, func() {
		_, err := scale.FindRobust(clustered, scale.Scale{})
		So(err, ShouldNotBeNil)
	})
}
