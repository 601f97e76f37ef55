package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/gradebook/internal/adapters/csvio"
	"github.com/okian/gradebook/internal/adapters/report"
	"github.com/smartystreets/goconvey/convey"
)

const gradesCSV = `student_id,student_name,assignment,points_possible,points_earned,lateness
s1,Ada,hw1,10,10,
s1,Ada,hw2,10,4,
s1,Ada,exam,100,91,
s2,Grace,hw1,10,7,
s2,Grace,hw2,10,9,1:00:00
s2,Grace,exam,100,75,
`

const courseYAML = `
input:
  files: [grades.csv]
groups:
  - name: homework
    weight: 0.4
    proportional: [hw1, hw2]
  - name: exam
    weight: 0.6
policies:
  - type: penalize_lates
    deduct: {points: 1}
  - type: drop_most_favorable
    k: 1
    within: [hw1, hw2]
`

func writeCourse(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{"grades.csv": gradesCSV, "course.yaml": courseYAML} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return filepath.Join(dir, "course.yaml")
}

func TestRun(t *testing.T) {
	convey.Convey("Given a course on disk", t, func() {
		ctx := context.Background()
		course := writeCourse(t)
		dir := filepath.Dir(course)
		var stdout, stderr bytes.Buffer

		convey.Convey("When the course is missing from the command line", func() {
			err := run(ctx, nil, &stdout, &stderr)

			convey.Convey("Then usage is printed", func() {
				convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
				convey.So(stderr.String(), convey.ShouldContainSubstring, "-course")
			})
		})

		convey.Convey("When the report format is unknown", func() {
			err := run(ctx, []string{"-course", course, "-format", "xml"}, &stdout, &stderr)
			convey.So(errors.Is(err, report.ErrUnknownFormat), convey.ShouldBeTrue)
		})

		convey.Convey("When the class report is printed", func() {
			err := run(ctx, []string{"-course", course, "-history"}, &stdout, &stderr)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every student is listed", func() {
				convey.So(stdout.String(), convey.ShouldContainSubstring, "Ada")
				convey.So(stdout.String(), convey.ShouldContainSubstring, "Grace")
				convey.So(stdout.String(), convey.ShouldContainSubstring, "PERCENTILE")
			})

			convey.Convey("Then the revisions are listed", func() {
				convey.So(stderr.String(), convey.ShouldContainSubstring, "penalize_lates")
				convey.So(stderr.String(), convey.ShouldContainSubstring, "drop_most_favorable")
			})
		})

		convey.Convey("When one student is printed as JSON", func() {
			err := run(ctx, []string{"-course", course, "-student", "grace", "-format", "json"}, &stdout, &stderr)
			convey.So(err, convey.ShouldBeNil)

			var rep report.Report
			convey.So(json.Unmarshal(stdout.Bytes(), &rep), convey.ShouldBeNil)
			convey.So(rep.Students, convey.ShouldHaveLength, 1)
			convey.So(rep.Students[0].ID, convey.ShouldEqual, "s2")
			convey.So(rep.Class.Students, convey.ShouldEqual, 2)
		})

		convey.Convey("When the final table and scale are exported", func() {
			export := filepath.Join(dir, "final.csv")
			scaleOut := filepath.Join(dir, "scale.csv")
			err := run(ctx, []string{"-course", course, "-student", "ada", "-export", export, "-export-scale", scaleOut}, &stdout, &stderr)
			convey.So(err, convey.ShouldBeNil)
			convey.So(stdout.String(), convey.ShouldContainSubstring, "Rank:")

			convey.Convey("Then the export reads back with the drops", func() {
				tbl, err := csvio.ReadFile(ctx, csvio.FormatLong, export)
				convey.So(err, convey.ShouldBeNil)
				c, err := tbl.Get("s1", "hw2")
				convey.So(err, convey.ShouldBeNil)
				convey.So(c.Dropped, convey.ShouldBeTrue)

				f, err := os.Open(scaleOut)
				convey.So(err, convey.ShouldBeNil)
				defer f.Close()
				sc, err := csvio.ReadScale(f)
				convey.So(err, convey.ShouldBeNil)
				convey.So(sc.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When a metrics file is configured", func() {
			path := filepath.Join(dir, "gradebook.prom")
			_ = os.Setenv("GRADEBOOK_METRICS_FILE", path)
			defer func() { _ = os.Unsetenv("GRADEBOOK_METRICS_FILE") }()

			err := run(ctx, []string{"-course", course}, &stdout, &stderr)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the metrics are written on exit", func() {
				b, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(b), convey.ShouldBeGreaterThan, 0)
				convey.So(string(b), convey.ShouldContainSubstring, `course="`+filepath.Base(dir)+`"`)
			})
		})
	})
}
