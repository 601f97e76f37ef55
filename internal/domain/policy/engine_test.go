package policy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/gradebook/internal/domain/gradebook"
	"github.com/okian/gradebook/internal/domain/policy"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recorder struct {
	names []string
}

func (r *recorder) Record(_ context.Context, name string, _ *gradebook.Table) error {
	r.names = append(r.names, name)
	return nil
}

func TestEngine_Apply(t *testing.T) {
	Convey("Given a table with late work", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "hw01", PointsPossible: 10}, {Name: "hw02", PointsPossible: 10}},
			[]cell{{"s1", "hw01", 10, time.Hour}, {"s1", "hw02", 8, 0}},
		)
		rec := &recorder{}
		engine := policy.NewEngine(policy.WithRecorder(rec))
		penalize := policy.PenalizeLates{Strategy: policy.Deduct{Amount: gradebook.Points(2)}}

		Convey("When a valid pipeline runs", func() {
			out, err := engine.Apply(context.Background(), tbl, penalize, policy.Exceptions{
				Student: "s1",
				List:    []policy.Exception{policy.Drop{Assignment: "hw02"}},
			})
			So(err, ShouldBeNil)

			Convey("Then each policy commits in order", func() {
				So(earned(out, "s1", "hw01"), ShouldEqual, 8)
				So(dropped(out, "s1"), ShouldResemble, []string{"hw02"})
				So(rec.names, ShouldResemble, []string{"penalize_lates", "exceptions"})
			})

			Convey("Then the input revision is untouched", func() {
				So(earned(tbl, "s1", "hw01"), ShouldEqual, 10)
				So(dropped(tbl, "s1"), ShouldBeEmpty)
				So(tbl.Notes(0), ShouldBeEmpty)
			})
		})

		Convey("When a later policy references an unknown assignment", func() {
			out, err := engine.Apply(context.Background(), tbl,
				penalize,
				policy.PenalizeLates{Within: []string{"hw01", "hw99"}},
			)

			Convey("Then it fails with a scope error", func() {
				So(errors.Is(err, gradebook.ErrScope), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "penalize_lates")
			})

			Convey("Then the last committed revision is returned unchanged", func() {
				So(earned(out, "s1", "hw01"), ShouldEqual, 8)
				So(out.Notes(0), ShouldHaveLength, 1)
				So(rec.names, ShouldResemble, []string{"penalize_lates"})
			})
		})

		Convey("When a policy fails midway through its writes", func() {
			half := policy.Func{Label: "half", Fn: func(_ context.Context, t *gradebook.Table) error {
				_ = t.SetEarned("s1", "hw02", 0)
				return gradebook.ErrConfiguration
			}}
			out, err := engine.Apply(context.Background(), tbl, half)
			So(errors.Is(err, gradebook.ErrConfiguration), ShouldBeTrue)
			So(earned(out, "s1", "hw02"), ShouldEqual, 8)
		})

		Convey("When a before-commit hook rejects the revision", func() {
			hooked := policy.NewEngine(policy.WithBeforeCommit(func(context.Context, *gradebook.Table) error {
				return errors.New("nope")
			}))
			out, err := hooked.Apply(context.Background(), tbl, penalize)
			So(err, ShouldNotBeNil)
			So(out, ShouldEqual, tbl)
		})
	})
}

type spanRecord struct {
	name   string
	policy string
	errs   []error
}

type recordingSpan struct {
	noop.Span
	rec *spanRecord
}

func (s recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.rec.errs = append(s.rec.errs, err)
}

type recordingTracer struct {
	noop.Tracer
	spans []*spanRecord
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	rec := &spanRecord{name: name}
	cfg := trace.NewSpanStartConfig(opts...)
	for _, kv := range cfg.Attributes() {
		if kv.Key == "policy" {
			rec.policy = kv.Value.AsString()
		}
	}
	t.spans = append(t.spans, rec)
	return ctx, recordingSpan{rec: rec}
}

func TestEngine_Tracing(t *testing.T) {
	Convey("Given an engine with a tracer", t, func() {
		tbl := build(t, []string{"s1"},
			[]gradebook.Assignment{{Name: "hw01", PointsPossible: 10}},
			[]cell{{"s1", "hw01", 10, time.Hour}},
		)
		tracer := &recordingTracer{}
		engine := policy.NewEngine(policy.WithTracer(tracer))

		Convey("When one policy commits and the next fails", func() {
			_, err := engine.Apply(context.Background(), tbl,
				policy.PenalizeLates{Strategy: policy.Deduct{Amount: gradebook.Points(1)}},
				policy.PenalizeLates{Within: []string{"hw99"}},
			)
			So(errors.Is(err, gradebook.ErrScope), ShouldBeTrue)

			Convey("Then every policy gets a span and the failure is recorded", func() {
				So(tracer.spans, ShouldHaveLength, 2)
				So(tracer.spans[0].name, ShouldEqual, "policy.apply")
				So(tracer.spans[0].policy, ShouldEqual, "penalize_lates")
				So(tracer.spans[0].errs, ShouldBeEmpty)
				So(tracer.spans[1].errs, ShouldHaveLength, 1)
			})
		})
	})
}
