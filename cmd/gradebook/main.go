package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okian/gradebook/internal/adapters/csvio"
	"github.com/okian/gradebook/internal/adapters/report"
	app "github.com/okian/gradebook/internal/app"
	"github.com/okian/gradebook/internal/config"
	"github.com/okian/gradebook/pkg/logger"
	"github.com/okian/gradebook/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// errUsage marks bad command line input; usage has already been printed.
var errUsage = errors.New("usage")

// options holds the parsed command line.
type options struct {
	course      string
	format      string
	student     string
	export      string
	exportScale string
	history     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("gradebook", flag.ContinueOnError)
	fs.SetOutput(stderr)
	o := &options{}
	fs.StringVar(&o.course, "course", "", "Course file (YAML)")
	fs.StringVar(&o.format, "format", string(report.FormatText), "Report format: text or json")
	fs.StringVar(&o.student, "student", "", "Print one student's report, by id or name fragment")
	fs.StringVar(&o.export, "export", "", "Write the final table as long-format CSV")
	fs.StringVar(&o.exportScale, "export-scale", "", "Write the final letter scale as CSV")
	fs.BoolVar(&o.history, "history", false, "List the revisions after the report")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if o.course == "" {
		fs.Usage()
		return nil, fmt.Errorf("%w: -course is required", errUsage)
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			os.Stderr.WriteString("gradebook: " + err.Error() + "\n")
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWithWriter(stderr, logger.Format(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	course, err := config.LoadCourse(ctx, opts.course)
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		metrics.Configure(metrics.WithCourse(filepath.Base(course.Dir)))
	}

	svc := app.New(append(app.FromConfig(cfg), app.WithLogger(log.Named("service")))...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(ctx, "service shutdown failed", logger.Error(err))
		}
		if cfg.MetricsFile != "" {
			if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Error(ctx, "metrics export failed", logger.Error(err))
			}
		}
	}()

	grades, err := svc.RunCourse(ctx, course)
	if err != nil {
		return err
	}

	if opts.student != "" {
		s, err := grades.Report.Student(opts.student)
		if err != nil {
			return err
		}
		if format == report.FormatJSON {
			return report.WriteJSON(stdout, &report.Report{Class: grades.Report.Class, Students: []report.StudentSummary{s}})
		}
		if err := report.WriteStudent(stdout, s, len(grades.Report.Students)); err != nil {
			return err
		}
	} else if err := report.Write(stdout, format, grades.Report); err != nil {
		return err
	}

	if opts.export != "" {
		if err := csvio.WriteFile(ctx, opts.export, grades.Table); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		log.Info(ctx, "table exported", logger.String("path", opts.export))
	}
	if opts.exportScale != "" {
		if err := writeScale(opts.exportScale, grades); err != nil {
			return fmt.Errorf("export scale: %w", err)
		}
	}
	if opts.history {
		for _, rev := range svc.History(ctx) {
			fmt.Fprintf(stderr, "%3d  %-22s %s  %s\n", rev.Seq, rev.Label, rev.At.Format(time.RFC3339), rev.ID)
		}
	}
	return nil
}

func writeScale(path string, grades *app.Grades) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := csvio.WriteScale(f, grades.Table.Scale()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
