package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	"github.com/noah-isme/sma-substitute-api/pkg/config"
	"github.com/noah-isme/sma-substitute-api/pkg/timetable"
	"github.com/noah-isme/sma-substitute-api/pkg/validation"
)

type options struct {
	timetablePath string
	format        string
	absent        string
	out           string
	exclusivity   string
	writeBack     bool
	verbose       bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	opts := options{}
	flags := pflag.NewFlagSet("substitute", pflag.ExitOnError)
	flags.StringVarP(&opts.timetablePath, "timetable", "t", cfg.Substitution.TimetablePath, "timetable file (csv, txt or yaml)")
	flags.StringVarP(&opts.format, "format", "f", cfg.Substitution.TimetableFormat, "timetable format, detected from the extension when empty")
	flags.StringVarP(&opts.absent, "absent", "a", "", "comma separated absent teacher names, read from stdin when empty")
	flags.StringVarP(&opts.out, "out", "o", "", "also write the report to this .csv, .pdf or .txt file")
	flags.StringVar(&opts.exclusivity, "exclusivity", cfg.Substitution.Exclusivity, "period exclusivity scope: run, absence or teacher")
	flags.BoolVarP(&opts.writeBack, "write-back", "w", false, "save updated timetables to the timetable file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log engine decisions to stderr")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "substitute: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, stdin io.Reader, stdout io.Writer) error {
	logr := zap.NewNop()
	if opts.verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logr = dev
		defer logr.Sync() //nolint:errcheck
	}

	exclusivity, err := service.ParseExclusivityScope(opts.exclusivity)
	if err != nil {
		return err
	}
	var format timetable.Format
	if opts.format != "" {
		if format, err = timetable.ParseFormat(opts.format); err != nil {
			return err
		}
	}
	source, err := repository.NewTimetableFileRepository(opts.timetablePath, format, timetable.Options{
		DefaultDay: cfg.Substitution.DefaultDay,
		FreeLabels: cfg.Substitution.FreeLabels,
	})
	if err != nil {
		return err
	}

	names, err := absentNames(opts.absent, stdin, stdout)
	if err != nil {
		return err
	}

	validate, err := validation.New()
	if err != nil {
		return err
	}
	deps := service.SubstitutionDeps{}
	if opts.writeBack {
		deps.Snapshots = source
	}
	substitutions, err := service.NewSubstitutionService(source, deps, validate, logr, service.SubstitutionServiceConfig{
		Engine:     service.EngineConfig{Exclusivity: exclusivity, KnownPeriods: cfg.Substitution.KnownPeriods},
		FreeLabels: cfg.Substitution.FreeLabels,
	})
	if err != nil {
		return err
	}

	report, err := substitutions.Run(ctx, dto.RunSubstitutionRequest{AbsentTeachers: names}, "")
	if err != nil {
		return err
	}

	exports := service.NewExportService(nil, nil, nil, service.ExportConfig{}, logr)
	grid, err := exports.RenderReport(report, "txt")
	if err != nil {
		return err
	}
	if _, err := stdout.Write(grid.Data); err != nil {
		return err
	}

	if opts.out != "" {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(opts.out)), ".")
		rendered, err := exports.RenderReport(report, ext)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.out, rendered.Data, 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(stdout, "report written to %s\n", opts.out)
	}
	if opts.writeBack && report.Assigned > 0 {
		fmt.Fprintf(stdout, "timetable updated: %s\n", source.Path())
	}
	return nil
}

// absentNames splits the flag value, or prompts for one line on stdin.
func absentNames(flagValue string, stdin io.Reader, stdout io.Writer) ([]string, error) {
	raw := flagValue
	if strings.TrimSpace(raw) == "" {
		fmt.Fprint(stdout, "Enter absent teachers (comma separated): ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read absent teachers: %w", err)
		}
		raw = line
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no absent teachers given")
	}
	return names, nil
}
