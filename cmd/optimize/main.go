// Command optimize reads a task as JSON from a file argument (or stdin),
// optimizes it and writes the result JSON to stdout.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"task-optimizer/internal/cache"
	"task-optimizer/internal/config"
	"task-optimizer/internal/geodesy"
	"task-optimizer/internal/models"
	"task-optimizer/internal/optimizer"
)

type options struct {
	cfg       optimizer.Config
	sss       bool
	summary   bool
	spherical bool
	cachePath string
	verbose   bool
	logFile   string
	input     string
}

// output is the JSON document written to stdout
type output struct {
	Result *models.TaskResult `json:"result"`
	SSS    *models.SSSInfo    `json:"sss,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "optimize: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: optimize [flags] <task.json|->\n")
		fs.PrintDefaults()
	}

	def := optimizer.DefaultConfig()
	opts := &options{}
	fs.Float64Var(&opts.cfg.AngleStep, "angle-step", def.AngleStep, "perimeter sampling step in degrees")
	fs.Float64Var(&opts.cfg.FineAngleStep, "fine-angle-step", def.FineAngleStep, "sampling step of the single-point optimizer in degrees")
	fs.IntVar(&opts.cfg.BeamWidth, "beam-width", def.BeamWidth, "candidates kept per stage")
	fs.IntVar(&opts.cfg.NumIterations, "iterations", def.NumIterations, "maximum refinement passes")
	fs.Float64Var(&opts.cfg.Tolerance, "tolerance", def.Tolerance, "convergence tolerance in meters")
	fs.IntVar(&opts.cfg.Workers, "workers", def.Workers, "parallel candidate evaluations per stage")
	fs.BoolVar(&opts.cfg.FallbackToCenters, "fallback", false, "return the center distance when optimization fails")
	fs.BoolVar(&opts.sss, "sss", false, "include the optimal start of speed section entry")
	fs.BoolVar(&opts.summary, "summary", false, "print a table instead of JSON")
	fs.BoolVar(&opts.spherical, "spherical", false, "use the spherical earth model instead of WGS84")
	fs.StringVar(&opts.cachePath, "cache", "", "SQLite solve cache file")
	fs.BoolVar(&opts.verbose, "v", false, "log solver progress to stderr")
	fs.StringVar(&opts.logFile, "log-file", "", "also write logs to this rotated file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
		opts.input = "-"
	case 1:
		opts.input = fs.Arg(0)
	default:
		fs.Usage()
		return nil, errors.New("expected at most one task file")
	}
	if err := opts.cfg.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// parseTask accepts either a bare array of turnpoint records or an object
// with a turnpoints field
func parseTask(data []byte) ([]models.TurnpointRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty task")
	}

	var records []models.TurnpointRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse turnpoints: %w", err)
		}
		return records, nil
	}

	var doc struct {
		Turnpoints []models.TurnpointRecord `json:"turnpoints"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}
	if doc.Turnpoints == nil {
		return nil, errors.New("task has no turnpoints field")
	}
	return doc.Turnpoints, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	var console io.Writer
	if opts.verbose {
		console = stderr
	}
	logs, err := config.SetupLogOutput(opts.logFile, console)
	if err != nil {
		return err
	}
	defer logs.Close()

	data, err := readInput(opts.input, stdin)
	if err != nil {
		return fmt.Errorf("failed to read task: %w", err)
	}
	records, err := parseTask(data)
	if err != nil {
		return err
	}
	course, err := models.NewCourseFromRecords(records)
	if err != nil {
		return err
	}

	geo := geodesy.NewWGS84()
	if opts.spherical {
		geo = geodesy.NewSpherical()
	}
	opt, err := optimizer.New(geo, opts.cfg)
	if err != nil {
		return err
	}

	var solver optimizer.Solver = opt
	if opts.cachePath != "" {
		store, err := cache.NewSQLiteStore(opts.cachePath, 0)
		if err != nil {
			return err
		}
		defer store.Close()
		solver = cache.NewCachedSolver(opt, store, nil)
	}

	result, err := solver.Solve(ctx, &optimizer.SolveRequest{Course: course})
	if err != nil {
		return err
	}

	out := output{Result: result}
	if opts.sss {
		out.SSS, err = opt.SSSInfo(course, result.Route)
		if err != nil {
			return err
		}
	}

	if opts.summary {
		return writeSummary(stdout, course, out)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeSummary(w io.Writer, course models.Course, out output) error {
	res := out.Result
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tROLE\tCROSSING\tCENTERS (km)\tOPTIMIZED (km)")
	for i, z := range res.Summary.PerZone {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.3f\t%.3f\n", i, z.Role, res.Route[i],
			z.CumulativeCenterMeters/1000, z.CumulativeOptimizedMeters/1000)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nzones:      %d\n", course.Len())
	fmt.Fprintf(w, "centers:    %.3f km\n", res.Summary.CenterDistanceMeters/1000)
	fmt.Fprintf(w, "optimized:  %.3f km\n", res.OptimizedDistanceMeters/1000)
	fmt.Fprintf(w, "savings:    %.3f km (%.2f%%)\n", res.Summary.SavingsMeters/1000, res.Summary.SavingsPercent)
	fmt.Fprintf(w, "iterations: %d\n", res.Iterations)
	if out.SSS != nil {
		fmt.Fprintf(w, "sss entry:  %s (turnpoint %d)\n", out.SSS.OptimalEntryPoint, out.SSS.SSSIndex)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning:    %s\n", warn)
	}
	return nil
}
