package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/logger"
	"github.com/zsiec/keyseek/internal/source"
	"github.com/zsiec/keyseek/pkg/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type options struct {
	file          string
	strategy      string
	memoryLimitMB int
	frameRate     float64
	seek          float64
	seekSet       bool
	validate      bool
	mmap          bool
	json          bool
	verbose       bool
	showVersion   bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "keyseek: %v\n", err)
		return exitUsage
	}

	if opts.showVersion {
		fmt.Fprintln(stdout, version.GetInfo().String())
		return exitOK
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	log.SetLevel(logrus.WarnLevel)
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	rep, err := inspect(ctx, opts, log)
	if err != nil {
		log.WithError(err).WithField("file", opts.file).Error("Inspection failed")
		return exitFailure
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.WithError(err).Error("Failed to write report")
			return exitFailure
		}
	} else {
		fmt.Fprintln(stdout, renderReport(rep))
	}

	if rep.failed() {
		return exitFailure
	}
	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("keyseek", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "", "H.264 Annex-B file to index")
	fs.StringVar(&opts.strategy, "strategy", "", "Index strategy: full, sparse, adaptive or hierarchical")
	fs.IntVar(&opts.memoryLimitMB, "memory-limit", 0, "Pick the strategy from a memory limit in MB")
	fs.Float64Var(&opts.frameRate, "frame-rate", keyframe.DefaultFrameRate, "Frame rate used to time scanned keyframes")
	fs.Float64Var(&opts.seek, "seek", 0, "Seek to this time in seconds")
	fs.BoolVar(&opts.validate, "validate", false, "Validate the built index")
	fs.BoolVar(&opts.json, "json", false, "Print the report as JSON")
	fs.BoolVar(&opts.mmap, "mmap", false, "Read the file through a memory mapping")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	opts.seekSet = set["seek"]

	if opts.showVersion {
		return opts, nil
	}
	if opts.file == "" {
		return nil, fmt.Errorf("-file is required")
	}
	if set["strategy"] && set["memory-limit"] {
		return nil, fmt.Errorf("-strategy and -memory-limit are mutually exclusive")
	}
	if opts.memoryLimitMB < 0 {
		return nil, fmt.Errorf("-memory-limit must be positive")
	}
	if opts.frameRate <= 0 {
		return nil, fmt.Errorf("-frame-rate must be positive")
	}
	if opts.strategy != "" {
		if _, err := keyframe.ParseStrategy(opts.strategy); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func inspect(ctx context.Context, opts *options, log *logrus.Logger) (*report, error) {
	open := func(path string) (source.Handle, error) { return source.Open(path) }
	if opts.mmap {
		open = source.OpenMapped
	}

	file, err := open(opts.file)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entry := logger.WithComponent(log, "index_builder")
	if file.Format() == source.FormatMP4 {
		entry.Warn("MP4 container detected; Annex-B scanning will likely find no keyframes")
	}

	builder := keyframe.NewBuilder(
		keyframe.WithFrameRate(opts.frameRate),
		keyframe.WithLogger(logger.NewLogrusAdapter(entry)),
	)

	start := time.Now()
	var idx *keyframe.Index
	if opts.memoryLimitMB > 0 {
		idx, err = builder.BuildWithMemoryLimit(ctx, file, opts.memoryLimitMB)
	} else {
		strategy := keyframe.StrategyFull
		if opts.strategy != "" {
			strategy, _ = keyframe.ParseStrategy(opts.strategy)
		}
		idx, err = builder.Build(ctx, file, strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	rep := &report{
		File:      file.Name(),
		Format:    file.Format(),
		SizeBytes: file.Size(),
		Duration:  idx.TotalDuration,
		BuildMS:   float64(time.Since(start).Microseconds()) / 1000,
		Stats:     keyframe.GetIndexStats(idx),
	}

	if opts.validate {
		rep.Validation = &validation{Valid: true}
		if err := keyframe.Validate(idx); err != nil {
			rep.Validation = &validation{Valid: false, Reason: err.Error()}
		}
	}

	if opts.seekSet {
		rep.Seek = &seekReport{Requested: opts.seek}
		err := file.WithCursor(func(rs io.ReadSeeker) error {
			result, err := keyframe.SeekToTimeWithResult(rs, opts.seek, idx)
			if err != nil {
				return err
			}
			rep.Seek.Result = result
			rep.Seek.Closeness = result.Closeness()
			return nil
		})
		if err != nil {
			rep.Seek.Error = err.Error()
		}
	}

	return rep, nil
}
