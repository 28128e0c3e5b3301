package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"lazystack/pkg/config"
	"lazystack/pkg/stack"
	"lazystack/pkg/telemetry"
	"lazystack/pkg/volume"
)

const usage = `usage: lazystack <command> [flags]

commands:
  generate   write a synthetic time-lapse dataset
  info       scan a dataset and print its shape and statistics
  browse     render planes of a dataset at chosen indices
  project    render the maximum projection along z for every frame
  export     filter a dataset and write it as a chunked zarr array
  config     write the default configuration file

run "lazystack <command> -h" for command flags`

type command func(ctx context.Context, env *runEnv, args []string) error

var commands = map[string]command{
	"generate": runGenerate,
	"info":     runInfo,
	"browse":   runBrowse,
	"project":  runProject,
	"export":   runExport,
	"config":   runConfig,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(1)
	}

	configPath := os.Getenv("LAZYSTACK_CONFIG")
	if configPath == "" {
		configPath = "lazystack.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Printf("Warning: trace shutdown: %v", err)
		}
	}()

	env, err := newRunEnv(cfg, configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	start := time.Now()
	if err := cmd(ctx, env, os.Args[2:]); err != nil {
		log.Printf("%s failed: %v", os.Args[1], err)
		shutdown(ctx)
		os.Exit(1)
	}
	env.logger.Printf("%s completed in %.2f seconds", os.Args[1], time.Since(start).Seconds())
}

// runEnv carries what every command shares.
type runEnv struct {
	cfg        *config.Config
	configPath string
	logger     *log.Logger
	ex         *volume.Executor
}

func newRunEnv(cfg *config.Config, configPath string) (*runEnv, error) {
	logger := log.New(io.Discard, "", 0)
	if cfg.Execution.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	sched, err := volume.ParseScheduler(cfg.Execution.Scheduler)
	if err != nil {
		return nil, err
	}
	ex := volume.NewExecutor(
		volume.WithScheduler(sched),
		volume.WithWorkers(cfg.Execution.Workers),
		volume.WithLogger(logger),
	)
	return &runEnv{cfg: cfg, configPath: configPath, logger: logger, ex: ex}, nil
}

// datasetFlags registers -dir and -pattern on fs with configured defaults.
func (e *runEnv) datasetFlags(fs *flag.FlagSet) (dir, pattern *string) {
	dir = fs.String("dir", e.cfg.Dataset.Dir, "Directory containing the frame files")
	pattern = fs.String("pattern", e.cfg.Dataset.Pattern, "Glob matched against file names")
	return dir, pattern
}

// open scans dir and builds the lazy source volume.
func (e *runEnv) open(dir, pattern string) (*stack.Index, *volume.Volume, error) {
	ix, err := stack.Scan(dir, pattern, stack.WithLogger(e.logger))
	if err != nil {
		return nil, nil, err
	}
	v, err := volume.Build(ix)
	if err != nil {
		return nil, nil, err
	}
	return ix, v, nil
}

func banner(title string) {
	fmt.Println("================================")
	fmt.Println(title)
	fmt.Println("================================")
}
