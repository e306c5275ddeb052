package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ddocjs/internal/compiler"
	"github.com/GriffinCanCode/ddocjs/internal/config"
	"github.com/GriffinCanCode/ddocjs/internal/ddoc"
	"github.com/GriffinCanCode/ddocjs/internal/logging"
	"github.com/GriffinCanCode/ddocjs/internal/monitoring"
	"github.com/GriffinCanCode/ddocjs/internal/output"
	"github.com/GriffinCanCode/ddocjs/internal/sandbox"
)

// errReported marks a run whose failures were already written to the
// output channel.
var errReported = errors.New("one or more operations failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "ddocjs: %v\n", err)
		}
		os.Exit(1)
	}
}

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ddocjs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	docPath := fs.String("doc", "", "Design document file (.json, .yaml, .toml, optionally .gz or .zst)")
	requirePath := fs.String("require", "", "Module path to require from the document root")
	argsJSON := fs.String("args", "[]", "JSON array of arguments passed to each function")
	preload := fs.String("preload", "", "Glob of module ids to require before anything else")
	dialect := fs.String("dialect", "", "Function source dialect (overrides COMPILER_DIALECT)")
	dev := fs.Bool("dev", false, "Development logging")
	showMetrics := fs.Bool("metrics", false, "Write metrics in Prometheus text format to stderr when done")
	var functions stringList
	fs.Var(&functions, "function", "Document path of a function to compile and invoke (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *docPath == "" {
		return errors.New("-doc is required")
	}
	if *requirePath == "" && len(functions) == 0 && *preload == "" {
		return errors.New("nothing to do: give -require, -function or -preload")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dialect != "" {
		cfg.Compiler.Dialect = *dialect
	}
	if *dev {
		cfg.Logging.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	doc, err := ddoc.LoadFile(*docPath)
	if err != nil {
		return err
	}

	var callArgs []interface{}
	if err := sonic.UnmarshalString(*argsJSON, &callArgs); err != nil {
		return fmt.Errorf("invalid -args: %w", err)
	}

	transpiler, err := compiler.ForDialect(cfg.Compiler.Dialect)
	if err != nil {
		return err
	}

	channel := output.New(stdout, logger.Component("output"))
	metrics := monitoring.NewMetrics(nil)

	pool, err := sandbox.NewPool(sandbox.Config{
		MaxCallStackSize: cfg.Sandbox.MaxCallStack,
		Timeout:          cfg.Sandbox.Timeout,
		EnableConsole:    cfg.Sandbox.Console,
	}, cfg.Sandbox.PoolSize,
		sandbox.WithOutput(channel),
		sandbox.WithLogger(logger.Component("sandbox")),
		sandbox.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create sandbox pool: %w", err)
	}
	defer pool.Close()

	h := &host{
		doc:     doc,
		pool:    pool,
		channel: channel,
		metrics: metrics,
		preload: *preload,
		logger:  logger.Logger,
		compiler: compiler.New(compiler.Options{
			Transpiler: transpiler,
			Seal:       cfg.Compiler.Seal,
			Logger:     logger.Component("compiler"),
			Metrics:    metrics,
		}),
	}

	logger.Debug("Document loaded",
		zap.String("id", doc.ID()),
		zap.String("dialect", cfg.Compiler.Dialect),
		zap.Int("functions", len(functions)))

	failed := false
	if *requirePath != "" || len(functions) == 0 {
		if !h.report(h.require(ctx, *requirePath)) {
			failed = true
		}
	}
	for _, o := range h.invokeAll(ctx, functions, callArgs) {
		if !h.report(o) {
			failed = true
		}
	}

	snap := metrics.Snapshot()
	logger.Debug("Run finished",
		zap.Int64("compilations", snap.Compilations),
		zap.Int64("requires", snap.Requires),
		zap.Int64("cache_hits", snap.CacheHits),
		zap.Any("pool", pool.Stats()))

	if *showMetrics {
		if err := metrics.WriteText(stderr); err != nil {
			return err
		}
	}

	if failed {
		return errReported
	}
	return nil
}
