package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/internal/config"
	"github.com/wehubfusion/Stagehand/internal/tracing"
	"github.com/wehubfusion/Stagehand/pkg/concurrency"
	"github.com/wehubfusion/Stagehand/pkg/driver"
	"github.com/wehubfusion/Stagehand/pkg/observability"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

type runOptions struct {
	stageConfig stageConfigFlags
	attributes  []string
	input       string
	output      string
	failFast    bool
	watch       bool
}

func newRunCmd(a *app) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run <stage>",
		Short: "Process JSON lines documents through a stage",
		Long: `Run one stage instance over a stream of documents. Each input line is one
document; every output document is written as one line, in input order.

A document that fails is logged, reported and dropped; the others continue. The
command exits non-zero when any document failed.

Examples:
  stagehand run textcase --set field=title --set mode=upper < in.jsonl > out.jsonl
  stagehand run script -f enrich.yaml --attr tenant=acme -i in.jsonl -o out.jsonl
  stagehand run split --manifest bundle.yaml --fail-fast < in.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], o)
		},
	}

	addStageConfigFlags(cmd, &o.stageConfig)
	cmd.Flags().StringArrayVar(&o.attributes, "attr", nil, "call attribute passed to the stage (key=value, repeatable)")
	cmd.Flags().StringVarP(&o.input, "input", "i", "", "input file (default: stdin)")
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&o.failFast, "fail-fast", false, "stop at the first failed document")
	cmd.Flags().BoolVar(&o.watch, "watch", false, "reload the log level when the config file changes")
	return cmd
}

func (a *app) run(cmd *cobra.Command, stageID string, o runOptions) error {
	ctx := cmd.Context()
	cfg := a.manager.Get()
	logger := a.logger.With(zap.String("stage", stageID))

	undo := concurrency.InitializeForKubernetes(logger)
	defer undo()

	if o.watch {
		a.manager.OnChange(func(c *config.Config) {
			if err := observability.SetLevel(a.level, c.Log.Level); err != nil {
				logger.Warn("Ignoring log level change", zap.Error(err))
			}
		})
		a.manager.Watch()
	}

	raw, err := o.stageConfig.load(stageID)
	if err != nil {
		return err
	}
	attrs, err := parsePairs(o.attributes)
	if err != nil {
		return err
	}

	tp, shutdown, err := tracing.Setup(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tracing.Close(shutdown, logger) }()

	opts := []stage.Option{stage.WithLogger(logger), stage.WithTracerProvider(tp)}
	if cfg.Sentry.DSN != "" {
		reporter, err := observability.NewSentryReporter(cfg.Sentry, logger)
		if err != nil {
			return fmt.Errorf("failed to create error reporter: %w", err)
		}
		defer reporter.Flush(2 * time.Second)
		opts = append(opts, stage.WithErrorReporter(reporter))
	}

	h, closeHost, err := openHost(ctx, cfg, logger)
	defer closeHost()
	if err != nil {
		return err
	}

	inst, err := a.registry.NewInstance(stageID, raw, opts...)
	if err != nil {
		return err
	}
	if err := inst.Init(h); err != nil {
		return err
	}
	defer func() { _ = inst.Close() }()

	in, closeIn, err := openInput(cmd, o.input)
	if err != nil {
		return err
	}
	defer closeIn()
	out, closeOut, err := openOutput(cmd, o.output)
	if err != nil {
		return err
	}
	defer closeOut()

	driverCfg := cfg.Driver
	if o.failFast {
		driverCfg.StopOnError = true
	}
	maxConcurrent := cfg.Concurrency.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = concurrency.LoadConfig().MaxConcurrent
	}
	limiter := concurrency.NewLimiter(maxConcurrent)
	d, err := driver.New(inst, driverCfg, limiter, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	docs, reader := readDocuments(runCtx, in, logger)
	writer := newDocumentWriter(out)
	call := &stage.Call{Attributes: attrs, Logger: logger}

	start := time.Now()
	var unencodable int64
	runErr := d.RunOrdered(runCtx, call, docs, func(res driver.Result) error {
		if res.Err != nil {
			// already logged and reported by the instance
			return nil
		}
		err := writer.write(res.Outputs)
		var encErr *encodeError
		if errors.As(err, &encErr) {
			logger.Error("Dropping document with unencodable output",
				zap.String("document_id", res.InputID), zap.Error(err))
			unencodable++
			return nil
		}
		return err
	})
	if err := writer.flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write output: %w", err)
	}

	processed, failed := d.Stats()
	failed += unencodable
	var invalid int
	if runErr == nil {
		var readErr error
		invalid, readErr = reader.wait(ctx)
		if readErr != nil {
			runErr = fmt.Errorf("failed to read input: %w", readErr)
		}
	}

	limits := limiter.Metrics()
	logger.Info("Run finished",
		zap.Int64("processed", processed),
		zap.Int64("failed", failed),
		zap.Int64("unencodable", unencodable),
		zap.Int64("cancelled", d.Cancelled()),
		zap.Int("invalid", invalid),
		zap.Int("written", writer.written),
		zap.Int64("peak_concurrent", limits.PeakConcurrent),
		zap.Duration("average_wait", limits.AverageWait()),
		zap.Duration("average_processing_time", inst.Metrics().AverageProcessingTime()),
		zap.Duration("duration", time.Since(start)))

	if runErr != nil {
		return runErr
	}
	if failed > 0 || invalid > 0 {
		return fmt.Errorf("%d documents failed and %d lines could not be decoded", failed, invalid)
	}
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
