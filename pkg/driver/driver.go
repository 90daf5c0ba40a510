// Package driver feeds a stream of documents through a stage instance with a
// bounded pool of workers.
package driver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wehubfusion/Stagehand/pkg/concurrency"
	"github.com/wehubfusion/Stagehand/pkg/document"
	"github.com/wehubfusion/Stagehand/pkg/stage"
)

// Config configures a Driver.
type Config struct {
	// Workers is the number of goroutines pulling documents. Zero uses
	// concurrency.LoadConfig.
	Workers int `mapstructure:"workers"`

	// BufferSize is the result channel buffer size
	BufferSize int `mapstructure:"buffer_size"`

	// StopOnError cancels the remaining documents after the first failure
	StopOnError bool `mapstructure:"stop_on_error"`
}

// DefaultConfig returns the driver defaults
func DefaultConfig() Config {
	return Config{BufferSize: 64}
}

// Result is the outcome of one input document.
type Result struct {
	// Index is the position of the input in the stream
	Index int
	// InputID is the identity of the input document
	InputID string
	Outputs []*document.Document
	Err     error
}

type job struct {
	index int
	doc   *document.Document
}

// Driver runs an initialized instance over many documents.
type Driver struct {
	inst    *stage.Instance
	config  Config
	limiter *concurrency.Limiter
	logger  *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
	cancelled atomic.Int64
}

// New creates a driver. A nil limiter leaves concurrency bounded by the worker count.
func New(inst *stage.Instance, config Config, limiter *concurrency.Limiter, logger *zap.Logger) (*Driver, error) {
	if inst == nil {
		return nil, errors.New("instance cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Workers <= 0 {
		config.Workers = concurrency.LoadConfig().Workers
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	return &Driver{inst: inst, config: config, limiter: limiter, logger: logger}, nil
}

// Config returns the effective configuration
func (d *Driver) Config() Config {
	return d.config
}

// Run processes every document received from in and sends one Result per input in
// completion order. The returned channel is closed once in is closed and drained,
// or ctx ends; the caller must read it until then. A failed document never stops
// the others unless StopOnError is set.
func (d *Driver) Run(ctx context.Context, call *stage.Call, in <-chan *document.Document) <-chan Result {
	ctx, cancel := context.WithCancel(ctx)
	jobs := make(chan job)
	results := make(chan Result, d.config.BufferSize)

	go func() {
		defer close(jobs)
		index := 0
		for {
			select {
			case <-ctx.Done():
				return
			case doc, ok := <-in:
				if !ok {
					return
				}
				select {
				case jobs <- job{index: index, doc: doc}:
					index++
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	d.logger.Debug("Starting driver workers", zap.Int("workers", d.config.Workers))

	var wg sync.WaitGroup
	for w := 0; w < d.config.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := range jobs {
				res := d.process(ctx, call, j)
				if res.Err != nil && ctx.Err() == nil {
					d.logger.Debug("Document failed",
						zap.Int("worker", worker),
						zap.Int("index", res.Index),
						zap.Error(res.Err))
					if d.config.StopOnError {
						cancel()
					}
				}
				results <- res
			}
		}(w)
	}

	go func() {
		wg.Wait()
		cancel()
		close(results)
	}()
	return results
}

func (d *Driver) process(ctx context.Context, call *stage.Call, j job) Result {
	res := Result{Index: j.index}
	if j.doc != nil {
		res.InputID = j.doc.ID()
	}

	run := func() error {
		var err error
		res.Outputs, err = d.inst.ProcessAll(ctx, call, j.doc)
		return err
	}
	if d.limiter != nil {
		res.Err = d.limiter.Do(ctx, run)
	} else {
		res.Err = run()
	}

	switch {
	case res.Err == nil:
		d.processed.Add(1)
	case ctx.Err() != nil && errors.Is(res.Err, ctx.Err()):
		// stopped by the run, not by the document
		d.cancelled.Add(1)
	default:
		d.failed.Add(1)
	}
	return res
}

// RunOrdered is Run with results handed to fn in input order. It returns the first
// error fn returns, or the first processing error when StopOnError is set.
func (d *Driver) RunOrdered(parent context.Context, call *stage.Call, in <-chan *document.Document, fn func(Result) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	pending := make(map[int]Result)
	next := 0
	var firstErr error
	for res := range d.Run(ctx, call, in) {
		pending[res.Index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if firstErr != nil {
				continue
			}
			if r.Err != nil && d.config.StopOnError {
				firstErr = r.Err
				cancel()
				continue
			}
			if err := fn(r); err != nil {
				firstErr = err
				cancel()
			}
		}
	}
	if firstErr == nil {
		firstErr = parent.Err()
	}
	return firstErr
}

// ProcessBatch runs docs and returns their results indexed like docs.
func (d *Driver) ProcessBatch(ctx context.Context, call *stage.Call, docs []*document.Document) []Result {
	in := make(chan *document.Document, len(docs))
	for _, doc := range docs {
		in <- doc
	}
	close(in)

	results := make([]Result, len(docs))
	for i := range results {
		results[i] = Result{Index: i, Err: context.Canceled}
		if docs[i] != nil {
			results[i].InputID = docs[i].ID()
		}
	}
	for res := range d.Run(ctx, call, in) {
		results[res.Index] = res
	}
	return results
}

// Stats returns how many documents succeeded and failed so far. Documents cut
// short by cancellation count in neither; see Cancelled.
func (d *Driver) Stats() (processed, failed int64) {
	return d.processed.Load(), d.failed.Load()
}

// Cancelled returns how many documents were abandoned because the run ended.
func (d *Driver) Cancelled() int64 {
	return d.cancelled.Load()
}
