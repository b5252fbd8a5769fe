package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var errPoolClosed = errors.New("extraction pool closed")

// Pool runs CPU-bound extraction closures on a bounded set of workers.
// Every worker lazily builds its own engine via the factory and keeps it
// for its lifetime. A panicking task never kills a worker: the task is
// reported failed, the engine is rebuilt, and the worker keeps serving.
type Pool struct {
	tasks   chan task
	factory EngineFactory
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type task struct {
	fn     func(Engine) (string, error)
	result chan taskResult
}

type taskResult struct {
	text string
	err  error
}

func NewPool(workers int, factory EngineFactory, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		tasks:   make(chan task),
		factory: factory,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Run executes fn on a pool worker. When ctx expires before a worker picks
// the task up or before it finishes, Run returns ctx's error; a result that
// still arrives later is discarded, never applied.
func (p *Pool) Run(ctx context.Context, fn func(Engine) (string, error)) (string, error) {
	// Buffered so an abandoned worker can always deliver and move on.
	t := task{fn: fn, result: make(chan taskResult, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return "", errPoolClosed
	}

	select {
	case res := <-t.result:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops the workers and waits for in-flight tasks to finish. The
// tasks channel is never closed: a Run racing with Close must land on the
// done case, not a send panic.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	var engine Engine
	defer func() {
		if engine != nil {
			_ = engine.Close()
		}
	}()

	for {
		var t task
		select {
		case <-p.done:
			return
		case t = <-p.tasks:
		}
		if engine == nil {
			built, err := p.factory()
			if err != nil {
				p.logger.Error("ocr_worker_engine_init_failed", "worker", id, "error", err)
				t.result <- taskResult{err: fmt.Errorf("init ocr engine: %w", err)}
				continue
			}
			engine = built
		}

		text, err := p.runTask(id, engine, t.fn)
		if err != nil && errors.Is(err, errWorkerCrashed) {
			// Replace the engine; native state is suspect after a crash.
			_ = engine.Close()
			engine = nil
		}
		t.result <- taskResult{text: text, err: err}
	}
}

var errWorkerCrashed = errors.New("extraction task crashed")

func (p *Pool) runTask(id int, engine Engine, fn func(Engine) (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("ocr_worker_task_panic", "worker", id, "panic", r)
			err = fmt.Errorf("%w: %v", errWorkerCrashed, r)
		}
	}()
	return fn(engine)
}
