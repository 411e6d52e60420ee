// Package worker provides the serial task queue that owns coverage
// bookkeeping. Tasks run one at a time, in the order they were posted, on a
// single goroutine.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/Faultbox/objscan/internal/logger"
)

const instrumentationName = "github.com/Faultbox/objscan/internal/worker"

// ErrClosed is returned when posting to a closed queue.
var ErrClosed = errors.New("worker: queue closed")

// DefaultBufferSize is the number of tasks that may wait before Post blocks.
const DefaultBufferSize = 64

// Queue is a serial executor.
type Queue struct {
	name  string
	tasks chan func()
	done  chan struct{}
	log   *zap.Logger

	mu     sync.RWMutex
	closed bool

	processed metric.Int64Counter
	panics    metric.Int64Counter
	depth     metric.Int64ObservableGauge
	depthReg  metric.Registration
	attrs     metric.MeasurementOption
}

// New starts a queue with room for bufferSize waiting tasks. A
// non-positive size selects DefaultBufferSize.
func New(name string, bufferSize int) (*Queue, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	q := &Queue{
		name:  name,
		tasks: make(chan func(), bufferSize),
		done:  make(chan struct{}),
		log:   logger.Named("worker").With(zap.String("queue", name)),
		attrs: metric.WithAttributes(attribute.String("queue", name)),
	}

	m := otel.Meter(instrumentationName)

	var err error
	q.processed, err = m.Int64Counter(
		"objscan.worker.tasks.processed",
		metric.WithDescription("Tasks run by the serial queue"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	q.panics, err = m.Int64Counter(
		"objscan.worker.tasks.panicked",
		metric.WithDescription("Tasks that panicked"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating panic counter: %w", err)
	}

	q.depth, err = m.Int64ObservableGauge(
		"objscan.worker.queue.depth",
		metric.WithDescription("Tasks waiting to run"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating depth gauge: %w", err)
	}
	q.depthReg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(q.depth, int64(len(q.tasks)), q.attrs)
			return nil
		},
		q.depth,
	)
	if err != nil {
		return nil, fmt.Errorf("registering depth callback: %w", err)
	}

	go q.run()
	return q, nil
}

func (q *Queue) run() {
	defer close(q.done)
	for task := range q.tasks {
		q.exec(task)
	}
}

func (q *Queue) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.panics.Add(context.Background(), 1, q.attrs)
			q.log.Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
	q.processed.Add(context.Background(), 1, q.attrs)
}

// Post schedules task. It blocks while the buffer is full.
func (q *Queue) Post(task func()) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}
	q.tasks <- task
	return nil
}

// Flush waits until every task posted before the call has run.
func (q *Queue) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := q.Post(func() { close(done) }); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, runs the ones already queued and waits for
// the worker goroutine to exit.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	<-q.done
	if err := q.depthReg.Unregister(); err != nil {
		q.log.Warn("unregistering depth callback", zap.Error(err))
	}
	q.log.Debug("queue closed")
	return nil
}
