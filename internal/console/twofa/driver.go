package twofa

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// driver runs a reducer synchronously: events go in under a lock, effects
// are executed outside it and their results fed back in.
type driver[S any] struct {
	reduce func(S, Event) (S, []Effect)
	exec   Executor
	logger *slog.Logger

	mu    sync.Mutex
	state S

	onEffect func(context.Context, Effect)
	onChange func(S)

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newDriver[S any](initial S, reduce func(S, Event) (S, []Effect), exec Executor, logger *slog.Logger) *driver[S] {
	if logger == nil {
		logger = slog.Default()
	}
	return &driver[S]{
		reduce: reduce,
		exec:   exec,
		logger: logger,
		state:  initial,
		stop:   make(chan struct{}),
	}
}

func (d *driver[S]) State() S {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Dispatch applies ev and runs any effects it produced, including the
// events those effects return, until the machine settles.
func (d *driver[S]) Dispatch(ctx context.Context, ev Event) S {
	queue := []Event{ev}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		d.mu.Lock()
		state, effects := d.reduce(d.state, next)
		d.state = state
		onChange := d.onChange
		d.mu.Unlock()

		if onChange != nil {
			onChange(state)
		}

		for _, eff := range effects {
			if result := d.exec.Execute(ctx, eff); result != nil {
				queue = append(queue, result)
				continue
			}
			if d.onEffect != nil {
				d.onEffect(ctx, eff)
			}
		}
	}
	return d.State()
}

// StartTicker sends Tick once per second until Close or ctx is done.
func (d *driver[S]) StartTicker(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-t.C:
				d.Dispatch(ctx, Tick{})
			}
		}
	}()
}

// Close stops the ticker and waits for it to exit.
func (d *driver[S]) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()
}
