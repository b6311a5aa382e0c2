package ruleengine

import (
	"context"
	"sync"
	"time"

	"github.com/cellrules/engine/pkg/logging"
)

// shutdownAwait is how long Shutdown waits for the action pool and
// subscriber loop to drain cooperatively before forcing termination.
const shutdownAwait = 1 * time.Second

// ActionPool is the lifecycle-managed action executor a Manager owns:
// beyond ActionExecutor's Submit, it can be started and stopped. ActionRunner
// satisfies this; tests substitute a fake with the same shape.
type ActionPool interface {
	ActionExecutor
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// Manager is the process-wide, lifecycle-managed owner of a tenant's live
// Index plus the collaborators that keep it current: the action runner
// pool, the broker's inbound subscriber loop, and (optionally) a timer
// sink. Exactly one Manager exists per process; build it with GetInstance.
type Manager struct {
	Index      *Index
	Dispatcher *Dispatcher

	loader     *Loader
	subscriber *Subscriber
	runner     ActionPool
	broker     Broker
	timers     TimerSink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// ManagerOption configures optional Manager collaborators.
type ManagerOption func(*Manager)

// WithTimerSink attaches a TimerSink that the loader and subscriber notify
// on every rule registration and unregistration. Omit it to leave timers
// unsupported.
func WithTimerSink(sink TimerSink) ManagerOption {
	return func(m *Manager) { m.timers = sink }
}

var (
	instance     *Manager
	instanceOnce sync.Once
	instanceMu   sync.Mutex
)

// GetInstance returns the process-wide Manager, building it on the first
// call from the given collaborators and starting its background loops.
// Later calls ignore their arguments and return the existing instance: the
// engine is a process-wide singleton by design, not a per-call factory.
func GetInstance(store RuleStore, locks CellLockManager, broker Broker, runner ActionPool, maxHop int, cellURLFor func(string) string, opts ...ManagerOption) (*Manager, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	var err error
	instanceOnce.Do(func() {
		index := NewIndex()
		ctx, cancel := context.WithCancel(context.Background())

		m := &Manager{
			Index:      index,
			Dispatcher: NewDispatcher(index, locks, runner, broker, maxHop, cellURLFor),
			loader:     NewLoader(index, store),
			subscriber: NewSubscriber(index, store, locks),
			runner:     runner,
			broker:     broker,
			ctx:        ctx,
			cancel:     cancel,
		}
		for _, opt := range opts {
			opt(m)
		}
		m.loader.timers = m.timers
		m.subscriber.timers = m.timers

		if startErr := m.runner.Start(ctx); startErr != nil {
			err = startErr
			cancel()
			return
		}

		if loadErr := m.loader.Load(ctx); loadErr != nil {
			err = loadErr
			cancel()
			return
		}

		if m.broker != nil {
			m.wg.Add(1)
			go m.runSubscriberLoop()
		}

		instance = m
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// Timers returns the Manager's configured TimerSink, or nil if none was
// attached with WithTimerSink.
func (m *Manager) Timers() TimerSink {
	return m.timers
}

// dispatchInboundEvent routes a broker message to the control-plane
// subscriber or the data-plane dispatcher depending on its type: the
// broker carries both, since Judge republishes control events back onto
// it (see dispatcher.go's ControlTopics check).
func (m *Manager) dispatchInboundEvent(ctx context.Context, event *Event) bool {
	if event != nil && ControlTopics[event.Type] {
		return m.subscriber.HandleRuleEvent(ctx, event)
	}
	m.Dispatcher.Judge(event)
	return true
}

func (m *Manager) runSubscriberLoop() {
	defer m.wg.Done()
	if err := m.broker.SubscribeLoop(m.ctx, func(event *Event) bool {
		return m.dispatchInboundEvent(m.ctx, event)
	}); err != nil {
		if m.ctx.Err() == nil {
			logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore,
				"control-plane subscriber loop exited unexpectedly", err, nil))
		}
	}
}

// Shutdown cancels the Manager's context, waits up to shutdownAwait for the
// subscriber loop to exit (logging if it does not), stops the action runner
// with the same timeout, then shuts down the timer sink and closes the
// broker. Safe to call more than once; only the first call does anything.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error
	m.shutdownOnce.Do(func() {
		m.cancel()

		drained := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(drained)
		}()

		select {
		case <-drained:
		case <-time.After(shutdownAwait):
			logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeShutdownInterrupted,
				"subscriber loop did not exit within the grace period, forcing termination", nil, nil))
		}

		if err := m.runner.Stop(shutdownAwait); err != nil {
			shutdownErr = logging.NewError(logging.ErrorTypeShutdownInterrupted, "action runner failed to drain in time", err, nil)
		}

		if m.timers != nil {
			if err := m.timers.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}

		if m.broker != nil {
			if err := m.broker.Close(); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}

		instanceMu.Lock()
		instance = nil
		instanceOnce = sync.Once{}
		instanceMu.Unlock()
	})
	return shutdownErr
}
