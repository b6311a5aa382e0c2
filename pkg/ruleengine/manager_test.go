package ruleengine

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeActionPool struct {
	mu        sync.Mutex
	submitted []ActionInfo
	started   bool
	stopped   bool
}

func (f *fakeActionPool) Submit(a ActionInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, a)
	return nil
}

func (f *fakeActionPool) Start(ctx context.Context) error {
	f.started = true
	return nil
}

func (f *fakeActionPool) Stop(timeout time.Duration) error {
	f.stopped = true
	return nil
}

// blockingBroker's SubscribeLoop only returns once ctx is cancelled,
// exercising the cooperative-drain path of Shutdown.
type blockingBroker struct {
	published []*Event
}

func (b *blockingBroker) Publish(ctx context.Context, e *Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *blockingBroker) Close() error { return nil }
func (b *blockingBroker) SubscribeLoop(ctx context.Context, handler func(*Event) bool) error {
	<-ctx.Done()
	return ctx.Err()
}

func resetManagerSingleton() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
	instanceOnce = sync.Once{}
}

func TestGetInstanceBuildsSingletonFromFirstCall(t *testing.T) {
	resetManagerSingleton()
	defer resetManagerSingleton()

	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec, External: boolPtr(false)})

	pool := &fakeActionPool{}
	broker := &blockingBroker{}

	m, err := GetInstance(store, newFakeLockManager(), broker, pool, 5, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pool.started {
		t.Fatal("expected the action pool to be started")
	}
	if _, found := m.Index.RuleAt("cell1", "R1"); !found {
		t.Fatal("expected the loader to have populated the index from the store")
	}

	m2, err := GetInstance(store, newFakeLockManager(), broker, &fakeActionPool{}, 99, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if m2 != m {
		t.Fatal("expected GetInstance to return the same instance on a second call")
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if !pool.stopped {
		t.Fatal("expected the action pool to be stopped on shutdown")
	}
}

func TestGetInstanceRebuildsAfterShutdown(t *testing.T) {
	resetManagerSingleton()
	defer resetManagerSingleton()

	store := newFakeStore()
	pool := &fakeActionPool{}
	broker := &blockingBroker{}

	m1, err := GetInstance(store, newFakeLockManager(), broker, pool, 5, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m1.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}

	pool2 := &fakeActionPool{}
	broker2 := &blockingBroker{}
	m2, err := GetInstance(store, newFakeLockManager(), broker2, pool2, 5, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error rebuilding: %v", err)
	}
	if m2 == m1 {
		t.Fatal("expected shutdown to clear the singleton so a later GetInstance rebuilds")
	}
	if !pool2.started {
		t.Fatal("expected the rebuilt Manager's action pool to be started")
	}
	m2.Shutdown(context.Background())
}

func TestGetInstanceWiresTimerSinkIntoLoaderAndSubscriber(t *testing.T) {
	resetManagerSingleton()
	defer resetManagerSingleton()

	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec, External: boolPtr(false)})

	pool := &fakeActionPool{}
	broker := &blockingBroker{}
	timers := &fakeTimerSink{}

	m, err := GetInstance(store, newFakeLockManager(), broker, pool, 5, cellURLStub, WithTimerSink(timers))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Shutdown(context.Background())

	if m.Timers() != timers {
		t.Fatal("expected Timers() to return the configured sink")
	}
	if len(timers.registered) != 1 || timers.registered[0].name != "R1" {
		t.Fatalf("expected the initial load to notify the timer sink, got %+v", timers.registered)
	}
}

func TestManagerShutdownIsIdempotent(t *testing.T) {
	resetManagerSingleton()
	defer resetManagerSingleton()

	store := newFakeStore()
	pool := &fakeActionPool{}
	broker := &blockingBroker{}

	m, err := GetInstance(store, newFakeLockManager(), broker, pool, 5, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on first shutdown: %v", err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Fatalf("unexpected error on second shutdown: %v", err)
	}
}

func TestManagerDispatchesThroughSharedIndex(t *testing.T) {
	resetManagerSingleton()
	defer resetManagerSingleton()

	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{
		Name: "R1", Action: ActionExec, External: boolPtr(false), Service: "http://s/x",
	})

	pool := &fakeActionPool{}
	broker := &blockingBroker{}

	m, err := GetInstance(store, newFakeLockManager(), broker, pool, 5, cellURLStub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer m.Shutdown(context.Background())

	m.Dispatcher.Judge(&Event{CellID: "cell1", External: false})

	pool.mu.Lock()
	defer pool.mu.Unlock()
	if len(pool.submitted) != 1 {
		t.Fatalf("expected one action submitted through the dispatcher, got %d", len(pool.submitted))
	}
}
