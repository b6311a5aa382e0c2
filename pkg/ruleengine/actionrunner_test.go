package ruleengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestActionRunnerPostsExecAction(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	runner := NewActionRunner(2, 10, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer runner.Stop(time.Second)

	if err := runner.Submit(ActionInfo{Action: ActionExec, Service: server.URL, EventID: "e1"}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	deadline := time.After(time.Second)
	for atomic.LoadInt32(&hits) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the action to be posted")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestActionRunnerLogActionsNeverHitNetwork(t *testing.T) {
	hits := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	runner := NewActionRunner(1, 10, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.Start(ctx)
	defer runner.Stop(time.Second)

	if err := runner.Submit(ActionInfo{Action: ActionLog, Service: server.URL}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&hits) != 0 {
		t.Fatal("expected a log action never to reach the HTTP server")
	}
}

func TestActionRunnerMissingServiceFails(t *testing.T) {
	runner := NewActionRunner(1, 10, time.Second, nil)
	if err := runner.run(context.Background(), ActionInfo{Action: ActionExec, Service: ""}); err == nil {
		t.Fatal("expected an error for an exec action with no service url")
	}
}

func TestActionRunnerUnrecognizedActionFails(t *testing.T) {
	runner := NewActionRunner(1, 10, time.Second, nil)
	if err := runner.run(context.Background(), ActionInfo{Action: "bogus"}); err == nil {
		t.Fatal("expected an error for an unrecognized action")
	}
}

func TestActionRunnerNonSuccessStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	runner := NewActionRunner(1, 10, time.Second, nil)
	err := runner.run(context.Background(), ActionInfo{Action: ActionExec, Service: server.URL})
	if err == nil {
		t.Fatal("expected an error for a non-2xx response")
	}
}
