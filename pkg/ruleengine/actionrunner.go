package ruleengine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cellrules/engine/pkg/logging"
	"github.com/cellrules/engine/pkg/worker"
	"github.com/prometheus/client_golang/prometheus"
)

// ActionRunner is the concrete ActionExecutor: it submits ActionInfo values
// to a bounded worker pool and runs exec/relay actions as an HTTP POST
// against the action's (already scheme-resolved) service URL. log.* actions
// are only logged, never posted anywhere.
type ActionRunner struct {
	pool       *worker.Pool[ActionInfo]
	httpClient *http.Client
}

var (
	_ ActionExecutor = (*ActionRunner)(nil)
	_ ActionPool     = (*ActionRunner)(nil)
)

// NewActionRunner builds an ActionRunner with workers/queueSize sized for
// the worker pool backing it. A nil registry disables metrics.
func NewActionRunner(workers, queueSize int, timeout time.Duration, registry *prometheus.Registry) *ActionRunner {
	r := &ActionRunner{
		httpClient: &http.Client{Timeout: timeout},
	}

	var opts []worker.Option[ActionInfo]
	if registry != nil {
		opts = append(opts, worker.WithMetrics[ActionInfo](registry, "cellrules_action"))
	}
	r.pool = worker.NewPool(workers, queueSize, r.run, opts...)
	return r
}

// Submit enqueues action for asynchronous execution. Never blocks.
func (r *ActionRunner) Submit(action ActionInfo) error {
	return r.pool.Submit(action)
}

// Start launches the underlying worker pool. ctx governs the workers'
// lifetime.
func (r *ActionRunner) Start(ctx context.Context) error {
	return r.pool.Start(ctx)
}

// Stop drains the pool, waiting up to timeout for in-flight actions.
func (r *ActionRunner) Stop(timeout time.Duration) error {
	return r.pool.Stop(timeout)
}

// Stats reports the underlying pool's point-in-time counters.
func (r *ActionRunner) Stats() worker.Stats {
	return r.pool.Stats()
}

func (r *ActionRunner) run(ctx context.Context, action ActionInfo) error {
	switch action.Action {
	case ActionLog, ActionLogInfo:
		logging.Logger.Info().Str("eventId", action.EventID).Str("ruleChain", action.RuleChain).Msg("rule action: log")
		return nil
	case ActionLogWarn:
		logging.Logger.Warn().Str("eventId", action.EventID).Str("ruleChain", action.RuleChain).Msg("rule action: log")
		return nil
	case ActionLogError:
		logging.Logger.Error().Str("eventId", action.EventID).Str("ruleChain", action.RuleChain).Msg("rule action: log")
		return nil
	case ActionExec, ActionRelay, ActionRelayEvent, ActionRelayData:
		return r.post(ctx, action)
	default:
		return fmt.Errorf("unrecognized action %q", action.Action)
	}
}

func (r *ActionRunner) post(ctx context.Context, action ActionInfo) error {
	if action.Service == "" {
		return fmt.Errorf("action %s has no service url", action.Action)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.Service, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("X-Event-Id", action.EventID)
	req.Header.Set("X-Rule-Chain", action.RuleChain)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("action %s: HTTP %d from %s", action.Action, resp.StatusCode, action.Service)
	}
	return nil
}
