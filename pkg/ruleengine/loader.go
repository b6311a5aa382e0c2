package ruleengine

import (
	"context"

	"github.com/cellrules/engine/pkg/logging"
)

// Loader populates an Index from a RuleStore on startup.
type Loader struct {
	index  *Index
	store  RuleStore
	timers TimerSink
}

// NewLoader builds a Loader over index backed by store.
func NewLoader(index *Index, store RuleStore) *Loader {
	return &Loader{index: index, store: store}
}

// Load enumerates every cell and its rules from the store and registers
// each one. A single cell's failure is logged and does not abort the
// remaining cells.
func (l *Loader) Load(ctx context.Context) error {
	cells, err := l.store.ListCells(ctx)
	if err != nil {
		return logging.NewError(logging.ErrorTypeTransientStore, "failed to list cells during load", err, nil)
	}

	for _, cellID := range cells {
		if err := l.loadCell(ctx, cellID); err != nil {
			logging.LogError(logging.Logger, err)
		}
	}
	return nil
}

func (l *Loader) loadCell(ctx context.Context, cellID string) error {
	rules, err := l.store.ListRules(ctx, cellID)
	if err != nil {
		return logging.NewError(logging.ErrorTypeTransientStore, "failed to list rules for cell", err, map[string]interface{}{"cellId": cellID})
	}

	for _, def := range rules {
		if err := RegisterDefinition(ctx, l.index, l.store, cellID, def, l.timers); err != nil {
			logging.LogError(logging.Logger, err)
		}
	}

	logging.Logger.Info().Str("cellId", cellID).Int("ruleCount", len(rules)).Msg("loaded cell rules")
	return nil
}
