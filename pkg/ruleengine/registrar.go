package ruleengine

import (
	"context"

	"github.com/cellrules/engine/pkg/logging"
	"github.com/cellrules/engine/pkg/validator"
)

// RegisterDefinition resolves def's box (if any) against store, builds the
// corresponding RuleInfo, and registers it in index under its computed
// key. A boxname that fails to resolve is a BoxResolution error: the rule
// is not indexed. def is rejected before any of that if it fails basic
// shape validation (missing name, unrecognized action, malformed service
// URL on any rule that has one). When timers is non-nil, a successful registration
// also notifies it, mirroring the box id into the timer record.
func RegisterDefinition(ctx context.Context, index *Index, store RuleStore, cellID string, def RuleDefinition, timers TimerSink) error {
	if err := validator.ValidateRuleDefinition(validator.RuleDefinition{
		Name: def.Name, Action: def.Action, Service: def.Service,
	}); err != nil {
		return logging.NewError(logging.ErrorTypeInvalidInput, "rule definition failed validation", err,
			map[string]interface{}{"cellId": cellID, "rule": def.Name})
	}

	info := &RuleInfo{
		Name:     def.Name,
		External: def.External,
		Subject:  def.Subject,
		Type:     def.Type,
		Object:   def.Object,
		Info:     def.Info,
		Action:   def.Action,
		Service:  def.Service,
		BoxName:  def.BoxName,
	}

	if def.BoxName != "" && def.BoxName != DummyKey {
		boxDef, err := store.FindBoxByName(ctx, cellID, def.BoxName)
		if err != nil {
			return logging.NewError(logging.ErrorTypeBoxResolution, "failed to resolve box for rule", err,
				map[string]interface{}{"cellId": cellID, "rule": def.Name, "box": def.BoxName})
		}
		info.Box = index.ResolveBox(cellID, boxDef.ID, boxDef.Name, boxDef.Schema)
	}

	index.Register(cellID, info.Key(), info)

	if timers != nil {
		boxID := ""
		if info.Box != nil {
			boxID = info.Box.ID
		}
		if err := timers.Register(def.Name, def.Subject, def.Type, def.Object, def.Info, cellID, boxID); err != nil {
			logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore, "failed to notify timer sink of rule registration", err,
				map[string]interface{}{"cellId": cellID, "rule": def.Name}))
		}
	}

	return nil
}
