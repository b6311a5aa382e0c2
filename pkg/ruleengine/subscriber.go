package ruleengine

import (
	"context"

	"github.com/cellrules/engine/pkg/logging"
)

// Control-plane event types the subscriber dispatches on.
const (
	EventRuleCreate        = "rule.create"
	EventRuleUpdate        = "rule.update"
	EventRuleMerge         = "rule.merge"
	EventRuleDelete        = "rule.delete"
	EventRuleNavpropBoxNew = "rule.navprop.box.create"
	EventRuleToBoxLinkNew  = "rule->box.linkCreate"
	EventRuleToBoxLinkDrop = "rule->box.linkDelete"
	EventBoxToRuleLinkNew  = "box->rule.linkCreate"
	EventBoxToRuleLinkDrop = "box->rule.linkDelete"
	EventBoxNavpropRuleNew = "box.navprop.rule.create"
	EventBoxUpdate         = "box.update"
	EventBoxMerge          = "box.merge"
	EventCellImport        = "cell.import"
)

// Subscriber is the single-threaded control-plane consumer: it applies
// rule/box lifecycle events to an Index. Every method logs and continues
// on failure rather than propagating an error out to the caller loop.
type Subscriber struct {
	index  *Index
	store  RuleStore
	locks  CellLockManager
	timers TimerSink
}

// NewSubscriber builds a Subscriber over index, backed by store, checking
// cell status against locks before every mutation.
func NewSubscriber(index *Index, store RuleStore, locks CellLockManager) *Subscriber {
	return &Subscriber{index: index, store: store, locks: locks}
}

// HandleRuleEvent applies a single control event and reports whether it
// succeeded. The return value is used only for logging by the caller; the
// subscriber never retries.
func (s *Subscriber) HandleRuleEvent(ctx context.Context, event *Event) bool {
	if event == nil || event.CellID == "" {
		return false
	}

	exists, err := s.cellExists(ctx, event.CellID)
	if err != nil {
		logging.LogError(logging.Logger, err)
		return false
	}
	if !exists {
		s.index.Purge(event.CellID)
		return true
	}
	if s.locks.Status(event.CellID) == CellStatusBulkDeletion {
		return true
	}

	switch event.Type {
	case EventRuleCreate:
		return s.handleRuleCreate(ctx, event)
	case EventRuleUpdate, EventRuleMerge:
		return s.handleRuleUpdateOrMerge(ctx, event)
	case EventRuleDelete:
		return s.handleRuleDelete(event)
	case EventRuleToBoxLinkNew, EventRuleNavpropBoxNew:
		return s.handleRuleToBoxLinkCreate(ctx, event)
	case EventRuleToBoxLinkDrop:
		return s.handleRuleToBoxLinkDelete(ctx, event)
	case EventBoxToRuleLinkNew:
		return s.handleBoxToRuleLinkCreate(ctx, event)
	case EventBoxToRuleLinkDrop:
		return s.handleBoxToRuleLinkDelete(ctx, event)
	case EventBoxNavpropRuleNew:
		return s.handleBoxNavpropRuleCreate(ctx, event)
	case EventBoxUpdate, EventBoxMerge:
		return s.handleBoxUpdateOrMerge(event)
	case EventCellImport:
		return s.handleCellImport(ctx, event)
	default:
		return false
	}
}

func (s *Subscriber) cellExists(ctx context.Context, cellID string) (bool, error) {
	cells, err := s.store.ListCells(ctx)
	if err != nil {
		return false, logging.NewError(logging.ErrorTypeTransientStore, "failed to list cells while checking existence", err, map[string]interface{}{"cellId": cellID})
	}
	for _, c := range cells {
		if c == cellID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Subscriber) readAndRegister(ctx context.Context, cellID, ruleName, boxNameOverride string) bool {
	def, err := s.store.ReadRule(ctx, cellID, ruleName)
	if err != nil {
		logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore, "failed to read rule for registration", err,
			map[string]interface{}{"cellId": cellID, "rule": ruleName}))
		return false
	}
	if boxNameOverride != "" {
		def.BoxName = boxNameOverride
	}
	if err := RegisterDefinition(ctx, s.index, s.store, cellID, *def, s.timers); err != nil {
		logging.LogError(logging.Logger, err)
		return false
	}
	return true
}

func extractName(fragment string) (string, bool) {
	key, ok := ParseFirstKey(fragment)
	if !ok {
		return "", false
	}
	return ComplexValue(ReplaceNullToDummy(key), "Name")
}

func (s *Subscriber) handleRuleCreate(ctx context.Context, event *Event) bool {
	name, ok := extractName(event.Object)
	if !ok {
		return false
	}
	return s.readAndRegister(ctx, event.CellID, name, "")
}

func (s *Subscriber) handleRuleUpdateOrMerge(ctx context.Context, event *Event) bool {
	if oldName, ok := extractName(event.Object); ok {
		s.unregisterByName(event.CellID, oldName)
	}

	newName, ok := extractName(event.Info)
	if !ok {
		return false
	}
	return s.readAndRegister(ctx, event.CellID, newName, "")
}

func (s *Subscriber) handleRuleDelete(event *Event) bool {
	name, ok := extractName(event.Object)
	if !ok {
		return false
	}
	return s.unregisterByName(event.CellID, name)
}

// unregisterByName removes whichever rule keyed under name (unlinked) or
// name.boxId (linked) is currently indexed, notifying the timer sink (if
// any) of the removal.
func (s *Subscriber) unregisterByName(cellID, name string) bool {
	for _, rule := range s.index.Rules(cellID) {
		if rule.Name == name {
			if !s.index.Unregister(cellID, rule.Key()) {
				return false
			}
			if s.timers != nil {
				boxID := ""
				if rule.Box != nil {
					boxID = rule.Box.ID
				}
				if err := s.timers.Unregister(rule.Name, cellID, boxID); err != nil {
					logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore, "failed to notify timer sink of rule unregistration", err,
						map[string]interface{}{"cellId": cellID, "rule": rule.Name}))
				}
			}
			return true
		}
	}
	return false
}

func (s *Subscriber) handleRuleToBoxLinkCreate(ctx context.Context, event *Event) bool {
	ruleFrag, ok := ParseFirstKey(event.Object)
	if !ok {
		return false
	}
	boxFrag, ok := ParseSecondKey(event.Object)
	if !ok {
		return false
	}
	ruleName, ok := ComplexValue(ReplaceNullToDummy(ruleFrag), "Name")
	if !ok {
		return false
	}
	boxName, ok := ComplexValue(ReplaceNullToDummy(boxFrag), "Name")
	if !ok {
		return false
	}

	s.unregisterByName(event.CellID, ruleName)
	return s.readAndRegister(ctx, event.CellID, ruleName, boxName)
}

func (s *Subscriber) handleRuleToBoxLinkDelete(ctx context.Context, event *Event) bool {
	ruleFrag, ok := ParseFirstKey(event.Object)
	if !ok {
		return false
	}
	ruleName, ok := ComplexValue(ReplaceNullToDummy(ruleFrag), "Name")
	if !ok {
		return false
	}
	s.unregisterByName(event.CellID, ruleName)
	return s.readAndRegister(ctx, event.CellID, ruleName, DummyKey)
}

func (s *Subscriber) handleBoxToRuleLinkCreate(ctx context.Context, event *Event) bool {
	boxFrag, ok := ParseFirstKey(event.Object)
	if !ok {
		return false
	}
	ruleFrag, ok := ParseSecondKey(event.Object)
	if !ok {
		return false
	}
	boxName, ok := ComplexValue(ReplaceNullToDummy(boxFrag), "Name")
	if !ok {
		return false
	}
	ruleName, ok := ComplexValue(ReplaceNullToDummy(ruleFrag), "Name")
	if !ok {
		return false
	}

	s.unregisterByName(event.CellID, ruleName)
	return s.readAndRegister(ctx, event.CellID, ruleName, boxName)
}

func (s *Subscriber) handleBoxToRuleLinkDelete(ctx context.Context, event *Event) bool {
	boxFrag, ok := ParseFirstKey(event.Object)
	if !ok {
		return false
	}
	ruleFrag, ok := ParseSecondKey(event.Object)
	if !ok {
		return false
	}
	_, ok = ComplexValue(ReplaceNullToDummy(boxFrag), "Name")
	if !ok {
		return false
	}
	ruleName, ok := ComplexValue(ReplaceNullToDummy(ruleFrag), "Name")
	if !ok {
		return false
	}

	s.unregisterByName(event.CellID, ruleName)
	return s.readAndRegister(ctx, event.CellID, ruleName, DummyKey)
}

func (s *Subscriber) handleBoxNavpropRuleCreate(ctx context.Context, event *Event) bool {
	boxFrag, ok := ParseFirstKey(event.Object)
	if !ok {
		return false
	}
	ruleFrag, ok := ParseSecondKey(event.Object)
	if !ok {
		return false
	}
	boxName, ok := ComplexValue(ReplaceNullToDummy(boxFrag), "Name")
	if !ok {
		return false
	}
	ruleName, ok := ComplexValue(ReplaceNullToDummy(ruleFrag), "Name")
	if !ok {
		return false
	}
	return s.readAndRegister(ctx, event.CellID, ruleName, boxName)
}

func (s *Subscriber) handleBoxUpdateOrMerge(event *Event) bool {
	boxFrag, ok := ParseFirstKey(event.Info)
	if !ok {
		return false
	}
	boxName, ok := ComplexValue(ReplaceNullToDummy(boxFrag), "Name")
	if !ok {
		return false
	}

	box, ok := s.index.BoxByName(event.CellID, boxName)
	if !ok {
		return false
	}
	schema, _ := ComplexValue(ReplaceNullToDummy(boxFrag), "Schema")
	return s.index.UpdateBoxSchema(event.CellID, box.ID, boxName, schema)
}

// handleCellImport drops and rebuilds a tenant's entries wholesale: a
// cell.import replaces the cell's entire rule set, so partial reuse of the
// prior index would leave stale entries behind.
func (s *Subscriber) handleCellImport(ctx context.Context, event *Event) bool {
	s.index.Purge(event.CellID)
	rules, err := s.store.ListRules(ctx, event.CellID)
	if err != nil {
		logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeTransientStore, "failed to reload cell on import", err, map[string]interface{}{"cellId": event.CellID}))
		return false
	}
	ok := true
	for _, def := range rules {
		if err := RegisterDefinition(ctx, s.index, s.store, event.CellID, def, s.timers); err != nil {
			logging.LogError(logging.Logger, err)
			ok = false
		}
	}
	return ok
}
