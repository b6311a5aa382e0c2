package ruleengine

import (
	"context"
	"strconv"
	"strings"

	"github.com/cellrules/engine/pkg/logging"
	"github.com/google/uuid"
)

// ControlTopics is the closed set of control-plane event types the
// subscriber consumes and judge is allowed to republish.
var ControlTopics = map[string]bool{
	EventRuleCreate:        true,
	EventRuleUpdate:        true,
	EventRuleMerge:         true,
	EventRuleDelete:        true,
	EventRuleNavpropBoxNew: true,
	EventRuleToBoxLinkNew:  true,
	EventRuleToBoxLinkDrop: true,
	EventBoxToRuleLinkNew:  true,
	EventBoxToRuleLinkDrop: true,
	EventBoxNavpropRuleNew: true,
	EventBoxUpdate:         true,
	EventBoxMerge:          true,
	EventCellImport:        true,
}

// Dispatcher implements judge: matching, hop-count management, action
// scheduling, and republish.
type Dispatcher struct {
	index      *Index
	locks      CellLockManager
	executor   ActionExecutor
	broker     Broker
	maxHop     int
	cellURLFor func(cellID string) string
}

// NewDispatcher builds a Dispatcher. cellURLFor resolves a cell's own
// absolute URL, used to expand localcell:/localbox: references; it is a
// function rather than a field so tests can supply a trivial stub.
func NewDispatcher(index *Index, locks CellLockManager, executor ActionExecutor, broker Broker, maxHop int, cellURLFor func(string) string) *Dispatcher {
	return &Dispatcher{
		index:      index,
		locks:      locks,
		executor:   executor,
		broker:     broker,
		maxHop:     maxHop,
		cellURLFor: cellURLFor,
	}
}

// Judge matches event against cellID's rule set and submits the resulting
// actions, then optionally republishes the event to the broker. Returns
// synchronously once submissions are queued, not once they complete.
func (d *Dispatcher) Judge(event *Event) {
	if event == nil || event.CellID == "" {
		return
	}

	if d.locks.Status(event.CellID) == CellStatusBulkDeletion {
		return
	}

	d.locks.IncRef(event.CellID)
	defer d.locks.DecRef(event.CellID)

	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	skipMatching := false
	hop := 0
	if event.RuleChain != "" {
		parsed, err := strconv.Atoi(event.RuleChain)
		if err != nil {
			skipMatching = true
		} else {
			hop = parsed
		}
	}
	if !skipMatching {
		nextHop := hop + 1
		if nextHop > d.maxHop {
			skipMatching = true
		} else {
			event.RuleChain = strconv.Itoa(nextHop)
		}
	}

	cellURL := d.cellURLFor(event.CellID)

	var actions []ActionInfo
	if !skipMatching {
		for _, rule := range d.index.Rules(event.CellID) {
			if !Match(rule, event) {
				continue
			}
			service, ok := d.resolveService(rule, cellURL)
			if !ok {
				logging.LogError(logging.Logger, logging.NewError(logging.ErrorTypeBoxResolution,
					"rule service references an unresolved box, skipping action",
					nil, map[string]interface{}{"cellId": event.CellID, "rule": rule.Name}))
				continue
			}
			actions = append(actions, ActionInfo{
				Action:    rule.Action,
				Service:   service,
				EventID:   event.EventID,
				RuleChain: event.RuleChain,
			})
		}
	}

	// Object conversion and timer subject validation happen regardless of
	// whether matching was skipped for exceeding the hop limit.
	event.Object = LocalCellToHTTP(cellURL, event.Object)

	if event.Type == "timer.periodic" || event.Type == "timer.oneshot" {
		if !strings.HasPrefix(event.Subject, cellURL) {
			event.Subject = ""
		}
	}

	for _, action := range actions {
		if err := d.executor.Submit(action); err != nil {
			logging.Logger.Error().Err(err).Str("cellId", event.CellID).Str("action", action.Action).Msg("failed to submit action")
		}
	}

	if d.broker != nil && !event.External && ControlTopics[event.Type] {
		if err := d.broker.Publish(context.Background(), event); err != nil {
			logging.Logger.Error().Err(err).Str("cellId", event.CellID).Msg("failed to republish event")
		}
	}
}

// resolveService rewrites rule.Service against cellURL, resolving
// localbox: through the rule's attached box. ok is false only when
// Service uses localbox: but the rule has no resolvable box.
func (d *Dispatcher) resolveService(rule *RuleInfo, cellURL string) (string, bool) {
	service := rule.Service
	if service == "" {
		return "", true
	}
	switch {
	case strings.HasPrefix(service, SchemeLocalCell):
		return LocalCellToHTTP(cellURL, service), true
	case strings.HasPrefix(service, SchemeLocalBox):
		if rule.Box == nil {
			return "", false
		}
		return LocalBoxToHTTP(cellURL, rule.Box.Name, service), true
	default:
		return service, true
	}
}
