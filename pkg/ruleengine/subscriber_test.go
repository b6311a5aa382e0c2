package ruleengine

import (
	"context"
	"testing"
)

func TestSubscriberRuleCreate(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec, External: boolPtr(false)})

	idx := NewIndex()
	sub := NewSubscriber(idx, store, newFakeLockManager())

	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleCreate, Object: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected rule.create to succeed")
	}

	rule, found := idx.RuleAt("cell1", "R1")
	if !found || rule.Action != ActionExec {
		t.Fatal("expected R1 to be registered")
	}
}

func TestSubscriberRuleUpdateReplacesUnlinkedRule(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R2", Action: ActionLog})

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleUpdate, Object: "Rule('R1')", Info: "Rule('R2')",
	})
	if !ok {
		t.Fatal("expected rule.update to succeed")
	}

	if _, found := idx.RuleAt("cell1", "R1"); found {
		t.Fatal("expected R1 to be unregistered")
	}
	if _, found := idx.RuleAt("cell1", "R2"); !found {
		t.Fatal("expected R2 to be registered")
	}
}

func TestSubscriberRuleUpdateRegistersEvenWithoutPriorEntry(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionLog})

	idx := NewIndex()
	sub := NewSubscriber(idx, store, newFakeLockManager())

	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleMerge, Object: "Rule('nonexistent')", Info: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected the follow-up register to succeed even though the unregister found nothing")
	}
	if _, found := idx.RuleAt("cell1", "R1"); !found {
		t.Fatal("expected R1 to be registered")
	}
}

func TestSubscriberRuleDelete(t *testing.T) {
	store := newFakeStore()
	store.cells = []string{"cell1"}

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleDelete, Object: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected rule.delete to succeed")
	}
	if _, found := idx.RuleAt("cell1", "R1"); found {
		t.Fatal("expected R1 to be removed")
	}
}

func TestSubscriberRuleCreateNotifiesTimerSink(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec, Subject: "subj", External: boolPtr(false)})

	idx := NewIndex()
	sub := NewSubscriber(idx, store, newFakeLockManager())
	timers := &fakeTimerSink{}
	sub.timers = timers

	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleCreate, Object: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected rule.create to succeed")
	}
	if len(timers.registered) != 1 || timers.registered[0].name != "R1" {
		t.Fatalf("expected the timer sink to be notified of R1's registration, got %+v", timers.registered)
	}
}

func TestSubscriberRuleDeleteNotifiesTimerSink(t *testing.T) {
	store := newFakeStore()
	store.cells = []string{"cell1"}

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	timers := &fakeTimerSink{}
	sub.timers = timers

	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleDelete, Object: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected rule.delete to succeed")
	}
	if len(timers.unregistered) != 1 || timers.unregistered[0].name != "R1" {
		t.Fatalf("expected the timer sink to be notified of R1's unregistration, got %+v", timers.unregistered)
	}
}

func TestSubscriberRuleToBoxLinkCreate(t *testing.T) {
	store := newFakeStore()
	store.addBox("cell1", BoxDefinition{ID: "b1", Name: "B", Schema: "http://schema"})
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec})

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleToBoxLinkNew, Object: "Rule('R1')/_Box('B')",
	})
	if !ok {
		t.Fatal("expected rule->box link create to succeed")
	}

	if _, found := idx.RuleAt("cell1", "R1"); found {
		t.Fatal("expected the unlinked key to no longer be present")
	}
	rule, found := idx.RuleAt("cell1", "R1.b1")
	if !found || rule.Box == nil || rule.Box.Name != "B" {
		t.Fatal("expected R1 to be re-keyed under its box")
	}
}

func TestSubscriberRuleToBoxLinkDelete(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec})

	idx := NewIndex()
	box := idx.ResolveBox("cell1", "b1", "B", "")
	idx.Register("cell1", "R1.b1", &RuleInfo{Name: "R1", Action: ActionExec, Box: box})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleToBoxLinkDrop, Object: "Rule('R1')/_Box('B')",
	})
	if !ok {
		t.Fatal("expected rule->box link delete to succeed")
	}

	if _, found := idx.RuleAt("cell1", "R1.b1"); found {
		t.Fatal("expected the linked key to be gone")
	}
	if _, found := idx.RuleAt("cell1", "R1"); !found {
		t.Fatal("expected R1 to be re-registered unlinked")
	}
}

func TestSubscriberBoxUpdatePropagatesToIndex(t *testing.T) {
	store := newFakeStore()
	store.cells = []string{"cell1"}

	idx := NewIndex()
	box := idx.ResolveBox("cell1", "b1", "B", "http://old")
	idx.Register("cell1", "R1.b1", &RuleInfo{Name: "R1", Action: ActionExec, Box: box})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventBoxUpdate, Info: "Box(Name='B',Schema='http://new')",
	})
	if !ok {
		t.Fatal("expected box.update to succeed")
	}

	rule, _ := idx.RuleAt("cell1", "R1.b1")
	if rule.Box.Schema != "http://new" {
		t.Fatalf("expected shared box to observe updated schema, got %s", rule.Box.Schema)
	}
}

func TestSubscriberCellImportReplacesRuleSet(t *testing.T) {
	store := newFakeStore()
	store.addRule("cell1", RuleDefinition{Name: "R2", Action: ActionLog})

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{CellID: "cell1", Type: EventCellImport})
	if !ok {
		t.Fatal("expected cell.import to succeed")
	}

	if _, found := idx.RuleAt("cell1", "R1"); found {
		t.Fatal("expected the stale rule to be purged")
	}
	if _, found := idx.RuleAt("cell1", "R2"); !found {
		t.Fatal("expected the reloaded rule to be present")
	}
}

func TestSubscriberPurgesWhenCellNoLongerExists(t *testing.T) {
	store := newFakeStore()

	idx := NewIndex()
	idx.Register("cell1", "R1", &RuleInfo{Name: "R1", Action: ActionExec})

	sub := NewSubscriber(idx, store, newFakeLockManager())
	ok := sub.HandleRuleEvent(context.Background(), &Event{CellID: "cell1", Type: EventRuleDelete, Object: "Rule('R1')"})
	if !ok {
		t.Fatal("expected a missing cell to be treated as handled")
	}
	if rules := idx.Rules("cell1"); len(rules) != 0 {
		t.Fatal("expected the cell's entries to be purged")
	}
}

func TestSubscriberSkipsWhenCellBulkDeleting(t *testing.T) {
	store := newFakeStore()
	store.cells = []string{"cell1"}
	store.addRule("cell1", RuleDefinition{Name: "R1", Action: ActionExec})

	idx := NewIndex()
	locks := newFakeLockManager()
	locks.statuses["cell1"] = CellStatusBulkDeletion

	sub := NewSubscriber(idx, store, locks)
	ok := sub.HandleRuleEvent(context.Background(), &Event{
		CellID: "cell1", Type: EventRuleCreate, Object: "Rule('R1')",
	})
	if !ok {
		t.Fatal("expected bulk-deleting cell events to be treated as handled")
	}
	if _, found := idx.RuleAt("cell1", "R1"); found {
		t.Fatal("expected no mutation while cell is in bulk deletion")
	}
}

func TestSubscriberNilAndEmptyCellNoop(t *testing.T) {
	store := newFakeStore()
	idx := NewIndex()
	sub := NewSubscriber(idx, store, newFakeLockManager())

	if sub.HandleRuleEvent(context.Background(), nil) {
		t.Fatal("expected nil event to report false")
	}
	if sub.HandleRuleEvent(context.Background(), &Event{CellID: ""}) {
		t.Fatal("expected empty cellId to report false")
	}
}

func TestSubscriberUnknownEventTypeReportsFalse(t *testing.T) {
	store := newFakeStore()
	store.cells = []string{"cell1"}

	idx := NewIndex()
	sub := NewSubscriber(idx, store, newFakeLockManager())

	if sub.HandleRuleEvent(context.Background(), &Event{CellID: "cell1", Type: "unknown.event"}) {
		t.Fatal("expected an unrecognized event type to report false")
	}
}
