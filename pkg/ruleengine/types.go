// Package ruleengine implements the per-tenant rule index, matcher and
// dispatcher described by the cellrules engine: a live-updated index of
// (cellId -> rules) and (cellId -> boxes) that matches inbound events
// against declarative rules and hands resulting actions to a worker pool.
package ruleengine

// BoxInfo is the shared, reference-counted record for a box (a tenant
// sub-container). It is owned by the Box Index; rules hold a borrowed
// reference to it, never a copy, so a box rename is visible to every rule
// that references it without re-registering those rules.
type BoxInfo struct {
	ID       string
	Name     string
	Schema   string // absolute URL, or "" for none
	RefCount int
}

// RuleInfo is the primary record held in the Rule Index. Box is a shared,
// non-owning pointer into the Box Index: it is set by registration and it
// is never copied across RuleInfo values. Unregistration releases the box's
// refcount but leaves the pointer on the removed RuleInfo.
type RuleInfo struct {
	Name     string
	External *bool // nil means the rule never matches
	Subject  string
	Type     string
	Object   string
	Info     string
	Action   string
	Service  string
	BoxName  string
	Box      *BoxInfo
}

// Key returns the rule's primary key within a tenant: name + "." + boxId,
// or just name when the rule is unlinked from a box.
func (r *RuleInfo) Key() string {
	if r.Box == nil {
		return r.Name
	}
	return r.Name + "." + r.Box.ID
}

// Closed set of recognized actions. No timer-only actions are defined: the
// dispatcher submits every matched action to the ActionExecutor, and none
// is routed to the TimerSink.
const (
	ActionExec       = "exec"
	ActionRelay      = "relay"
	ActionLog        = "log"
	ActionLogInfo    = "log.info"
	ActionLogWarn    = "log.warn"
	ActionLogError   = "log.error"
	ActionRelayEvent = "relay.event"
	ActionRelayData  = "relay.data"
)

// Event is the inbound event the matcher and dispatcher consult. The
// dispatcher assigns EventID on first sight and increments RuleChain as
// the event propagates through chained rule actions, so this is a
// pointer-receiver type throughout the package, not an immutable value.
type Event struct {
	CellID    string
	External  bool
	Type      string
	Subject   string
	Schema    string
	Object    string
	Info      string
	EventID   string
	RuleChain string // string-encoded nonnegative integer hop count
}

// ActionInfo is the immutable result of a single rule match: what to run,
// against what (post scheme-rewrite) service URL, carrying the event's
// identity and hop count forward.
type ActionInfo struct {
	Action    string
	Service   string
	EventID   string
	RuleChain string
}

// RuleDefinition is the wire/storage shape of a rule as read from the
// store or produced by the fixture tooling. It is the input to Register;
// RuleInfo is the index's internal, box-resolved form of it.
type RuleDefinition struct {
	Name     string
	External *bool
	Subject  string
	Type     string
	Object   string
	Info     string
	Action   string
	Service  string
	BoxName  string
}

// BoxDefinition is the wire shape of a box as read from the store.
type BoxDefinition struct {
	ID     string
	Name   string
	Schema string
}
