package ruleengine

import "context"

// RuleStore is the persistent producer of cell/box/rule records. The
// loader and subscriber read through it; nothing in this package assumes
// a particular backing store.
type RuleStore interface {
	ListCells(ctx context.Context) ([]string, error)
	ListRules(ctx context.Context, cellID string) ([]RuleDefinition, error)
	ReadRule(ctx context.Context, cellID, compoundKey string) (*RuleDefinition, error)
	FindBoxByName(ctx context.Context, cellID, name string) (*BoxDefinition, error)
}

// Broker is the outbound/inbound control-plane channel. Publish carries a
// data-plane event out for control-plane consumers; SubscribeLoop runs
// until ctx is cancelled, invoking handler for every event it receives,
// control-plane and data-plane alike.
type Broker interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
	SubscribeLoop(ctx context.Context, handler func(*Event) bool) error
}

// CellStatus mirrors the lock manager's coarse cell state.
type CellStatus int

const (
	CellStatusNormal CellStatus = iota
	CellStatusBulkDeletion
)

// CellLockManager tracks per-cell write activity so judge and the
// subscriber can decline work against a cell mid bulk-delete, and so
// concurrent callers can hold a reference-counted claim on a cell.
type CellLockManager interface {
	Status(cellID string) CellStatus
	IncRef(cellID string) int
	DecRef(cellID string) int
}

// ActionExecutor submits an ActionInfo for asynchronous execution. It
// never blocks: a full queue must return an error rather than waiting.
type ActionExecutor interface {
	Submit(action ActionInfo) error
}

// TimerSink is the pluggable periodic/oneshot timer manager. A Manager has
// one only when it is given one with WithTimerSink; the timer thread count
// setting does not create or enable one.
type TimerSink interface {
	Register(name, subject, typ, object, info, cellID, boxID string) error
	Unregister(name, cellID, boxID string) error
	GetTimerList(cellID string) (string, error)
	Shutdown(ctx context.Context) error
}
