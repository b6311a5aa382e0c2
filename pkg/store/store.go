// Package store adapts the engine's RuleStore/Broker contracts to a real
// backing service. RedisStore is the one concrete implementation shipped
// here; the engine itself only ever depends on the ruleengine.RuleStore
// and ruleengine.Broker interfaces.
package store

import "errors"

// ErrBoxNotFound is returned by FindBoxByName when no box with the given
// name exists in the cell. Distinct from a transient read failure.
var ErrBoxNotFound = errors.New("box not found")

// ErrRuleNotFound is returned by ReadRule when the compound key does not
// resolve to a stored rule.
var ErrRuleNotFound = errors.New("rule not found")
