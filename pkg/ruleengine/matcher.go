package ruleengine

import "strings"

// Match decides whether event triggers rule. All listed conditions must
// hold; comparisons are case-sensitive throughout. A rule with
// External == nil never matches regardless of anything else.
func Match(rule *RuleInfo, event *Event) bool {
	if rule.External == nil || *rule.External != event.External {
		return false
	}

	if rule.Type != "" && !strings.HasPrefix(event.Type, rule.Type) {
		return false
	}

	if rule.Box != nil && rule.Box.Schema != "" && rule.Box.Schema != event.Schema {
		return false
	}

	if rule.Subject != "" && rule.Subject != event.Subject {
		return false
	}

	if rule.Object != "" {
		boxName := ""
		if rule.Box != nil {
			boxName = rule.Box.Name
		}
		rewritten := LocalBoxToLocalCell(rule.Object, boxName)
		if !strings.HasPrefix(event.Object, rewritten) {
			return false
		}
	}

	if rule.Info != "" && !strings.HasPrefix(event.Info, rule.Info) {
		return false
	}

	return true
}
