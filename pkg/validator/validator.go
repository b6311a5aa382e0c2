// Package validator checks rule definitions read from storage before they
// reach the index, using struct tags so the constraints stay declarative
// as fields are added.
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// closed set of actions RegisterDefinition and the action pool understand.
var validActions = map[string]bool{
	"exec": true, "relay": true, "relay.event": true, "relay.data": true,
	"log": true, "log.info": true, "log.warn": true, "log.error": true,
}

// RuleDefinition mirrors ruleengine.RuleDefinition's shape for validation
// purposes, so this package has no dependency on ruleengine and can be
// imported by it without a cycle.
type RuleDefinition struct {
	Name    string `validate:"required"`
	Action  string `validate:"required"`
	Service string `validate:"omitempty,url"`
}

// ValidateRuleDefinition checks def against the required-field and
// well-formedness rules a definition must satisfy before it can be
// registered: a name, a recognized action, and a well-formed service URL
// when one is present. Service is not required for exec/relay actions at
// registration time: an empty service is instead rejected when the
// action pool tries to post it.
func ValidateRuleDefinition(def RuleDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("invalid rule definition %q: %w", def.Name, err)
	}
	if !validActions[def.Action] {
		return fmt.Errorf("invalid rule definition %q: unrecognized action %q", def.Name, def.Action)
	}
	return nil
}
