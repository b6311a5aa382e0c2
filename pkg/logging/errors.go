// cellrules/pkg/logging/errors.go

package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ErrorType classifies engine errors: which of these is which decides
// whether the caller skips the item, fails the operation, or no-ops. No
// error type leads to a retry.
type ErrorType string

const (
	// ErrorTypeInvalidInput covers a nil event, missing cell id, or an
	// unknown cell, which are silent no-ops, and a rule definition that
	// fails validation, which RegisterDefinition returns as this error.
	ErrorTypeInvalidInput ErrorType = "INVALID_INPUT"
	// ErrorTypeTransientStore covers a read failure while registering a
	// rule: log, leave the index unchanged for the affected key.
	ErrorTypeTransientStore ErrorType = "TRANSIENT_STORE"
	// ErrorTypeMalformedKey covers a key codec parse failure: log, treat
	// as skip.
	ErrorTypeMalformedKey ErrorType = "MALFORMED_KEY"
	// ErrorTypeBoxResolution covers a rule referencing a box that does not
	// exist: registration fails, or dispatch skips the one action.
	ErrorTypeBoxResolution ErrorType = "BOX_RESOLUTION"
	// ErrorTypeShutdownInterrupted covers an interrupted graceful
	// shutdown wait, forcing immediate pool termination.
	ErrorTypeShutdownInterrupted ErrorType = "SHUTDOWN_INTERRUPTED"
)

// RuleEngineError is the engine's single structured error type, carrying
// enough context (Fields) that a log line stands on its own without
// string concatenation.
type RuleEngineError struct {
	Type    ErrorType
	Message string
	Err     error
	Fields  map[string]interface{}
}

func (e *RuleEngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *RuleEngineError) Unwrap() error {
	return e.Err
}

// NewError builds a RuleEngineError. fields may be nil.
func NewError(errType ErrorType, message string, err error, fields map[string]interface{}) *RuleEngineError {
	return &RuleEngineError{
		Type:    errType,
		Message: message,
		Err:     err,
		Fields:  fields,
	}
}

// LogError logs err at Error level, unpacking a *RuleEngineError's fields
// as structured attributes. Any other error is logged plainly.
func LogError(logger zerolog.Logger, err error) {
	engineErr, ok := err.(*RuleEngineError)
	if !ok {
		logger.Error().Err(err).Msg(err.Error())
		return
	}

	event := logger.Error().Err(engineErr.Err).
		Str("error_type", string(engineErr.Type)).
		Str("message", engineErr.Message)

	for k, v := range engineErr.Fields {
		event = event.Interface(k, v)
	}

	event.Msg(engineErr.Message)
}
