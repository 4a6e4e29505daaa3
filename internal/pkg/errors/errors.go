package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ConfigurationMissingError means a required prompt template or model config is
// absent. There are intentionally no built-in fallback values; the error names
// the exact missing fields so an operator can fix the active prompt config.
type ConfigurationMissingError struct {
	Scope  string
	Fields []string
}

func (e *ConfigurationMissingError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("configuration missing for %s", e.Scope)
	}
	return fmt.Sprintf("configuration missing for %s: %s", e.Scope, strings.Join(e.Fields, ", "))
}

// ModelInvocationError wraps a failed or timed-out model call. Timeout is kept
// distinguishable so callers can decide between retry and operator escalation.
type ModelInvocationError struct {
	Stage   string
	Timeout bool
	Err     error
}

func (e *ModelInvocationError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("model call timed out (stage %s): %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("model call failed (stage %s): %v", e.Stage, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// StagePreconditionError means a stage was invoked before all stages ordered
// strictly ahead of it had recorded output.
type StagePreconditionError struct {
	Stage   string
	Missing []string
}

func (e *StagePreconditionError) Error() string {
	return fmt.Sprintf("stage %s cannot run: missing output for %s", e.Stage, strings.Join(e.Missing, ", "))
}

// StageNotFoundError means no raw output is recorded for the requested stage.
type StageNotFoundError struct {
	Stage string
}

func (e *StageNotFoundError) Error() string {
	return fmt.Sprintf("no recorded output for stage %s", e.Stage)
}

// TextNotFoundError is the per-item failure of a rollback or direct apply: the
// target text could not be located in the latest snapshot, exactly or fuzzily.
// Hint optionally names a later stage whose edits likely overwrote the target.
type TextNotFoundError struct {
	Stage       string
	ChangeIndex int
	Hint        string
}

func (e *TextNotFoundError) Error() string {
	msg := fmt.Sprintf("text for change %d of stage %s not found in latest version", e.ChangeIndex, e.Stage)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

// VersionConflictError is raised when two appends race for the same snapshot
// version number. The loser must re-read latest and retry, never overwrite.
type VersionConflictError struct {
	ReportID string
	Version  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("snapshot version %d for report %s already claimed", e.Version, e.ReportID)
}

func IsConfigurationMissing(err error) bool {
	var target *ConfigurationMissingError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *ModelInvocationError
	return errors.As(err, &target) && target.Timeout
}

func IsVersionConflict(err error) bool {
	var target *VersionConflictError
	return errors.As(err, &target)
}
