package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBusy is returned when an action is submitted while another is still
// being processed.
var ErrBusy = errors.New("engine: another action is in progress")

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DurationError reports a window that lasts zero minutes after the
// overnight wrap is applied.
type DurationError struct {
	StartTime string
	EndTime   string
}

func (e *DurationError) Error() string {
	return fmt.Sprintf("schedule must last longer than zero minutes (start %s, end %s)", e.StartTime, e.EndTime)
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schedule %q not found", e.ID)
}

// TimeRange is one side of a detected overlap.
type TimeRange struct {
	Date  string `json:"date"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%s %s-%s", r.Date, r.Start, r.End)
}

// OverlapConflictError names the existing schedule a mutation collides
// with, the date of the collision and both time ranges.
type OverlapConflictError struct {
	ScheduleID   string    `json:"schedule_id"`
	ScheduleName string    `json:"schedule_name"`
	Date         string    `json:"date"`
	Candidate    TimeRange `json:"candidate"`
	Existing     TimeRange `json:"existing"`
}

func (e *OverlapConflictError) Error() string {
	return fmt.Sprintf("overlaps with %q on %s (%s conflicts with %s)",
		e.ScheduleName, e.Date, e.Candidate, e.Existing)
}

// ProtectedEntityError is returned for operations the default schedule
// does not allow.
type ProtectedEntityError struct {
	ID string
	Op Action
}

func (e *ProtectedEntityError) Error() string {
	return fmt.Sprintf("schedule %q is protected: %s not allowed", e.ID, e.Op)
}

// PersistenceError wraps a store failure. The in-memory set is unchanged
// when it is returned, so the action can be retried.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ItemError ties an import failure to the position of the schedule in the
// submitted batch.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("schedule %d: %v", e.Index, e.Err)
}

// BatchError collects every rejected schedule of an import.
type BatchError struct {
	Items []ItemError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, it.Error())
	}
	return fmt.Sprintf("import rejected %d schedule(s): %s", len(e.Items), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, it.Err)
	}
	return out
}
