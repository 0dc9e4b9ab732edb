package engine

import (
	"errors"
	"fmt"
)

// Error represents a rejected engine transition.
//
// Rejections include:
//   - Fail lock: the user failed today, nothing else is allowed until tomorrow
//   - Already completed: today's check-in already happened
//   - Invalid way/unit: input outside the closed domain
//   - Unit locked: the unit has not been unlocked in this journey
//
// A rejected transition never mutates the record.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Day is the current day when the transition was attempted (0 if n/a).
	Day int

	// Unit is the unit the transition targeted (0 if n/a).
	Unit int
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeFailLocked indicates today is locked by an explicit fail.
	ErrCodeFailLocked ErrorCode = "FAIL_LOCKED"

	// ErrCodeAlreadyCompleted indicates today's day is already completed.
	ErrCodeAlreadyCompleted ErrorCode = "ALREADY_COMPLETED"

	// ErrCodeInvalidWay indicates a way outside {30, 60, 90}.
	ErrCodeInvalidWay ErrorCode = "INVALID_WAY"

	// ErrCodeInvalidUnit indicates a unit outside 1..90.
	ErrCodeInvalidUnit ErrorCode = "INVALID_UNIT"

	// ErrCodeUnitLocked indicates a unit that is neither unlocked nor owned
	// by today's pending day.
	ErrCodeUnitLocked ErrorCode = "UNIT_LOCKED"

	// ErrCodeEmptyLabel indicates a label that is empty after trimming.
	ErrCodeEmptyLabel ErrorCode = "EMPTY_LABEL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Unit != 0 && e.Day != 0:
		return fmt.Sprintf("%s: %s (day=%d, unit=%d)", e.Code, e.Message, e.Day, e.Unit)
	case e.Unit != 0:
		return fmt.Sprintf("%s: %s (unit=%d)", e.Code, e.Message, e.Unit)
	case e.Day != 0:
		return fmt.Sprintf("%s: %s (day=%d)", e.Code, e.Message, e.Day)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is an engine Error with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsFailLocked returns true if the error is a fail-lock rejection.
func IsFailLocked(err error) bool {
	return IsCode(err, ErrCodeFailLocked)
}

// IsAlreadyCompleted returns true if today was already checked in.
func IsAlreadyCompleted(err error) bool {
	return IsCode(err, ErrCodeAlreadyCompleted)
}

// NewFailLockedError creates an Error for an action attempted on a fail day.
func NewFailLockedError(action string) *Error {
	return &Error{
		Code:    ErrCodeFailLocked,
		Message: fmt.Sprintf("%s not allowed after failing today", action),
	}
}

// NewAlreadyCompletedError creates an Error for a repeated check-in.
func NewAlreadyCompletedError(day int) *Error {
	return &Error{
		Code:    ErrCodeAlreadyCompleted,
		Message: "already checked in today",
		Day:     day,
	}
}

// NewInvalidWayError creates an Error for a rejected way value.
func NewInvalidWayError(way int) *Error {
	return &Error{
		Code:    ErrCodeInvalidWay,
		Message: fmt.Sprintf("way %d must be one of 30, 60, 90", way),
	}
}

// NewInvalidUnitError creates an Error for a unit outside the progress space.
func NewInvalidUnitError(unit int) *Error {
	return &Error{
		Code:    ErrCodeInvalidUnit,
		Message: "unit must be between 1 and 90",
		Unit:    unit,
	}
}

// NewUnitLockedError creates an Error for toggling a locked unit.
func NewUnitLockedError(day, unit int) *Error {
	return &Error{
		Code:    ErrCodeUnitLocked,
		Message: "unit is not unlocked yet",
		Day:     day,
		Unit:    unit,
	}
}

// NewEmptyLabelError creates an Error for a blank label.
func NewEmptyLabelError() *Error {
	return &Error{
		Code:    ErrCodeEmptyLabel,
		Message: "label cannot be empty",
	}
}
