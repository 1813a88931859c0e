package application

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a unique attribute collides with an
	// existing resource.
	ErrAlreadyExists = errors.New("application: already exists")
)

// Rule codes identify which circulation rule rejected an operation. They are
// stable across releases; HTTP clients branch on them.
const (
	RuleMemberNotActive           = "MEMBER_NOT_ACTIVE"
	RuleMemberNotCheckedIn        = "MEMBER_NOT_CHECKED_IN"
	RuleUnpaidPenalties           = "UNPAID_PENALTIES"
	RuleCopyNotAvailable          = "COPY_NOT_AVAILABLE"
	RuleCopyNotBorrowable         = "COPY_NOT_BORROWABLE"
	RuleMaxLoansExceeded          = "MAX_LOANS_EXCEEDED"
	RuleLoanNotActive             = "LOAN_NOT_ACTIVE"
	RuleReservationNotCancellable = "RESERVATION_NOT_CANCELLABLE"
	RuleDuplicateReservation      = "DUPLICATE_RESERVATION"
	RulePenaltyNotPayable         = "PENALTY_NOT_PAYABLE"
	RuleCopyInCirculation         = "COPY_IN_CIRCULATION"
	RuleAlreadyCheckedIn          = "ALREADY_CHECKED_IN"
	RuleNotCheckedIn              = "NOT_CHECKED_IN"
)

// RuleViolationError reports that an operation was rejected by a circulation
// rule. Code is one of the Rule* constants; Message is safe to show users.
type RuleViolationError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (r *RuleViolationError) Error() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func ruleViolation(code, format string, args ...any) *RuleViolationError {
	return &RuleViolationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
