package circulation

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a status change is not permitted by
// the circulation state machine.
var ErrInvalidTransition = errors.New("circulation: invalid status transition")

// UsageType describes how a physical copy may be used.
type UsageType string

const (
	UsageBorrowable      UsageType = "BORROWABLE"
	UsageReadingRoomOnly UsageType = "READING_ROOM_ONLY"
	UsageBoth            UsageType = "BOTH"
)

// Valid reports whether the usage type is one of the known values.
func (u UsageType) Valid() bool {
	switch u {
	case UsageBorrowable, UsageReadingRoomOnly, UsageBoth:
		return true
	}
	return false
}

// Borrowable reports whether a copy with this usage type may ever leave the
// library. READING_ROOM_ONLY copies are never borrowable regardless of status.
func (u UsageType) Borrowable() bool {
	return u == UsageBorrowable || u == UsageBoth
}

// CopyStatus tracks the physical state of a book copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyLoaned    CopyStatus = "LOANED"
	CopyOnHold    CopyStatus = "ON_HOLD"
	CopyDamaged   CopyStatus = "DAMAGED"
	CopyLost      CopyStatus = "LOST"
)

// Valid reports whether the copy status is one of the known values.
func (s CopyStatus) Valid() bool {
	switch s {
	case CopyAvailable, CopyLoaned, CopyOnHold, CopyDamaged, CopyLost:
		return true
	}
	return false
}

// Lend transitions a copy to LOANED. Only AVAILABLE copies and copies held
// for the borrower (ON_HOLD) can be lent; the caller is responsible for
// verifying that an ON_HOLD copy is claimed by the rightful member.
func (s CopyStatus) Lend() (CopyStatus, error) {
	switch s {
	case CopyAvailable, CopyOnHold:
		return CopyLoaned, nil
	}
	return s, fmt.Errorf("%w: cannot lend copy in status %s", ErrInvalidTransition, s)
}

// Release transitions a copy back to AVAILABLE when a loan closes or a hold
// is released.
func (s CopyStatus) Release() (CopyStatus, error) {
	switch s {
	case CopyLoaned, CopyOnHold:
		return CopyAvailable, nil
	}
	return s, fmt.Errorf("%w: cannot release copy in status %s", ErrInvalidTransition, s)
}

// Hold transitions a copy to ON_HOLD for a promoted reservation. The freed
// copy passes through AVAILABLE inside the return transaction, so the hold is
// taken from AVAILABLE only.
func (s CopyStatus) Hold() (CopyStatus, error) {
	if s != CopyAvailable {
		return s, fmt.Errorf("%w: cannot hold copy in status %s", ErrInvalidTransition, s)
	}
	return CopyOnHold, nil
}

// Retire transitions a copy to DAMAGED or LOST. Copies that are out on loan
// or held for a pickup keep circulating state and cannot be retired directly.
func (s CopyStatus) Retire(to CopyStatus) (CopyStatus, error) {
	if to != CopyDamaged && to != CopyLost {
		return s, fmt.Errorf("%w: %s is not a retirement status", ErrInvalidTransition, to)
	}
	if s == CopyLoaned || s == CopyOnHold {
		return s, fmt.Errorf("%w: cannot retire copy in status %s", ErrInvalidTransition, s)
	}
	return to, nil
}

// LoanStatus tracks the lifecycle of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanReturned LoanStatus = "RETURNED"
	// LoanOverdue is reserved. No workflow ever stores it: overdue is always
	// the derived predicate Overdue(status, dueDate, now).
	LoanOverdue LoanStatus = "OVERDUE"
)

// Close transitions an ACTIVE loan to RETURNED. A loan is immutable once
// returned.
func (s LoanStatus) Close() (LoanStatus, error) {
	if s != LoanActive {
		return s, fmt.Errorf("%w: loan is not active (status %s)", ErrInvalidTransition, s)
	}
	return LoanReturned, nil
}

// ReservationStatus tracks the lifecycle of a reservation in a book's queue.
type ReservationStatus string

const (
	ReservationWaiting        ReservationStatus = "WAITING"
	ReservationReadyForPickup ReservationStatus = "READY_FOR_PICKUP"
	ReservationFulfilled      ReservationStatus = "FULFILLED"
	ReservationExpired        ReservationStatus = "EXPIRED"
	ReservationCancelled      ReservationStatus = "CANCELLED"
)

// MakeReady transitions a WAITING reservation to READY_FOR_PICKUP when a
// copy is assigned to it.
func (s ReservationStatus) MakeReady() (ReservationStatus, error) {
	if s != ReservationWaiting {
		return s, fmt.Errorf("%w: cannot promote reservation in status %s", ErrInvalidTransition, s)
	}
	return ReservationReadyForPickup, nil
}

// Fulfill transitions a READY_FOR_PICKUP reservation to FULFILLED when its
// held copy is borrowed by the rightful member.
func (s ReservationStatus) Fulfill() (ReservationStatus, error) {
	if s != ReservationReadyForPickup {
		return s, fmt.Errorf("%w: cannot fulfill reservation in status %s", ErrInvalidTransition, s)
	}
	return ReservationFulfilled, nil
}

// Cancel transitions a reservation to CANCELLED. Only WAITING and
// READY_FOR_PICKUP reservations can be cancelled.
func (s ReservationStatus) Cancel() (ReservationStatus, error) {
	switch s {
	case ReservationWaiting, ReservationReadyForPickup:
		return ReservationCancelled, nil
	}
	return s, fmt.Errorf("%w: cannot cancel reservation in status %s", ErrInvalidTransition, s)
}

// Expire transitions a READY_FOR_PICKUP reservation to EXPIRED. The engine
// only exposes the expiry query; external schedulers drive this transition.
func (s ReservationStatus) Expire() (ReservationStatus, error) {
	if s != ReservationReadyForPickup {
		return s, fmt.Errorf("%w: cannot expire reservation in status %s", ErrInvalidTransition, s)
	}
	return ReservationExpired, nil
}

// PenaltyStatus tracks the payment state of an overdue penalty.
type PenaltyStatus string

const (
	PenaltyUnpaid PenaltyStatus = "UNPAID"
	PenaltyPaid   PenaltyStatus = "PAID"
	PenaltyWaived PenaltyStatus = "WAIVED"
)

// Pay transitions an UNPAID penalty to PAID. There is no partial payment and
// no refund path.
func (s PenaltyStatus) Pay() (PenaltyStatus, error) {
	switch s {
	case PenaltyUnpaid:
		return PenaltyPaid, nil
	case PenaltyPaid:
		return s, fmt.Errorf("%w: penalty already paid", ErrInvalidTransition)
	case PenaltyWaived:
		return s, fmt.Errorf("%w: penalty already waived", ErrInvalidTransition)
	}
	return s, fmt.Errorf("%w: unknown penalty status %s", ErrInvalidTransition, s)
}

// Waive transitions an UNPAID penalty to WAIVED.
func (s PenaltyStatus) Waive() (PenaltyStatus, error) {
	if s != PenaltyUnpaid {
		return s, fmt.Errorf("%w: cannot waive penalty in status %s", ErrInvalidTransition, s)
	}
	return PenaltyWaived, nil
}
