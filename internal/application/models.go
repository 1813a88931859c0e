package application

import (
	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// CirculationPolicy carries the operator-tunable circulation parameters.
// Values come from config at wiring time.
type CirculationPolicy struct {
	LoanDurationDays         int
	DailyPenaltyFee          circulation.Cents
	PenaltyBlockingThreshold circulation.Cents
	PickupWindowDays         int
}

// BorrowParams identifies the member and the physical copy for a borrow.
type BorrowParams struct {
	MemberID string
	CopyID   string
}

// LoanSummary reports the outcome of a borrow. FulfilledReservation is set
// when the borrow claimed a copy held for the member's reservation.
type LoanSummary struct {
	Loan                 persistence.Loan
	FulfilledReservation *persistence.Reservation
}

// ReturnSummary reports the outcome of a return: whether the loan came back
// late, the penalty created for it, and the reservation promoted to the
// freed copy, if any.
type ReturnSummary struct {
	Loan                persistence.Loan
	Overdue             bool
	DaysOverdue         int
	Penalty             *persistence.Penalty
	PromotedReservation *persistence.Reservation
}

// ReserveParams identifies the member and the title for a reservation.
type ReserveParams struct {
	MemberID string
	BookID   string
}

// PenaltyStatement lists a member's penalties together with the outstanding
// total that the borrow workflow checks against the blocking threshold.
type PenaltyStatement struct {
	Penalties   []persistence.Penalty
	UnpaidTotal circulation.Cents
}

// RegisterMemberParams carries the input for member registration. The PIN is
// hashed before it reaches storage.
type RegisterMemberParams struct {
	Name  string
	Email string
	PIN   string
}

// UpdateMemberParams carries the mutable member attributes.
type UpdateMemberParams struct {
	MemberID       string
	Name           string
	Status         persistence.MemberStatus
	MaxActiveLoans int
}

// BookInput carries the catalog attributes of a title.
type BookInput struct {
	Title  string
	Author string
	ISBN   string
}

// CopyInput carries the catalog attributes of a physical copy.
type CopyInput struct {
	Barcode   string
	UsageType circulation.UsageType
}
