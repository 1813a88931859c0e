package persistence

import (
	"time"

	"github.com/example/library-circulation/internal/circulation"
)

// MemberStatus tracks the standing of a library member. Membership is owned
// by the registration module; the circulation engine only reads it.
type MemberStatus string

const (
	MemberActive    MemberStatus = "ACTIVE"
	MemberSuspended MemberStatus = "SUSPENDED"
	MemberExpired   MemberStatus = "EXPIRED"
)

// Valid reports whether the member status is one of the known values.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberActive, MemberSuspended, MemberExpired:
		return true
	}
	return false
}

// Member represents a registered library member.
type Member struct {
	ID             string
	Name           string
	Email          string
	PINHash        string
	Status         MemberStatus
	MaxActiveLoans int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Book represents a catalog title. Physical instances are BookCopy rows.
type Book struct {
	ID        string
	Title     string
	Author    string
	ISBN      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookCopy represents one physical, barcoded instance of a book. The catalog
// owns every field except Status, which the circulation workflows mutate.
type BookCopy struct {
	ID        string
	BookID    string
	Barcode   string
	UsageType circulation.UsageType
	Status    circulation.CopyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Loan links a member to a borrowed copy. Created only by the borrow
// workflow, closed only by the return workflow, immutable once RETURNED.
type Loan struct {
	ID         string
	MemberID   string
	CopyID     string
	BorrowedAt time.Time
	DueDate    time.Time
	ReturnedAt *time.Time
	Status     circulation.LoanStatus
}

// Reservation is a member's claim on the next available copy of a book.
// CopyID is set while the reservation is READY_FOR_PICKUP and retained as
// history once FULFILLED.
type Reservation struct {
	ID            string
	MemberID      string
	BookID        string
	CopyID        *string
	Status        circulation.ReservationStatus
	QueuePosition int
	NotifiedAt    *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Penalty is the monetary charge for one late-returned loan. At most one
// penalty exists per loan.
type Penalty struct {
	ID          string
	MemberID    string
	LoanID      string
	Amount      circulation.Cents
	DaysOverdue int
	Status      circulation.PenaltyStatus
	PaidAt      *time.Time
	CreatedAt   time.Time
}

// Visit records a member's physical presence in the library. A visit with a
// nil CheckedOutAt is open; borrowing requires an open visit.
type Visit struct {
	ID           string
	MemberID     string
	CheckedInAt  time.Time
	CheckedOutAt *time.Time
}
