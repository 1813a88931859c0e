package persistence

import (
	"context"
	"time"

	"github.com/example/library-circulation/internal/circulation"
)

// MemberRepository exposes CRUD operations for members.
type MemberRepository interface {
	CreateMember(ctx context.Context, member Member) error
	UpdateMember(ctx context.Context, member Member) error
	GetMember(ctx context.Context, id string) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	DeleteMember(ctx context.Context, id string) error
}

// BookRepository exposes CRUD operations for catalog titles and their copies.
type BookRepository interface {
	CreateBook(ctx context.Context, book Book) error
	UpdateBook(ctx context.Context, book Book) error
	GetBook(ctx context.Context, id string) (Book, error)
	ListBooks(ctx context.Context) ([]Book, error)
	DeleteBook(ctx context.Context, id string) error

	CreateCopy(ctx context.Context, copy BookCopy) error
	UpdateCopy(ctx context.Context, copy BookCopy) error
	GetCopy(ctx context.Context, id string) (BookCopy, error)
	GetCopyByBarcode(ctx context.Context, barcode string) (BookCopy, error)
	ListCopiesForBook(ctx context.Context, bookID string) ([]BookCopy, error)
}

// VisitRepository stores check-in / check-out records.
type VisitRepository interface {
	CreateVisit(ctx context.Context, visit Visit) error
	GetOpenVisit(ctx context.Context, memberID string) (Visit, error)
	CloseVisit(ctx context.Context, visitID string, checkedOutAt time.Time) (Visit, error)
	ListVisitsForMember(ctx context.Context, memberID string) ([]Visit, error)
}

// LoanRepository exposes read access to loans outside the workflow
// transactions.
type LoanRepository interface {
	GetLoan(ctx context.Context, id string) (Loan, error)
	ListLoansForMember(ctx context.Context, memberID string) ([]Loan, error)
}

// PenaltyRepository exposes read access to penalties outside the workflow
// transactions.
type PenaltyRepository interface {
	GetPenalty(ctx context.Context, id string) (Penalty, error)
	ListPenaltiesForMember(ctx context.Context, memberID string) ([]Penalty, error)
	SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error)
}

// ReservationRepository exposes read access to reservations outside the
// workflow transactions.
type ReservationRepository interface {
	GetReservation(ctx context.Context, id string) (Reservation, error)
	ListReservationsForBook(ctx context.Context, bookID string) ([]Reservation, error)
	ListExpiredHolds(ctx context.Context, reference time.Time) ([]Reservation, error)
}

// CirculationTx is the view of the store available inside one circulation
// transaction. Every read observes the transaction's snapshot; every write is
// committed or rolled back together with the rest of the workflow.
type CirculationTx interface {
	GetMember(ctx context.Context, id string) (Member, error)
	GetBook(ctx context.Context, id string) (Book, error)

	GetCopy(ctx context.Context, id string) (BookCopy, error)
	UpdateCopyStatus(ctx context.Context, copyID string, status circulation.CopyStatus) error

	HasOpenVisit(ctx context.Context, memberID string) (bool, error)

	CreateLoan(ctx context.Context, loan Loan) error
	GetLoan(ctx context.Context, id string) (Loan, error)
	UpdateLoan(ctx context.Context, loan Loan) error
	CountActiveLoans(ctx context.Context, memberID string) (int, error)

	CreatePenalty(ctx context.Context, penalty Penalty) error
	GetPenalty(ctx context.Context, id string) (Penalty, error)
	GetPenaltyForLoan(ctx context.Context, loanID string) (Penalty, error)
	UpdatePenalty(ctx context.Context, penalty Penalty) error
	SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error)

	CreateReservation(ctx context.Context, reservation Reservation) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	UpdateReservation(ctx context.Context, reservation Reservation) error
	ReadyReservationForCopy(ctx context.Context, copyID string) (Reservation, error)
	WaitingReservations(ctx context.Context, bookID string) ([]Reservation, error)

	// NextQueuePosition advances the per-book position counter and returns
	// the allocated position. Positions are assigned once and never reused.
	NextQueuePosition(ctx context.Context, bookID string) (int, error)
}

// CirculationStore runs circulation workflows as single all-or-nothing
// transactions. If fn returns an error every write made through the
// transaction is rolled back.
type CirculationStore interface {
	WithinTx(ctx context.Context, fn func(tx CirculationTx) error) error
}
