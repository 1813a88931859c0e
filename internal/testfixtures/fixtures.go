package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

var (
	memberCounter      uint64
	bookCounter        uint64
	copyCounter        uint64
	loanCounter        uint64
	reservationCounter uint64
	penaltyCounter     uint64
	visitCounter       uint64
)

var referenceTime = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ---------------------------- Member fixtures ----------------------------

// MemberFixture represents a deterministic member record.
type MemberFixture struct {
	ID             string
	Name           string
	Email          string
	PINHash        string
	Status         persistence.MemberStatus
	MaxActiveLoans int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MemberOption configures the generated member fixture.
type MemberOption func(*MemberFixture)

// NewMemberFixture returns a deterministic member fixture with optional
// overrides. Members start ACTIVE with a five loan allowance.
func NewMemberFixture(opts ...MemberOption) MemberFixture {
	idx := atomic.AddUint64(&memberCounter, 1)
	id := fmt.Sprintf("member-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := MemberFixture{
		ID:             id,
		Name:           fmt.Sprintf("Member %03d", idx),
		Email:          fmt.Sprintf("%s@example.com", id),
		PINHash:        fmt.Sprintf("pin-hash-%03d", idx),
		Status:         persistence.MemberActive,
		MaxActiveLoans: 5,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMemberID overrides the generated member ID.
func WithMemberID(id string) MemberOption {
	return func(f *MemberFixture) {
		f.ID = id
	}
}

// WithMemberName overrides the generated name.
func WithMemberName(name string) MemberOption {
	return func(f *MemberFixture) {
		f.Name = name
	}
}

// WithMemberEmail overrides the generated email address.
func WithMemberEmail(email string) MemberOption {
	return func(f *MemberFixture) {
		f.Email = email
	}
}

// WithMemberPINHash overrides the generated PIN hash.
func WithMemberPINHash(hash string) MemberOption {
	return func(f *MemberFixture) {
		f.PINHash = hash
	}
}

// WithMemberStatus sets the member standing.
func WithMemberStatus(status persistence.MemberStatus) MemberOption {
	return func(f *MemberFixture) {
		f.Status = status
	}
}

// WithMemberMaxActiveLoans sets the concurrent loan allowance.
func WithMemberMaxActiveLoans(limit int) MemberOption {
	return func(f *MemberFixture) {
		f.MaxActiveLoans = limit
	}
}

// WithMemberTimestamps sets both created and updated timestamps.
func WithMemberTimestamps(created, updated time.Time) MemberOption {
	return func(f *MemberFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Member value.
func (f MemberFixture) Persistence() persistence.Member {
	return persistence.Member{
		ID:             f.ID,
		Name:           f.Name,
		Email:          f.Email,
		PINHash:        f.PINHash,
		Status:         f.Status,
		MaxActiveLoans: f.MaxActiveLoans,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// ----------------------------- Book fixtures -----------------------------

// BookFixture represents a deterministic catalog title.
type BookFixture struct {
	ID        string
	Title     string
	Author    string
	ISBN      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookOption configures the generated book fixture.
type BookOption func(*BookFixture)

// NewBookFixture returns a deterministic book fixture with optional overrides.
func NewBookFixture(opts ...BookOption) BookFixture {
	idx := atomic.AddUint64(&bookCounter, 1)
	id := fmt.Sprintf("book-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := BookFixture{
		ID:        id,
		Title:     fmt.Sprintf("Title %03d", idx),
		Author:    fmt.Sprintf("Author %03d", idx),
		ISBN:      fmt.Sprintf("978-0-000-%05d-0", idx),
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookID overrides the generated book ID.
func WithBookID(id string) BookOption {
	return func(f *BookFixture) {
		f.ID = id
	}
}

// WithBookTitle overrides the generated title.
func WithBookTitle(title string) BookOption {
	return func(f *BookFixture) {
		f.Title = title
	}
}

// WithBookAuthor overrides the generated author.
func WithBookAuthor(author string) BookOption {
	return func(f *BookFixture) {
		f.Author = author
	}
}

// WithBookISBN overrides the generated ISBN.
func WithBookISBN(isbn string) BookOption {
	return func(f *BookFixture) {
		f.ISBN = isbn
	}
}

// Persistence returns the fixture as a persistence.Book value.
func (f BookFixture) Persistence() persistence.Book {
	return persistence.Book{
		ID:        f.ID,
		Title:     f.Title,
		Author:    f.Author,
		ISBN:      f.ISBN,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ----------------------------- Copy fixtures -----------------------------

// CopyFixture represents a deterministic physical copy of a book.
type CopyFixture struct {
	ID        string
	BookID    string
	Barcode   string
	UsageType circulation.UsageType
	Status    circulation.CopyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CopyOption configures the generated copy fixture.
type CopyOption func(*CopyFixture)

// NewCopyFixture returns a deterministic copy fixture with optional overrides.
// Copies start AVAILABLE and BORROWABLE.
func NewCopyFixture(opts ...CopyOption) CopyFixture {
	idx := atomic.AddUint64(&copyCounter, 1)
	id := fmt.Sprintf("copy-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := CopyFixture{
		ID:        id,
		BookID:    fmt.Sprintf("book-%03d", idx),
		Barcode:   fmt.Sprintf("BC-%06d", idx),
		UsageType: circulation.UsageBorrowable,
		Status:    circulation.CopyAvailable,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCopyID overrides the generated copy ID.
func WithCopyID(id string) CopyOption {
	return func(f *CopyFixture) {
		f.ID = id
	}
}

// WithCopyBookID sets the owning book.
func WithCopyBookID(bookID string) CopyOption {
	return func(f *CopyFixture) {
		f.BookID = bookID
	}
}

// WithCopyBarcode overrides the generated barcode.
func WithCopyBarcode(barcode string) CopyOption {
	return func(f *CopyFixture) {
		f.Barcode = barcode
	}
}

// WithCopyUsageType sets the usage type.
func WithCopyUsageType(usage circulation.UsageType) CopyOption {
	return func(f *CopyFixture) {
		f.UsageType = usage
	}
}

// WithCopyStatus sets the circulation status.
func WithCopyStatus(status circulation.CopyStatus) CopyOption {
	return func(f *CopyFixture) {
		f.Status = status
	}
}

// Persistence returns the fixture as a persistence.BookCopy value.
func (f CopyFixture) Persistence() persistence.BookCopy {
	return persistence.BookCopy{
		ID:        f.ID,
		BookID:    f.BookID,
		Barcode:   f.Barcode,
		UsageType: f.UsageType,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ----------------------------- Loan fixtures -----------------------------

// LoanFixture represents a deterministic loan record.
type LoanFixture struct {
	ID         string
	MemberID   string
	CopyID     string
	BorrowedAt time.Time
	DueDate    time.Time
	ReturnedAt *time.Time
	Status     circulation.LoanStatus
}

// LoanOption configures the generated loan fixture.
type LoanOption func(*LoanFixture)

// NewLoanFixture returns a deterministic ACTIVE loan fixture with a two week
// due date, matching the default loan duration.
func NewLoanFixture(opts ...LoanOption) LoanFixture {
	idx := atomic.AddUint64(&loanCounter, 1)
	id := fmt.Sprintf("loan-%03d", idx)
	borrowed := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := LoanFixture{
		ID:         id,
		MemberID:   fmt.Sprintf("member-%03d", idx),
		CopyID:     fmt.Sprintf("copy-%03d", idx),
		BorrowedAt: borrowed,
		DueDate:    borrowed.AddDate(0, 0, 14),
		Status:     circulation.LoanActive,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithLoanID overrides the generated loan ID.
func WithLoanID(id string) LoanOption {
	return func(f *LoanFixture) {
		f.ID = id
	}
}

// WithLoanMemberID sets the borrowing member.
func WithLoanMemberID(memberID string) LoanOption {
	return func(f *LoanFixture) {
		f.MemberID = memberID
	}
}

// WithLoanCopyID sets the borrowed copy.
func WithLoanCopyID(copyID string) LoanOption {
	return func(f *LoanFixture) {
		f.CopyID = copyID
	}
}

// WithLoanBorrowedAt sets the borrow timestamp.
func WithLoanBorrowedAt(t time.Time) LoanOption {
	return func(f *LoanFixture) {
		f.BorrowedAt = t
	}
}

// WithLoanDueDate sets the due date.
func WithLoanDueDate(t time.Time) LoanOption {
	return func(f *LoanFixture) {
		f.DueDate = t
	}
}

// WithLoanReturned closes the fixture at the provided time.
func WithLoanReturned(t time.Time) LoanOption {
	return func(f *LoanFixture) {
		returned := t
		f.ReturnedAt = &returned
		f.Status = circulation.LoanReturned
	}
}

// WithLoanStatus sets the loan status directly.
func WithLoanStatus(status circulation.LoanStatus) LoanOption {
	return func(f *LoanFixture) {
		f.Status = status
	}
}

// Persistence returns the fixture as a persistence.Loan value.
func (f LoanFixture) Persistence() persistence.Loan {
	return persistence.Loan{
		ID:         f.ID,
		MemberID:   f.MemberID,
		CopyID:     f.CopyID,
		BorrowedAt: f.BorrowedAt,
		DueDate:    f.DueDate,
		ReturnedAt: copyTimePtr(f.ReturnedAt),
		Status:     f.Status,
	}
}

// -------------------------- Reservation fixtures -------------------------

// ReservationFixture represents a deterministic reservation record.
type ReservationFixture struct {
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

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a deterministic WAITING reservation fixture
// at queue position one.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	id := fmt.Sprintf("reservation-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ReservationFixture{
		ID:            id,
		MemberID:      fmt.Sprintf("member-%03d", idx),
		BookID:        fmt.Sprintf("book-%03d", idx),
		Status:        circulation.ReservationWaiting,
		QueuePosition: 1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated reservation ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationMemberID sets the reserving member.
func WithReservationMemberID(memberID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.MemberID = memberID
	}
}

// WithReservationBookID sets the reserved book.
func WithReservationBookID(bookID string) ReservationOption {
	return func(f *ReservationFixture) {
		f.BookID = bookID
	}
}

// WithReservationQueuePosition sets the queue position.
func WithReservationQueuePosition(position int) ReservationOption {
	return func(f *ReservationFixture) {
		f.QueuePosition = position
	}
}

// WithReservationStatus sets the reservation status.
func WithReservationStatus(status circulation.ReservationStatus) ReservationOption {
	return func(f *ReservationFixture) {
		f.Status = status
	}
}

// WithReservationReady marks the fixture READY_FOR_PICKUP, holding the given
// copy with the supplied notification and expiry timestamps.
func WithReservationReady(copyID string, notifiedAt, expiresAt time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		id := copyID
		notified := notifiedAt
		expires := expiresAt
		f.Status = circulation.ReservationReadyForPickup
		f.CopyID = &id
		f.NotifiedAt = &notified
		f.ExpiresAt = &expires
	}
}

// Persistence returns the fixture as a persistence.Reservation value.
func (f ReservationFixture) Persistence() persistence.Reservation {
	return persistence.Reservation{
		ID:            f.ID,
		MemberID:      f.MemberID,
		BookID:        f.BookID,
		CopyID:        copyStringPtr(f.CopyID),
		Status:        f.Status,
		QueuePosition: f.QueuePosition,
		NotifiedAt:    copyTimePtr(f.NotifiedAt),
		ExpiresAt:     copyTimePtr(f.ExpiresAt),
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

// ---------------------------- Penalty fixtures ---------------------------

// PenaltyFixture represents a deterministic penalty record.
type PenaltyFixture struct {
	ID          string
	MemberID    string
	LoanID      string
	Amount      circulation.Cents
	DaysOverdue int
	Status      circulation.PenaltyStatus
	PaidAt      *time.Time
	CreatedAt   time.Time
}

// PenaltyOption configures the generated penalty fixture.
type PenaltyOption func(*PenaltyFixture)

// NewPenaltyFixture returns a deterministic UNPAID penalty fixture of three
// days at the default daily fee.
func NewPenaltyFixture(opts ...PenaltyOption) PenaltyFixture {
	idx := atomic.AddUint64(&penaltyCounter, 1)
	id := fmt.Sprintf("penalty-%03d", idx)
	fixture := PenaltyFixture{
		ID:          id,
		MemberID:    fmt.Sprintf("member-%03d", idx),
		LoanID:      fmt.Sprintf("loan-%03d", idx),
		Amount:      300,
		DaysOverdue: 3,
		Status:      circulation.PenaltyUnpaid,
		CreatedAt:   referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithPenaltyID overrides the generated penalty ID.
func WithPenaltyID(id string) PenaltyOption {
	return func(f *PenaltyFixture) {
		f.ID = id
	}
}

// WithPenaltyMemberID sets the owing member.
func WithPenaltyMemberID(memberID string) PenaltyOption {
	return func(f *PenaltyFixture) {
		f.MemberID = memberID
	}
}

// WithPenaltyLoanID sets the originating loan.
func WithPenaltyLoanID(loanID string) PenaltyOption {
	return func(f *PenaltyFixture) {
		f.LoanID = loanID
	}
}

// WithPenaltyAmount sets the charged amount and overdue day count.
func WithPenaltyAmount(amount circulation.Cents, daysOverdue int) PenaltyOption {
	return func(f *PenaltyFixture) {
		f.Amount = amount
		f.DaysOverdue = daysOverdue
	}
}

// WithPenaltyPaid marks the fixture PAID at the provided time.
func WithPenaltyPaid(t time.Time) PenaltyOption {
	return func(f *PenaltyFixture) {
		paid := t
		f.Status = circulation.PenaltyPaid
		f.PaidAt = &paid
	}
}

// WithPenaltyStatus sets the penalty status directly.
func WithPenaltyStatus(status circulation.PenaltyStatus) PenaltyOption {
	return func(f *PenaltyFixture) {
		f.Status = status
	}
}

// Persistence returns the fixture as a persistence.Penalty value.
func (f PenaltyFixture) Persistence() persistence.Penalty {
	return persistence.Penalty{
		ID:          f.ID,
		MemberID:    f.MemberID,
		LoanID:      f.LoanID,
		Amount:      f.Amount,
		DaysOverdue: f.DaysOverdue,
		Status:      f.Status,
		PaidAt:      copyTimePtr(f.PaidAt),
		CreatedAt:   f.CreatedAt,
	}
}

// ----------------------------- Visit fixtures ----------------------------

// VisitFixture represents a deterministic visit record. Visits are open by
// default; use WithVisitCheckedOut to close them.
type VisitFixture struct {
	ID           string
	MemberID     string
	CheckedInAt  time.Time
	CheckedOutAt *time.Time
}

// VisitOption configures the generated visit fixture.
type VisitOption func(*VisitFixture)

// NewVisitFixture returns a deterministic open visit fixture.
func NewVisitFixture(opts ...VisitOption) VisitFixture {
	idx := atomic.AddUint64(&visitCounter, 1)
	id := fmt.Sprintf("visit-%03d", idx)
	fixture := VisitFixture{
		ID:          id,
		MemberID:    fmt.Sprintf("member-%03d", idx),
		CheckedInAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithVisitID overrides the generated visit ID.
func WithVisitID(id string) VisitOption {
	return func(f *VisitFixture) {
		f.ID = id
	}
}

// WithVisitMemberID sets the visiting member.
func WithVisitMemberID(memberID string) VisitOption {
	return func(f *VisitFixture) {
		f.MemberID = memberID
	}
}

// WithVisitCheckedInAt sets the check-in timestamp.
func WithVisitCheckedInAt(t time.Time) VisitOption {
	return func(f *VisitFixture) {
		f.CheckedInAt = t
	}
}

// WithVisitCheckedOut closes the visit at the provided time.
func WithVisitCheckedOut(t time.Time) VisitOption {
	return func(f *VisitFixture) {
		out := t
		f.CheckedOutAt = &out
	}
}

// Persistence returns the fixture as a persistence.Visit value.
func (f VisitFixture) Persistence() persistence.Visit {
	return persistence.Visit{
		ID:           f.ID,
		MemberID:     f.MemberID,
		CheckedInAt:  f.CheckedInAt,
		CheckedOutAt: copyTimePtr(f.CheckedOutAt),
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	value := *src
	return &value
}
