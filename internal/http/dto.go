package http

import (
	"time"

	"github.com/example/library-circulation/internal/persistence"
)

// DTO timestamps are RFC3339 UTC strings.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := formatTime(*t)
	return &formatted
}

type memberDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Status         string `json:"status"`
	MaxActiveLoans int    `json:"max_active_loans"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toMemberDTO(member persistence.Member) memberDTO {
	return memberDTO{
		ID:             member.ID,
		Name:           member.Name,
		Email:          member.Email,
		Status:         string(member.Status),
		MaxActiveLoans: member.MaxActiveLoans,
		CreatedAt:      formatTime(member.CreatedAt),
		UpdatedAt:      formatTime(member.UpdatedAt),
	}
}

type bookDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	ISBN      string `json:"isbn,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toBookDTO(book persistence.Book) bookDTO {
	return bookDTO{
		ID:        book.ID,
		Title:     book.Title,
		Author:    book.Author,
		ISBN:      book.ISBN,
		CreatedAt: formatTime(book.CreatedAt),
		UpdatedAt: formatTime(book.UpdatedAt),
	}
}

type copyDTO struct {
	ID        string `json:"id"`
	BookID    string `json:"book_id"`
	Barcode   string `json:"barcode"`
	UsageType string `json:"usage_type"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toCopyDTO(copy persistence.BookCopy) copyDTO {
	return copyDTO{
		ID:        copy.ID,
		BookID:    copy.BookID,
		Barcode:   copy.Barcode,
		UsageType: string(copy.UsageType),
		Status:    string(copy.Status),
		CreatedAt: formatTime(copy.CreatedAt),
		UpdatedAt: formatTime(copy.UpdatedAt),
	}
}

type loanDTO struct {
	ID         string  `json:"id"`
	MemberID   string  `json:"member_id"`
	CopyID     string  `json:"copy_id"`
	BorrowedAt string  `json:"borrowed_at"`
	DueDate    string  `json:"due_date"`
	ReturnedAt *string `json:"returned_at,omitempty"`
	Status     string  `json:"status"`
}

func toLoanDTO(loan persistence.Loan) loanDTO {
	return loanDTO{
		ID:         loan.ID,
		MemberID:   loan.MemberID,
		CopyID:     loan.CopyID,
		BorrowedAt: formatTime(loan.BorrowedAt),
		DueDate:    formatTime(loan.DueDate),
		ReturnedAt: formatTimePtr(loan.ReturnedAt),
		Status:     string(loan.Status),
	}
}

type reservationDTO struct {
	ID            string  `json:"id"`
	MemberID      string  `json:"member_id"`
	BookID        string  `json:"book_id"`
	CopyID        *string `json:"copy_id,omitempty"`
	Status        string  `json:"status"`
	QueuePosition int     `json:"queue_position"`
	NotifiedAt    *string `json:"notified_at,omitempty"`
	ExpiresAt     *string `json:"expires_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func toReservationDTO(reservation persistence.Reservation) reservationDTO {
	return reservationDTO{
		ID:            reservation.ID,
		MemberID:      reservation.MemberID,
		BookID:        reservation.BookID,
		CopyID:        reservation.CopyID,
		Status:        string(reservation.Status),
		QueuePosition: reservation.QueuePosition,
		NotifiedAt:    formatTimePtr(reservation.NotifiedAt),
		ExpiresAt:     formatTimePtr(reservation.ExpiresAt),
		CreatedAt:     formatTime(reservation.CreatedAt),
		UpdatedAt:     formatTime(reservation.UpdatedAt),
	}
}

func toReservationDTOPtr(reservation *persistence.Reservation) *reservationDTO {
	if reservation == nil {
		return nil
	}
	dto := toReservationDTO(*reservation)
	return &dto
}

func toReservationDTOs(reservations []persistence.Reservation) []reservationDTO {
	if len(reservations) == 0 {
		return nil
	}
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	return out
}

type penaltyDTO struct {
	ID          string  `json:"id"`
	MemberID    string  `json:"member_id"`
	LoanID      string  `json:"loan_id"`
	Amount      string  `json:"amount"`
	DaysOverdue int     `json:"days_overdue"`
	Status      string  `json:"status"`
	PaidAt      *string `json:"paid_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toPenaltyDTO(penalty persistence.Penalty) penaltyDTO {
	return penaltyDTO{
		ID:          penalty.ID,
		MemberID:    penalty.MemberID,
		LoanID:      penalty.LoanID,
		Amount:      penalty.Amount.String(),
		DaysOverdue: penalty.DaysOverdue,
		Status:      string(penalty.Status),
		PaidAt:      formatTimePtr(penalty.PaidAt),
		CreatedAt:   formatTime(penalty.CreatedAt),
	}
}

func toPenaltyDTOPtr(penalty *persistence.Penalty) *penaltyDTO {
	if penalty == nil {
		return nil
	}
	dto := toPenaltyDTO(*penalty)
	return &dto
}

type visitDTO struct {
	ID           string  `json:"id"`
	MemberID     string  `json:"member_id"`
	CheckedInAt  string  `json:"checked_in_at"`
	CheckedOutAt *string `json:"checked_out_at,omitempty"`
}

func toVisitDTO(visit persistence.Visit) visitDTO {
	return visitDTO{
		ID:           visit.ID,
		MemberID:     visit.MemberID,
		CheckedInAt:  formatTime(visit.CheckedInAt),
		CheckedOutAt: formatTimePtr(visit.CheckedOutAt),
	}
}
