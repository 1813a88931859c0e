package circulation

import "time"

// DaysOverdue returns the number of whole days between the due date and the
// return instant, clamped at zero. A loan returned 23 hours late is not yet a
// full day overdue.
func DaysOverdue(dueDate, returnedAt time.Time) int {
	if !returnedAt.After(dueDate) {
		return 0
	}
	return int(returnedAt.Sub(dueDate) / (24 * time.Hour))
}

// Overdue reports whether a loan is currently overdue. Overdue is always a
// derived property of an ACTIVE loan past its due date, never a stored
// status.
func Overdue(status LoanStatus, dueDate, now time.Time) bool {
	return status == LoanActive && now.After(dueDate)
}

// PenaltyAmount computes the penalty for a late return: the daily fee
// multiplied by the number of whole days overdue.
func PenaltyAmount(dailyFee Cents, daysOverdue int) Cents {
	if daysOverdue <= 0 {
		return 0
	}
	return dailyFee * Cents(daysOverdue)
}
