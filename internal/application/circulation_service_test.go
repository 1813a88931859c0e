package application

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
	"github.com/example/library-circulation/internal/persistence/memory"
)

var testTime = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func testPolicy() CirculationPolicy {
	return CirculationPolicy{
		LoanDurationDays:         14,
		DailyPenaltyFee:          100,
		PenaltyBlockingThreshold: 1000,
		PickupWindowDays:         3,
	}
}

func sequentialIDs(prefix string) func() string {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter)
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func activeMember(id string) persistence.Member {
	return persistence.Member{
		ID:             id,
		Name:           "Member " + id,
		Email:          id + "@example.com",
		PINHash:        "hash-" + id,
		Status:         persistence.MemberActive,
		MaxActiveLoans: 5,
		CreatedAt:      testTime,
		UpdatedAt:      testTime,
	}
}

func borrowableCopy(id, bookID string) persistence.BookCopy {
	return persistence.BookCopy{
		ID:        id,
		BookID:    bookID,
		Barcode:   "BC-" + id,
		UsageType: circulation.UsageBorrowable,
		Status:    circulation.CopyAvailable,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func mustCreateMember(t *testing.T, store *memory.Store, member persistence.Member) {
	t.Helper()
	if err := store.CreateMember(context.Background(), member); err != nil {
		t.Fatalf("failed to create member %s: %v", member.ID, err)
	}
}

func mustCreateBook(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	book := persistence.Book{ID: id, Title: "Title " + id, Author: "Author " + id, CreatedAt: testTime, UpdatedAt: testTime}
	if err := store.CreateBook(context.Background(), book); err != nil {
		t.Fatalf("failed to create book %s: %v", id, err)
	}
}

func mustCreateCopy(t *testing.T, store *memory.Store, copyRow persistence.BookCopy) {
	t.Helper()
	if err := store.CreateCopy(context.Background(), copyRow); err != nil {
		t.Fatalf("failed to create copy %s: %v", copyRow.ID, err)
	}
}

func mustCheckIn(t *testing.T, store *memory.Store, memberID string) {
	t.Helper()
	visit := persistence.Visit{ID: "visit-" + memberID, MemberID: memberID, CheckedInAt: testTime}
	if err := store.CreateVisit(context.Background(), visit); err != nil {
		t.Fatalf("failed to check in member %s: %v", memberID, err)
	}
}

func requireRuleViolation(t *testing.T, err error, code string) {
	t.Helper()
	var rvErr *RuleViolationError
	if !errors.As(err, &rvErr) {
		t.Fatalf("expected rule violation %s, got %v", code, err)
	}
	if rvErr.Code != code {
		t.Fatalf("expected rule code %s, got %s (%s)", code, rvErr.Code, rvErr.Message)
	}
}

func TestCirculationService_Borrow_LendsAvailableCopy(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))
	mustCreateBook(t, store, "book-1")
	mustCreateCopy(t, store, borrowableCopy("copy-1", "book-1"))
	mustCheckIn(t, store, "member-1")

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), fixedNow(testTime))

	summary, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-1", CopyID: "copy-1"})
	if err != nil {
		t.Fatalf("borrow failed: %v", err)
	}

	if summary.Loan.ID != "loan-1" {
		t.Fatalf("expected loan ID loan-1, got %s", summary.Loan.ID)
	}
	if summary.Loan.Status != circulation.LoanActive {
		t.Fatalf("expected ACTIVE loan, got %s", summary.Loan.Status)
	}
	wantDue := testTime.AddDate(0, 0, 14)
	if !summary.Loan.DueDate.Equal(wantDue) {
		t.Fatalf("expected due date %v, got %v", wantDue, summary.Loan.DueDate)
	}
	if summary.FulfilledReservation != nil {
		t.Fatalf("expected no fulfilled reservation, got %+v", summary.FulfilledReservation)
	}

	copyRow, err := store.GetCopy(context.Background(), "copy-1")
	if err != nil {
		t.Fatalf("failed to load copy: %v", err)
	}
	if copyRow.Status != circulation.CopyLoaned {
		t.Fatalf("expected copy LOANED, got %s", copyRow.Status)
	}
}

func TestCirculationService_Borrow_RejectsUnknownMemberAndCopy(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), fixedNow(testTime))

	if _, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "ghost", CopyID: "copy-1"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown member, got %v", err)
	}
	if _, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-1", CopyID: "ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown copy, got %v", err)
	}
}

func TestCirculationService_Borrow_EnforcesRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		prepare  func(t *testing.T, store *memory.Store)
		wantCode string
	}{
		{
			name: "suspended member",
			prepare: func(t *testing.T, store *memory.Store) {
				member := activeMember("member-1")
				member.Status = persistence.MemberSuspended
				mustCreateMember(t, store, member)
				mustCheckIn(t, store, "member-1")
			},
			wantCode: RuleMemberNotActive,
		},
		{
			name: "not checked in",
			prepare: func(t *testing.T, store *memory.Store) {
				mustCreateMember(t, store, activeMember("member-1"))
			},
			wantCode: RuleMemberNotCheckedIn,
		},
		{
			name: "unpaid penalties at threshold",
			prepare: func(t *testing.T, store *memory.Store) {
				mustCreateMember(t, store, activeMember("member-1"))
				mustCheckIn(t, store, "member-1")
				seedUnpaidPenalty(t, store, "member-1", 1000)
			},
			wantCode: RuleUnpaidPenalties,
		},
		{
			name: "copy already loaned",
			prepare: func(t *testing.T, store *memory.Store) {
				mustCreateMember(t, store, activeMember("member-1"))
				mustCheckIn(t, store, "member-1")
				loaned := borrowableCopy("copy-1", "book-1")
				loaned.Status = circulation.CopyLoaned
				replaceCopy(t, store, loaned)
			},
			wantCode: RuleCopyNotAvailable,
		},
		{
			name: "reading room only copy",
			prepare: func(t *testing.T, store *memory.Store) {
				mustCreateMember(t, store, activeMember("member-1"))
				mustCheckIn(t, store, "member-1")
				restricted := borrowableCopy("copy-1", "book-1")
				restricted.UsageType = circulation.UsageReadingRoomOnly
				replaceCopy(t, store, restricted)
			},
			wantCode: RuleCopyNotBorrowable,
		},
		{
			name: "loan allowance exhausted",
			prepare: func(t *testing.T, store *memory.Store) {
				member := activeMember("member-1")
				member.MaxActiveLoans = 1
				mustCreateMember(t, store, member)
				mustCheckIn(t, store, "member-1")

				other := borrowableCopy("copy-other", "book-1")
				other.Status = circulation.CopyLoaned
				mustCreateCopy(t, store, other)
				seedActiveLoan(t, store, "loan-existing", "member-1", "copy-other")
			},
			wantCode: RuleMaxLoansExceeded,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := memory.NewStore()
			mustCreateBook(t, store, "book-1")
			mustCreateCopy(t, store, borrowableCopy("copy-1", "book-1"))
			tc.prepare(t, store)

			svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), fixedNow(testTime))

			_, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-1", CopyID: "copy-1"})
			requireRuleViolation(t, err, tc.wantCode)

			copyRow, getErr := store.GetCopy(context.Background(), "copy-1")
			if getErr != nil {
				t.Fatalf("failed to load copy: %v", getErr)
			}
			if copyRow.Status == circulation.CopyLoaned && tc.wantCode != RuleCopyNotAvailable {
				t.Fatalf("rejected borrow must not lend the copy")
			}
		})
	}
}

func TestCirculationService_Borrow_UnpaidBelowThresholdAllowed(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))
	mustCreateBook(t, store, "book-1")
	mustCreateCopy(t, store, borrowableCopy("copy-1", "book-1"))
	mustCheckIn(t, store, "member-1")
	seedUnpaidPenalty(t, store, "member-1", 999)

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), fixedNow(testTime))

	if _, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-1", CopyID: "copy-1"}); err != nil {
		t.Fatalf("expected borrow below threshold to succeed, got %v", err)
	}
}

func TestCirculationService_Borrow_HeldCopyOnlyLendableToHolder(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-holder"))
	mustCreateMember(t, store, activeMember("member-other"))
	mustCreateBook(t, store, "book-1")
	held := borrowableCopy("copy-1", "book-1")
	held.Status = circulation.CopyOnHold
	mustCreateCopy(t, store, held)
	mustCheckIn(t, store, "member-holder")
	mustCheckIn(t, store, "member-other")

	copyID := "copy-1"
	notified := testTime.Add(-time.Hour)
	expires := testTime.AddDate(0, 0, 3)
	seedReservation(t, store, persistence.Reservation{
		ID:            "reservation-1",
		MemberID:      "member-holder",
		BookID:        "book-1",
		CopyID:        &copyID,
		Status:        circulation.ReservationReadyForPickup,
		QueuePosition: 1,
		NotifiedAt:    &notified,
		ExpiresAt:     &expires,
		CreatedAt:     testTime,
		UpdatedAt:     testTime,
	})

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), fixedNow(testTime))

	_, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-other", CopyID: "copy-1"})
	requireRuleViolation(t, err, RuleCopyNotAvailable)

	summary, err := svc.Borrow(context.Background(), BorrowParams{MemberID: "member-holder", CopyID: "copy-1"})
	if err != nil {
		t.Fatalf("holder borrow failed: %v", err)
	}
	if summary.FulfilledReservation == nil {
		t.Fatalf("expected the borrow to fulfill the reservation")
	}
	if summary.FulfilledReservation.Status != circulation.ReservationFulfilled {
		t.Fatalf("expected FULFILLED reservation, got %s", summary.FulfilledReservation.Status)
	}

	stored, err := store.GetReservation(context.Background(), "reservation-1")
	if err != nil {
		t.Fatalf("failed to load reservation: %v", err)
	}
	if stored.Status != circulation.ReservationFulfilled {
		t.Fatalf("expected stored reservation FULFILLED, got %s", stored.Status)
	}
	if stored.CopyID == nil || *stored.CopyID != "copy-1" {
		t.Fatalf("fulfilled reservation must retain its copy link")
	}
}

func TestCirculationService_Return_OnTimeFreesCopy(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))
	mustCreateBook(t, store, "book-1")
	loaned := borrowableCopy("copy-1", "book-1")
	loaned.Status = circulation.CopyLoaned
	mustCreateCopy(t, store, loaned)
	seedActiveLoan(t, store, "loan-1", "member-1", "copy-1")

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("penalty"), fixedNow(testTime.AddDate(0, 0, 7)))

	summary, err := svc.Return(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}

	if summary.Overdue || summary.DaysOverdue != 0 {
		t.Fatalf("expected on-time return, got overdue=%v days=%d", summary.Overdue, summary.DaysOverdue)
	}
	if summary.Penalty != nil {
		t.Fatalf("expected no penalty, got %+v", summary.Penalty)
	}
	if summary.Loan.Status != circulation.LoanReturned || summary.Loan.ReturnedAt == nil {
		t.Fatalf("expected closed loan, got %+v", summary.Loan)
	}

	copyRow, err := store.GetCopy(context.Background(), "copy-1")
	if err != nil {
		t.Fatalf("failed to load copy: %v", err)
	}
	if copyRow.Status != circulation.CopyAvailable {
		t.Fatalf("expected copy AVAILABLE, got %s", copyRow.Status)
	}
}

func TestCirculationService_Return_LateChargesPerDay(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))
	mustCreateBook(t, store, "book-1")
	loaned := borrowableCopy("copy-1", "book-1")
	loaned.Status = circulation.CopyLoaned
	mustCreateCopy(t, store, loaned)
	seedActiveLoan(t, store, "loan-1", "member-1", "copy-1")

	// Due 14 days after testTime; returning 17 days after is 3 days late.
	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("penalty"), fixedNow(testTime.AddDate(0, 0, 17)))

	summary, err := svc.Return(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}

	if !summary.Overdue || summary.DaysOverdue != 3 {
		t.Fatalf("expected 3 days overdue, got overdue=%v days=%d", summary.Overdue, summary.DaysOverdue)
	}
	if summary.Penalty == nil {
		t.Fatalf("expected a penalty")
	}
	if summary.Penalty.Amount != 300 {
		t.Fatalf("expected penalty of 300, got %d", summary.Penalty.Amount)
	}
	if summary.Penalty.Status != circulation.PenaltyUnpaid {
		t.Fatalf("expected UNPAID penalty, got %s", summary.Penalty.Status)
	}

	unpaid, err := store.SumUnpaidPenalties(context.Background(), "member-1")
	if err != nil {
		t.Fatalf("failed to sum penalties: %v", err)
	}
	if unpaid != 300 {
		t.Fatalf("expected unpaid total 300, got %d", unpaid)
	}
}

func TestCirculationService_Return_SecondReturnRejected(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))
	mustCreateBook(t, store, "book-1")
	loaned := borrowableCopy("copy-1", "book-1")
	loaned.Status = circulation.CopyLoaned
	mustCreateCopy(t, store, loaned)
	seedActiveLoan(t, store, "loan-1", "member-1", "copy-1")

	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("penalty"), fixedNow(testTime.AddDate(0, 0, 17)))

	if _, err := svc.Return(context.Background(), "loan-1"); err != nil {
		t.Fatalf("first return failed: %v", err)
	}

	_, err := svc.Return(context.Background(), "loan-1")
	requireRuleViolation(t, err, RuleLoanNotActive)

	penalties, err := store.ListPenaltiesForMember(context.Background(), "member-1")
	if err != nil {
		t.Fatalf("failed to list penalties: %v", err)
	}
	if len(penalties) != 1 {
		t.Fatalf("expected exactly one penalty after retry, got %d", len(penalties))
	}
}

func TestCirculationService_Return_PromotesEarliestWaiting(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-borrower"))
	mustCreateMember(t, store, activeMember("member-first"))
	mustCreateMember(t, store, activeMember("member-second"))
	mustCreateBook(t, store, "book-1")
	loaned := borrowableCopy("copy-1", "book-1")
	loaned.Status = circulation.CopyLoaned
	mustCreateCopy(t, store, loaned)
	seedActiveLoan(t, store, "loan-1", "member-borrower", "copy-1")

	seedReservation(t, store, persistence.Reservation{
		ID: "reservation-second", MemberID: "member-second", BookID: "book-1",
		Status: circulation.ReservationWaiting, QueuePosition: 2,
		CreatedAt: testTime, UpdatedAt: testTime,
	})
	seedReservation(t, store, persistence.Reservation{
		ID: "reservation-first", MemberID: "member-first", BookID: "book-1",
		Status: circulation.ReservationWaiting, QueuePosition: 1,
		CreatedAt: testTime, UpdatedAt: testTime,
	})

	returnedAt := testTime.AddDate(0, 0, 7)
	svc := NewCirculationService(store, store, testPolicy(), sequentialIDs("penalty"), fixedNow(returnedAt))

	summary, err := svc.Return(context.Background(), "loan-1")
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}

	if summary.PromotedReservation == nil {
		t.Fatalf("expected a promoted reservation")
	}
	if summary.PromotedReservation.ID != "reservation-first" {
		t.Fatalf("expected earliest position to win, got %s", summary.PromotedReservation.ID)
	}
	if summary.PromotedReservation.Status != circulation.ReservationReadyForPickup {
		t.Fatalf("expected READY_FOR_PICKUP, got %s", summary.PromotedReservation.Status)
	}
	if summary.PromotedReservation.CopyID == nil || *summary.PromotedReservation.CopyID != "copy-1" {
		t.Fatalf("promoted reservation must hold the freed copy")
	}
	wantExpiry := returnedAt.AddDate(0, 0, 3)
	if summary.PromotedReservation.ExpiresAt == nil || !summary.PromotedReservation.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected pickup window to close at %v, got %v", wantExpiry, summary.PromotedReservation.ExpiresAt)
	}

	copyRow, err := store.GetCopy(context.Background(), "copy-1")
	if err != nil {
		t.Fatalf("failed to load copy: %v", err)
	}
	if copyRow.Status != circulation.CopyOnHold {
		t.Fatalf("expected copy ON_HOLD, got %s", copyRow.Status)
	}

	second, err := store.GetReservation(context.Background(), "reservation-second")
	if err != nil {
		t.Fatalf("failed to load reservation: %v", err)
	}
	if second.Status != circulation.ReservationWaiting || second.QueuePosition != 2 {
		t.Fatalf("expected second reservation untouched, got %+v", second)
	}
}

func TestCirculationService_ReserveReturnBorrowFlow(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-a"))
	mustCreateMember(t, store, activeMember("member-b"))
	mustCreateBook(t, store, "book-1")
	mustCreateCopy(t, store, borrowableCopy("copy-1", "book-1"))
	mustCheckIn(t, store, "member-a")
	mustCheckIn(t, store, "member-b")

	clockTime := testTime
	now := func() time.Time { return clockTime }
	circulationSvc := NewCirculationService(store, store, testPolicy(), sequentialIDs("loan"), now)
	reservationSvc := NewReservationService(store, store, sequentialIDs("reservation"), now)

	borrowed, err := circulationSvc.Borrow(context.Background(), BorrowParams{MemberID: "member-a", CopyID: "copy-1"})
	if err != nil {
		t.Fatalf("initial borrow failed: %v", err)
	}

	reserved, err := reservationSvc.Reserve(context.Background(), ReserveParams{MemberID: "member-b", BookID: "book-1"})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if reserved.QueuePosition != 1 {
		t.Fatalf("expected first reservation at position 1, got %d", reserved.QueuePosition)
	}

	clockTime = clockTime.AddDate(0, 0, 7)
	returned, err := circulationSvc.Return(context.Background(), borrowed.Loan.ID)
	if err != nil {
		t.Fatalf("return failed: %v", err)
	}
	if returned.PromotedReservation == nil || returned.PromotedReservation.ID != reserved.ID {
		t.Fatalf("expected the waiting reservation to be promoted")
	}

	fulfilled, err := circulationSvc.Borrow(context.Background(), BorrowParams{MemberID: "member-b", CopyID: "copy-1"})
	if err != nil {
		t.Fatalf("pickup borrow failed: %v", err)
	}
	if fulfilled.FulfilledReservation == nil || fulfilled.FulfilledReservation.ID != reserved.ID {
		t.Fatalf("expected pickup to fulfill the promoted reservation")
	}

	copyRow, err := store.GetCopy(context.Background(), "copy-1")
	if err != nil {
		t.Fatalf("failed to load copy: %v", err)
	}
	if copyRow.Status != circulation.CopyLoaned {
		t.Fatalf("expected copy LOANED after pickup, got %s", copyRow.Status)
	}
}

func seedActiveLoan(t *testing.T, store *memory.Store, loanID, memberID, copyID string) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx persistence.CirculationTx) error {
		return tx.CreateLoan(context.Background(), persistence.Loan{
			ID:         loanID,
			MemberID:   memberID,
			CopyID:     copyID,
			BorrowedAt: testTime,
			DueDate:    testTime.AddDate(0, 0, 14),
			Status:     circulation.LoanActive,
		})
	})
	if err != nil {
		t.Fatalf("failed to seed loan %s: %v", loanID, err)
	}
}

func seedUnpaidPenalty(t *testing.T, store *memory.Store, memberID string, amount circulation.Cents) {
	t.Helper()
	loanID := fmt.Sprintf("loan-penalty-%s-%d", memberID, amount)
	seedLoanRow(t, store, persistence.Loan{
		ID:         loanID,
		MemberID:   memberID,
		CopyID:     "copy-history-" + loanID,
		BorrowedAt: testTime.AddDate(0, -1, 0),
		DueDate:    testTime.AddDate(0, -1, 14),
		Status:     circulation.LoanReturned,
	})
	err := store.WithinTx(context.Background(), func(tx persistence.CirculationTx) error {
		return tx.CreatePenalty(context.Background(), persistence.Penalty{
			ID:          "penalty-" + loanID,
			MemberID:    memberID,
			LoanID:      loanID,
			Amount:      amount,
			DaysOverdue: int(amount / 100),
			Status:      circulation.PenaltyUnpaid,
			CreatedAt:   testTime,
		})
	})
	if err != nil {
		t.Fatalf("failed to seed penalty for %s: %v", memberID, err)
	}
}

func seedLoanRow(t *testing.T, store *memory.Store, loan persistence.Loan) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx persistence.CirculationTx) error {
		return tx.CreateLoan(context.Background(), loan)
	})
	if err != nil {
		t.Fatalf("failed to seed loan %s: %v", loan.ID, err)
	}
}

func seedReservation(t *testing.T, store *memory.Store, reservation persistence.Reservation) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(tx persistence.CirculationTx) error {
		return tx.CreateReservation(context.Background(), reservation)
	})
	if err != nil {
		t.Fatalf("failed to seed reservation %s: %v", reservation.ID, err)
	}
}

func replaceCopy(t *testing.T, store *memory.Store, copyRow persistence.BookCopy) {
	t.Helper()
	if err := store.UpdateCopy(context.Background(), copyRow); err != nil {
		t.Fatalf("failed to update copy %s: %v", copyRow.ID, err)
	}
}
