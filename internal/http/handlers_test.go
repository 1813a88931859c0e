package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

var handlerTestTime = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func testLoan(id string) persistence.Loan {
	return persistence.Loan{
		ID:         id,
		MemberID:   "member-1",
		CopyID:     "copy-1",
		BorrowedAt: handlerTestTime,
		DueDate:    handlerTestTime.AddDate(0, 0, 14),
		Status:     circulation.LoanActive,
	}
}

func serveJSON(t *testing.T, handler http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	decoded := map[string]any{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("response is not valid JSON: %v\nbody: %s", err, recorder.Body.String())
		}
	}
	return recorder, decoded
}

type stubCirculationService struct {
	borrow         func(ctx context.Context, params application.BorrowParams) (application.LoanSummary, error)
	returnLoan     func(ctx context.Context, loanID string) (application.ReturnSummary, error)
	getLoan        func(ctx context.Context, loanID string) (persistence.Loan, error)
	loansForMember func(ctx context.Context, memberID string) ([]persistence.Loan, error)
}

func (s stubCirculationService) Borrow(ctx context.Context, params application.BorrowParams) (application.LoanSummary, error) {
	return s.borrow(ctx, params)
}

func (s stubCirculationService) Return(ctx context.Context, loanID string) (application.ReturnSummary, error) {
	return s.returnLoan(ctx, loanID)
}

func (s stubCirculationService) GetLoan(ctx context.Context, loanID string) (persistence.Loan, error) {
	return s.getLoan(ctx, loanID)
}

func (s stubCirculationService) LoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	return s.loansForMember(ctx, memberID)
}

func TestCirculationHandler_Borrow(t *testing.T) {
	t.Parallel()

	t.Run("created loans respond 201 with the loan payload", func(t *testing.T) {
		t.Parallel()

		var captured application.BorrowParams
		service := stubCirculationService{
			borrow: func(_ context.Context, params application.BorrowParams) (application.LoanSummary, error) {
				captured = params
				return application.LoanSummary{Loan: testLoan("loan-1")}, nil
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/loans", `{"member_id":" member-1 ","copy_id":"copy-1"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if captured.MemberID != "member-1" {
			t.Fatalf("expected trimmed member id, got %q", captured.MemberID)
		}

		loan, ok := body["loan"].(map[string]any)
		if !ok {
			t.Fatalf("expected loan object, got %v", body)
		}
		if loan["id"] != "loan-1" || loan["status"] != "ACTIVE" {
			t.Fatalf("unexpected loan payload: %v", loan)
		}
		if _, present := body["fulfilled_reservation"]; present {
			t.Fatalf("fulfilled_reservation must be omitted when nil: %v", body)
		}
	})

	t.Run("malformed JSON responds 400", func(t *testing.T) {
		t.Parallel()

		service := stubCirculationService{
			borrow: func(context.Context, application.BorrowParams) (application.LoanSummary, error) {
				t.Fatal("service must not be called for a malformed body")
				return application.LoanSummary{}, nil
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, _ := serveJSON(t, router, http.MethodPost, "/loans", `{"member_id": `)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", recorder.Code)
		}
	})

	t.Run("rule violations respond 409 with the rule code", func(t *testing.T) {
		t.Parallel()

		service := stubCirculationService{
			borrow: func(context.Context, application.BorrowParams) (application.LoanSummary, error) {
				return application.LoanSummary{}, &application.RuleViolationError{
					Code:    application.RuleUnpaidPenalties,
					Message: "member has unpaid penalties",
				}
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/loans", `{"member_id":"member-1","copy_id":"copy-1"}`)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if body["error_code"] != application.RuleUnpaidPenalties {
			t.Fatalf("expected error_code %q, got %v", application.RuleUnpaidPenalties, body)
		}
	})

	t.Run("unknown resources respond 404", func(t *testing.T) {
		t.Parallel()

		service := stubCirculationService{
			borrow: func(context.Context, application.BorrowParams) (application.LoanSummary, error) {
				return application.LoanSummary{}, application.ErrNotFound
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, _ := serveJSON(t, router, http.MethodPost, "/loans", `{"member_id":"ghost","copy_id":"copy-1"}`)
		if recorder.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", recorder.Code)
		}
	})
}

func TestCirculationHandler_Return(t *testing.T) {
	t.Parallel()

	t.Run("late returns include the penalty and promoted reservation", func(t *testing.T) {
		t.Parallel()

		returned := handlerTestTime.AddDate(0, 0, 17)
		loan := testLoan("loan-1")
		loan.Status = circulation.LoanReturned
		loan.ReturnedAt = &returned

		copyID := "copy-1"
		service := stubCirculationService{
			returnLoan: func(_ context.Context, loanID string) (application.ReturnSummary, error) {
				if loanID != "loan-1" {
					t.Fatalf("unexpected loan id %q", loanID)
				}
				return application.ReturnSummary{
					Loan:        loan,
					Overdue:     true,
					DaysOverdue: 3,
					Penalty: &persistence.Penalty{
						ID:          "penalty-1",
						MemberID:    "member-1",
						LoanID:      "loan-1",
						Amount:      300,
						DaysOverdue: 3,
						Status:      circulation.PenaltyUnpaid,
						CreatedAt:   returned,
					},
					PromotedReservation: &persistence.Reservation{
						ID:            "reservation-1",
						MemberID:      "member-2",
						BookID:        "book-1",
						CopyID:        &copyID,
						Status:        circulation.ReservationReadyForPickup,
						QueuePosition: 1,
						CreatedAt:     handlerTestTime,
						UpdatedAt:     returned,
					},
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/loans/loan-1/return", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		if body["overdue"] != true || body["days_overdue"] != float64(3) {
			t.Fatalf("unexpected overdue fields: %v", body)
		}
		penalty, ok := body["penalty"].(map[string]any)
		if !ok || penalty["id"] != "penalty-1" {
			t.Fatalf("expected penalty in payload, got %v", body)
		}
		promoted, ok := body["promoted_reservation"].(map[string]any)
		if !ok || promoted["status"] != "READY_FOR_PICKUP" {
			t.Fatalf("expected promoted reservation, got %v", body)
		}
	})

	t.Run("second return responds 409", func(t *testing.T) {
		t.Parallel()

		service := stubCirculationService{
			returnLoan: func(context.Context, string) (application.ReturnSummary, error) {
				return application.ReturnSummary{}, &application.RuleViolationError{
					Code:    application.RuleLoanNotActive,
					Message: "loan is already closed",
				}
			},
		}
		router := NewRouter(RouterConfig{Circulation: NewCirculationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/loans/loan-1/return", "")
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if body["error_code"] != application.RuleLoanNotActive {
			t.Fatalf("expected error_code %q, got %v", application.RuleLoanNotActive, body)
		}
	})
}

type stubMemberService struct {
	register func(ctx context.Context, params application.RegisterMemberParams) (persistence.Member, error)
	update   func(ctx context.Context, params application.UpdateMemberParams) (persistence.Member, error)
	get      func(ctx context.Context, memberID string) (persistence.Member, error)
	list     func(ctx context.Context) ([]persistence.Member, error)
	remove   func(ctx context.Context, memberID string) error
}

func (s stubMemberService) Register(ctx context.Context, params application.RegisterMemberParams) (persistence.Member, error) {
	return s.register(ctx, params)
}

func (s stubMemberService) Update(ctx context.Context, params application.UpdateMemberParams) (persistence.Member, error) {
	return s.update(ctx, params)
}

func (s stubMemberService) Get(ctx context.Context, memberID string) (persistence.Member, error) {
	return s.get(ctx, memberID)
}

func (s stubMemberService) List(ctx context.Context) ([]persistence.Member, error) {
	return s.list(ctx)
}

func (s stubMemberService) Delete(ctx context.Context, memberID string) error {
	return s.remove(ctx, memberID)
}

func TestMemberHandler_Create(t *testing.T) {
	t.Parallel()

	t.Run("registered members respond 201", func(t *testing.T) {
		t.Parallel()

		service := stubMemberService{
			register: func(_ context.Context, params application.RegisterMemberParams) (persistence.Member, error) {
				return persistence.Member{
					ID:             "member-1",
					Name:           params.Name,
					Email:          params.Email,
					Status:         persistence.MemberActive,
					MaxActiveLoans: 5,
					CreatedAt:      handlerTestTime,
					UpdatedAt:      handlerTestTime,
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Members: NewMemberHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/members", `{"name":"Taro","email":"taro@example.com","pin":"4821"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		member, ok := body["member"].(map[string]any)
		if !ok || member["id"] != "member-1" {
			t.Fatalf("unexpected member payload: %v", body)
		}
		if member["status"] != "ACTIVE" || member["max_active_loans"] != float64(5) {
			t.Fatalf("unexpected member defaults: %v", member)
		}
	})

	t.Run("validation failures respond 422 with the field map", func(t *testing.T) {
		t.Parallel()

		service := stubMemberService{
			register: func(context.Context, application.RegisterMemberParams) (persistence.Member, error) {
				return persistence.Member{}, &application.ValidationError{FieldErrors: map[string]string{
					"email": "email is required",
					"pin":   "pin must be 4 to 8 digits",
				}}
			},
		}
		router := NewRouter(RouterConfig{Members: NewMemberHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/members", `{"name":"Taro"}`)
		if recorder.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", recorder.Code)
		}
		fieldErrors, ok := body["errors"].(map[string]any)
		if !ok {
			t.Fatalf("expected errors map, got %v", body)
		}
		for _, field := range []string{"email", "pin"} {
			if _, present := fieldErrors[field]; !present {
				t.Fatalf("expected error for field %q, got %v", field, fieldErrors)
			}
		}
	})

	t.Run("duplicate emails respond 409", func(t *testing.T) {
		t.Parallel()

		service := stubMemberService{
			register: func(context.Context, application.RegisterMemberParams) (persistence.Member, error) {
				return persistence.Member{}, application.ErrAlreadyExists
			},
		}
		router := NewRouter(RouterConfig{Members: NewMemberHandler(service, nil)})

		recorder, _ := serveJSON(t, router, http.MethodPost, "/members", `{"name":"Taro","email":"taro@example.com","pin":"4821"}`)
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
	})
}

type stubReservationService struct {
	reserve      func(ctx context.Context, params application.ReserveParams) (persistence.Reservation, error)
	cancel       func(ctx context.Context, reservationID string) error
	get          func(ctx context.Context, reservationID string) (persistence.Reservation, error)
	listForBook  func(ctx context.Context, bookID string) ([]persistence.Reservation, error)
	expiredHolds func(ctx context.Context) ([]persistence.Reservation, error)
}

func (s stubReservationService) Reserve(ctx context.Context, params application.ReserveParams) (persistence.Reservation, error) {
	return s.reserve(ctx, params)
}

func (s stubReservationService) Cancel(ctx context.Context, reservationID string) error {
	return s.cancel(ctx, reservationID)
}

func (s stubReservationService) Get(ctx context.Context, reservationID string) (persistence.Reservation, error) {
	return s.get(ctx, reservationID)
}

func (s stubReservationService) ListForBook(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	return s.listForBook(ctx, bookID)
}

func (s stubReservationService) ExpiredHolds(ctx context.Context) ([]persistence.Reservation, error) {
	return s.expiredHolds(ctx)
}

func TestReservationHandler(t *testing.T) {
	t.Parallel()

	t.Run("created reservations respond 201 with the queue position", func(t *testing.T) {
		t.Parallel()

		service := stubReservationService{
			reserve: func(_ context.Context, params application.ReserveParams) (persistence.Reservation, error) {
				return persistence.Reservation{
					ID:            "reservation-1",
					MemberID:      params.MemberID,
					BookID:        params.BookID,
					Status:        circulation.ReservationWaiting,
					QueuePosition: 4,
					CreatedAt:     handlerTestTime,
					UpdatedAt:     handlerTestTime,
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Reservations: NewReservationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/reservations", `{"member_id":"member-1","book_id":"book-1"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		reservation, ok := body["reservation"].(map[string]any)
		if !ok || reservation["queue_position"] != float64(4) {
			t.Fatalf("unexpected reservation payload: %v", body)
		}
	})

	t.Run("cancellations respond 204 with no body", func(t *testing.T) {
		t.Parallel()

		cancelled := ""
		service := stubReservationService{
			cancel: func(_ context.Context, reservationID string) error {
				cancelled = reservationID
				return nil
			},
		}
		router := NewRouter(RouterConfig{Reservations: NewReservationHandler(service, nil)})

		recorder, _ := serveJSON(t, router, http.MethodDelete, "/reservations/reservation-1", "")
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", recorder.Code)
		}
		if recorder.Body.Len() != 0 {
			t.Fatalf("expected empty body, got %q", recorder.Body.String())
		}
		if cancelled != "reservation-1" {
			t.Fatalf("expected cancellation of reservation-1, got %q", cancelled)
		}
	})

	t.Run("the expired listing is not parsed as a reservation id", func(t *testing.T) {
		t.Parallel()

		service := stubReservationService{
			get: func(context.Context, string) (persistence.Reservation, error) {
				t.Fatal("expired listing must not route to Get")
				return persistence.Reservation{}, nil
			},
			expiredHolds: func(context.Context) ([]persistence.Reservation, error) {
				return []persistence.Reservation{{
					ID:            "reservation-1",
					MemberID:      "member-1",
					BookID:        "book-1",
					Status:        circulation.ReservationReadyForPickup,
					QueuePosition: 1,
					CreatedAt:     handlerTestTime,
					UpdatedAt:     handlerTestTime,
				}}, nil
			},
		}
		router := NewRouter(RouterConfig{Reservations: NewReservationHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodGet, "/reservations/expired", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", recorder.Code)
		}
		reservations, ok := body["reservations"].([]any)
		if !ok || len(reservations) != 1 {
			t.Fatalf("expected one expired reservation, got %v", body)
		}
	})
}

type stubPenaltyService struct {
	pay       func(ctx context.Context, penaltyID string) (persistence.Penalty, error)
	get       func(ctx context.Context, penaltyID string) (persistence.Penalty, error)
	statement func(ctx context.Context, memberID string) (application.PenaltyStatement, error)
}

func (s stubPenaltyService) Pay(ctx context.Context, penaltyID string) (persistence.Penalty, error) {
	return s.pay(ctx, penaltyID)
}

func (s stubPenaltyService) Get(ctx context.Context, penaltyID string) (persistence.Penalty, error) {
	return s.get(ctx, penaltyID)
}

func (s stubPenaltyService) StatementForMember(ctx context.Context, memberID string) (application.PenaltyStatement, error) {
	return s.statement(ctx, memberID)
}

func TestPenaltyHandler(t *testing.T) {
	t.Parallel()

	t.Run("payments respond 200 with the settled penalty", func(t *testing.T) {
		t.Parallel()

		paidAt := handlerTestTime.Add(time.Hour)
		service := stubPenaltyService{
			pay: func(_ context.Context, penaltyID string) (persistence.Penalty, error) {
				return persistence.Penalty{
					ID:          penaltyID,
					MemberID:    "member-1",
					LoanID:      "loan-1",
					Amount:      300,
					DaysOverdue: 3,
					Status:      circulation.PenaltyPaid,
					PaidAt:      &paidAt,
					CreatedAt:   handlerTestTime,
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Penalties: NewPenaltyHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/penalties/penalty-1/pay", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
		}
		penalty, ok := body["penalty"].(map[string]any)
		if !ok || penalty["status"] != "PAID" {
			t.Fatalf("unexpected penalty payload: %v", body)
		}
		if penalty["paid_at"] == nil {
			t.Fatalf("expected paid_at in payload, got %v", penalty)
		}
	})

	t.Run("settled penalties respond 409", func(t *testing.T) {
		t.Parallel()

		service := stubPenaltyService{
			pay: func(context.Context, string) (persistence.Penalty, error) {
				return persistence.Penalty{}, &application.RuleViolationError{
					Code:    application.RulePenaltyNotPayable,
					Message: "penalty is already settled",
				}
			},
		}
		router := NewRouter(RouterConfig{Penalties: NewPenaltyHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/penalties/penalty-1/pay", "")
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if body["error_code"] != application.RulePenaltyNotPayable {
			t.Fatalf("expected error_code %q, got %v", application.RulePenaltyNotPayable, body)
		}
	})
}

type stubVisitService struct {
	checkIn  func(ctx context.Context, memberID string) (persistence.Visit, error)
	checkOut func(ctx context.Context, memberID string) (persistence.Visit, error)
	history  func(ctx context.Context, memberID string) ([]persistence.Visit, error)
}

func (s stubVisitService) CheckIn(ctx context.Context, memberID string) (persistence.Visit, error) {
	return s.checkIn(ctx, memberID)
}

func (s stubVisitService) CheckOut(ctx context.Context, memberID string) (persistence.Visit, error) {
	return s.checkOut(ctx, memberID)
}

func (s stubVisitService) History(ctx context.Context, memberID string) ([]persistence.Visit, error) {
	return s.history(ctx, memberID)
}

func TestVisitHandler(t *testing.T) {
	t.Parallel()

	t.Run("check-in responds 201 with the open visit", func(t *testing.T) {
		t.Parallel()

		service := stubVisitService{
			checkIn: func(_ context.Context, memberID string) (persistence.Visit, error) {
				return persistence.Visit{
					ID:          "visit-1",
					MemberID:    memberID,
					CheckedInAt: handlerTestTime,
				}, nil
			},
		}
		router := NewRouter(RouterConfig{Visits: NewVisitHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/members/member-1/checkin", "")
		if recorder.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", recorder.Code, recorder.Body.String())
		}
		visit, ok := body["visit"].(map[string]any)
		if !ok || visit["member_id"] != "member-1" {
			t.Fatalf("unexpected visit payload: %v", body)
		}
		if _, present := visit["checked_out_at"]; present {
			t.Fatalf("open visit must omit checked_out_at: %v", visit)
		}
	})

	t.Run("double check-in responds 409", func(t *testing.T) {
		t.Parallel()

		service := stubVisitService{
			checkIn: func(context.Context, string) (persistence.Visit, error) {
				return persistence.Visit{}, &application.RuleViolationError{
					Code:    application.RuleAlreadyCheckedIn,
					Message: "member is already checked in",
				}
			},
		}
		router := NewRouter(RouterConfig{Visits: NewVisitHandler(service, nil)})

		recorder, body := serveJSON(t, router, http.MethodPost, "/members/member-1/checkin", "")
		if recorder.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", recorder.Code)
		}
		if body["error_code"] != application.RuleAlreadyCheckedIn {
			t.Fatalf("expected error_code %q, got %v", application.RuleAlreadyCheckedIn, body)
		}
	})
}
