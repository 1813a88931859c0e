// Package memory implements the persistence contracts with in-process maps.
// It backs service unit tests and ephemeral runs; the uniqueness rules the
// SQLite schema enforces with indexes are checked explicitly here so both
// implementations reject the same writes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

// Store holds every aggregate in memory behind one mutex.
type Store struct {
	mu sync.Mutex

	members       map[string]persistence.Member
	books         map[string]persistence.Book
	copies        map[string]persistence.BookCopy
	loans         map[string]persistence.Loan
	reservations  map[string]persistence.Reservation
	penalties     map[string]persistence.Penalty
	visits        map[string]persistence.Visit
	queueCounters map[string]int
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		members:       make(map[string]persistence.Member),
		books:         make(map[string]persistence.Book),
		copies:        make(map[string]persistence.BookCopy),
		loans:         make(map[string]persistence.Loan),
		reservations:  make(map[string]persistence.Reservation),
		penalties:     make(map[string]persistence.Penalty),
		visits:        make(map[string]persistence.Visit),
		queueCounters: make(map[string]int),
	}
}

// WithinTx runs fn against the store under the lock. On error every map is
// restored from a snapshot, so a failed workflow leaves no partial writes.
func (s *Store) WithinTx(ctx context.Context, fn func(tx persistence.CirculationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.clone()
	if err := fn(&memoryTx{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeState struct {
	members       map[string]persistence.Member
	books         map[string]persistence.Book
	copies        map[string]persistence.BookCopy
	loans         map[string]persistence.Loan
	reservations  map[string]persistence.Reservation
	penalties     map[string]persistence.Penalty
	visits        map[string]persistence.Visit
	queueCounters map[string]int
}

func (s *Store) clone() storeState {
	return storeState{
		members:       cloneMap(s.members),
		books:         cloneMap(s.books),
		copies:        cloneMap(s.copies),
		loans:         cloneMap(s.loans),
		reservations:  cloneMap(s.reservations),
		penalties:     cloneMap(s.penalties),
		visits:        cloneMap(s.visits),
		queueCounters: cloneMap(s.queueCounters),
	}
}

func (s *Store) restore(state storeState) {
	s.members = state.members
	s.books = state.books
	s.copies = state.copies
	s.loans = state.loans
	s.reservations = state.reservations
	s.penalties = state.penalties
	s.visits = state.visits
	s.queueCounters = state.queueCounters
}

func cloneMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// --- members ---

func (s *Store) CreateMember(ctx context.Context, member persistence.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.members {
		if strings.EqualFold(existing.Email, member.Email) {
			return persistence.ErrDuplicate
		}
	}
	s.members[member.ID] = member
	return nil
}

func (s *Store) UpdateMember(ctx context.Context, member persistence.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[member.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.members[member.ID] = member
	return nil
}

func (s *Store) GetMember(ctx context.Context, id string) (persistence.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getMember(s, id)
}

func (s *Store) GetMemberByEmail(ctx context.Context, email string) (persistence.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, member := range s.members {
		if strings.EqualFold(member.Email, email) {
			return member, nil
		}
	}
	return persistence.Member{}, persistence.ErrNotFound
}

func (s *Store) ListMembers(ctx context.Context) ([]persistence.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]persistence.Member, 0, len(s.members))
	for _, member := range s.members {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (s *Store) DeleteMember(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, loan := range s.loans {
		if loan.MemberID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	for _, reservation := range s.reservations {
		if reservation.MemberID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.members, id)
	return nil
}

// --- books and copies ---

func (s *Store) CreateBook(ctx context.Context, book persistence.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[book.ID]; ok {
		return persistence.ErrDuplicate
	}
	s.books[book.ID] = book
	return nil
}

func (s *Store) UpdateBook(ctx context.Context, book persistence.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[book.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.books[book.ID] = book
	return nil
}

func (s *Store) GetBook(ctx context.Context, id string) (persistence.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getBook(s, id)
}

func (s *Store) ListBooks(ctx context.Context) ([]persistence.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	books := make([]persistence.Book, 0, len(s.books))
	for _, book := range s.books {
		books = append(books, book)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.books[id]; !ok {
		return persistence.ErrNotFound
	}
	for _, copy := range s.copies {
		if copy.BookID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	for _, reservation := range s.reservations {
		if reservation.BookID == id {
			return persistence.ErrForeignKeyViolation
		}
	}
	delete(s.books, id)
	return nil
}

func (s *Store) CreateCopy(ctx context.Context, copy persistence.BookCopy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.copies[copy.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.copies {
		if existing.Barcode == copy.Barcode {
			return persistence.ErrDuplicate
		}
	}
	if _, ok := s.books[copy.BookID]; !ok {
		return persistence.ErrForeignKeyViolation
	}
	s.copies[copy.ID] = copy
	return nil
}

func (s *Store) UpdateCopy(ctx context.Context, copy persistence.BookCopy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.copies[copy.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.copies[copy.ID] = copy
	return nil
}

func (s *Store) GetCopy(ctx context.Context, id string) (persistence.BookCopy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getCopy(s, id)
}

func (s *Store) GetCopyByBarcode(ctx context.Context, barcode string) (persistence.BookCopy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, copy := range s.copies {
		if copy.Barcode == barcode {
			return copy, nil
		}
	}
	return persistence.BookCopy{}, persistence.ErrNotFound
}

func (s *Store) ListCopiesForBook(ctx context.Context, bookID string) ([]persistence.BookCopy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var copies []persistence.BookCopy
	for _, copy := range s.copies {
		if copy.BookID == bookID {
			copies = append(copies, copy)
		}
	}
	sort.Slice(copies, func(i, j int) bool { return copies[i].Barcode < copies[j].Barcode })
	return copies, nil
}

// --- visits ---

func (s *Store) CreateVisit(ctx context.Context, visit persistence.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.visits[visit.ID]; ok {
		return persistence.ErrDuplicate
	}
	for _, existing := range s.visits {
		if existing.MemberID == visit.MemberID && existing.CheckedOutAt == nil {
			return persistence.ErrDuplicate
		}
	}
	s.visits[visit.ID] = visit
	return nil
}

func (s *Store) GetOpenVisit(ctx context.Context, memberID string) (persistence.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, visit := range s.visits {
		if visit.MemberID == memberID && visit.CheckedOutAt == nil {
			return visit, nil
		}
	}
	return persistence.Visit{}, persistence.ErrNotFound
}

func (s *Store) CloseVisit(ctx context.Context, visitID string, checkedOutAt time.Time) (persistence.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visit, ok := s.visits[visitID]
	if !ok || visit.CheckedOutAt != nil {
		return persistence.Visit{}, persistence.ErrNotFound
	}
	visit.CheckedOutAt = &checkedOutAt
	s.visits[visitID] = visit
	return visit, nil
}

func (s *Store) ListVisitsForMember(ctx context.Context, memberID string) ([]persistence.Visit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var visits []persistence.Visit
	for _, visit := range s.visits {
		if visit.MemberID == memberID {
			visits = append(visits, visit)
		}
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].CheckedInAt.After(visits[j].CheckedInAt) })
	return visits, nil
}

// --- loans ---

func (s *Store) GetLoan(ctx context.Context, id string) (persistence.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLoan(s, id)
}

func (s *Store) ListLoansForMember(ctx context.Context, memberID string) ([]persistence.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var loans []persistence.Loan
	for _, loan := range s.loans {
		if loan.MemberID == memberID {
			loans = append(loans, loan)
		}
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].BorrowedAt.After(loans[j].BorrowedAt) })
	return loans, nil
}

// --- penalties ---

func (s *Store) GetPenalty(ctx context.Context, id string) (persistence.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getPenalty(s, id)
}

func (s *Store) ListPenaltiesForMember(ctx context.Context, memberID string) ([]persistence.Penalty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var penalties []persistence.Penalty
	for _, penalty := range s.penalties {
		if penalty.MemberID == memberID {
			penalties = append(penalties, penalty)
		}
	}
	sort.Slice(penalties, func(i, j int) bool { return penalties[i].CreatedAt.After(penalties[j].CreatedAt) })
	return penalties, nil
}

func (s *Store) SumUnpaidPenalties(ctx context.Context, memberID string) (circulation.Cents, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sumUnpaidPenalties(s, memberID), nil
}

// --- reservations ---

func (s *Store) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getReservation(s, id)
}

func (s *Store) ListReservationsForBook(ctx context.Context, bookID string) ([]persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reservations []persistence.Reservation
	for _, reservation := range s.reservations {
		if reservation.BookID == bookID {
			reservations = append(reservations, reservation)
		}
	}
	sort.Slice(reservations, func(i, j int) bool { return reservations[i].QueuePosition < reservations[j].QueuePosition })
	return reservations, nil
}

func (s *Store) ListExpiredHolds(ctx context.Context, reference time.Time) ([]persistence.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []persistence.Reservation
	for _, reservation := range s.reservations {
		if reservation.Status == circulation.ReservationReadyForPickup &&
			reservation.ExpiresAt != nil && reservation.ExpiresAt.Before(reference) {
			expired = append(expired, reservation)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt) })
	return expired, nil
}

// --- shared lookups (lock held by caller) ---

func getMember(s *Store, id string) (persistence.Member, error) {
	member, ok := s.members[id]
	if !ok {
		return persistence.Member{}, persistence.ErrNotFound
	}
	return member, nil
}

func getBook(s *Store, id string) (persistence.Book, error) {
	book, ok := s.books[id]
	if !ok {
		return persistence.Book{}, persistence.ErrNotFound
	}
	return book, nil
}

func getCopy(s *Store, id string) (persistence.BookCopy, error) {
	copy, ok := s.copies[id]
	if !ok {
		return persistence.BookCopy{}, persistence.ErrNotFound
	}
	return copy, nil
}

func getLoan(s *Store, id string) (persistence.Loan, error) {
	loan, ok := s.loans[id]
	if !ok {
		return persistence.Loan{}, persistence.ErrNotFound
	}
	return loan, nil
}

func getPenalty(s *Store, id string) (persistence.Penalty, error) {
	penalty, ok := s.penalties[id]
	if !ok {
		return persistence.Penalty{}, persistence.ErrNotFound
	}
	return penalty, nil
}

func getReservation(s *Store, id string) (persistence.Reservation, error) {
	reservation, ok := s.reservations[id]
	if !ok {
		return persistence.Reservation{}, persistence.ErrNotFound
	}
	return reservation, nil
}

func sumUnpaidPenalties(s *Store, memberID string) circulation.Cents {
	var total circulation.Cents
	for _, penalty := range s.penalties {
		if penalty.MemberID == memberID && penalty.Status == circulation.PenaltyUnpaid {
			total += penalty.Amount
		}
	}
	return total
}
