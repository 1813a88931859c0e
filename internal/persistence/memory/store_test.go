package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/library-circulation/internal/circulation"
	"github.com/example/library-circulation/internal/persistence"
)

var storeTestTime = time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	copyRow := persistence.BookCopy{
		ID:        "copy-1",
		BookID:    "book-1",
		Barcode:   "BC-000001",
		UsageType: circulation.UsageBorrowable,
		Status:    circulation.CopyAvailable,
		CreatedAt: storeTestTime,
		UpdatedAt: storeTestTime,
	}
	if err := store.CreateCopy(ctx, copyRow); err != nil {
		t.Fatalf("failed to create copy: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		if err := tx.CreateLoan(ctx, persistence.Loan{
			ID:         "loan-1",
			MemberID:   "member-1",
			CopyID:     "copy-1",
			BorrowedAt: storeTestTime,
			DueDate:    storeTestTime.AddDate(0, 0, 14),
			Status:     circulation.LoanActive,
		}); err != nil {
			return err
		}
		if err := tx.UpdateCopyStatus(ctx, "copy-1", circulation.CopyLoaned); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}

	if _, err := store.GetLoan(ctx, "loan-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("rolled back loan must not persist, got %v", err)
	}
	fresh, err := store.GetCopy(ctx, "copy-1")
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if fresh.Status != circulation.CopyAvailable {
		t.Fatalf("rolled back status change must not persist, got %s", fresh.Status)
	}
}

func TestStore_CreateLoan_OneActivePerCopy(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	loan := persistence.Loan{
		ID:         "loan-1",
		MemberID:   "member-1",
		CopyID:     "copy-1",
		BorrowedAt: storeTestTime,
		DueDate:    storeTestTime.AddDate(0, 0, 14),
		Status:     circulation.LoanActive,
	}
	if err := store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		return tx.CreateLoan(ctx, loan)
	}); err != nil {
		t.Fatalf("failed to create loan: %v", err)
	}

	second := loan
	second.ID = "loan-2"
	second.MemberID = "member-2"
	err := store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		return tx.CreateLoan(ctx, second)
	})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for a second active loan on one copy, got %v", err)
	}
}

func TestStore_NextQueuePosition_NeverReusesPositions(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ctx := context.Background()

	var positions []int
	if err := store.WithinTx(ctx, func(tx persistence.CirculationTx) error {
		for i := 0; i < 3; i++ {
			position, err := tx.NextQueuePosition(ctx, "book-1")
			if err != nil {
				return err
			}
			positions = append(positions, position)
		}
		other, err := tx.NextQueuePosition(ctx, "book-2")
		if err != nil {
			return err
		}
		if other != 1 {
			t.Fatalf("expected an independent counter per book, got %d", other)
		}
		return nil
	}); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	for i, position := range positions {
		if position != i+1 {
			t.Fatalf("expected position %d, got %d", i+1, position)
		}
	}
}
