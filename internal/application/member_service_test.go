package application

import (
	"context"
	"errors"
	"testing"

	"github.com/example/library-circulation/internal/persistence"
	"github.com/example/library-circulation/internal/persistence/memory"
)

func TestMemberService_Register_CreatesActiveMember(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := NewMemberService(store, 5, sequentialIDs("member"), fixedNow(testTime))

	member, err := svc.Register(context.Background(), RegisterMemberParams{
		Name:  "  Hanako Yamada  ",
		Email: "Hanako@Example.com",
		PIN:   "123456",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if member.Name != "Hanako Yamada" {
		t.Fatalf("expected trimmed name, got %q", member.Name)
	}
	if member.Email != "hanako@example.com" {
		t.Fatalf("expected lowercased email, got %q", member.Email)
	}
	if member.Status != persistence.MemberActive {
		t.Fatalf("expected ACTIVE member, got %s", member.Status)
	}
	if member.MaxActiveLoans != 5 {
		t.Fatalf("expected default allowance of 5, got %d", member.MaxActiveLoans)
	}
	if member.PINHash == "" || member.PINHash == "123456" {
		t.Fatalf("expected hashed PIN, got %q", member.PINHash)
	}
	if err := VerifyPIN(member.PINHash, "123456"); err != nil {
		t.Fatalf("stored hash must verify the original PIN: %v", err)
	}
	if err := VerifyPIN(member.PINHash, "654321"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN for wrong PIN, got %v", err)
	}
}

func TestMemberService_Register_ValidatesInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		params    RegisterMemberParams
		wantField string
	}{
		{
			name:      "missing name",
			params:    RegisterMemberParams{Email: "a@example.com", PIN: "1234"},
			wantField: "name",
		},
		{
			name:      "missing email",
			params:    RegisterMemberParams{Name: "A", PIN: "1234"},
			wantField: "email",
		},
		{
			name:      "malformed email",
			params:    RegisterMemberParams{Name: "A", Email: "not-an-email", PIN: "1234"},
			wantField: "email",
		},
		{
			name:      "pin too short",
			params:    RegisterMemberParams{Name: "A", Email: "a@example.com", PIN: "123"},
			wantField: "pin",
		},
		{
			name:      "pin not numeric",
			params:    RegisterMemberParams{Name: "A", Email: "a@example.com", PIN: "12ab56"},
			wantField: "pin",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := memory.NewStore()
			svc := NewMemberService(store, 5, sequentialIDs("member"), fixedNow(testTime))

			_, err := svc.Register(context.Background(), tc.params)

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.wantField]; !ok {
				t.Fatalf("expected error on field %q, got %v", tc.wantField, vErr.FieldErrors)
			}
		})
	}
}

func TestMemberService_Register_DuplicateEmailRejected(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	svc := NewMemberService(store, 5, sequentialIDs("member"), fixedNow(testTime))

	params := RegisterMemberParams{Name: "A", Email: "dupe@example.com", PIN: "1234"}
	if _, err := svc.Register(context.Background(), params); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	params.Name = "B"
	if _, err := svc.Register(context.Background(), params); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestMemberService_Update(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	mustCreateMember(t, store, activeMember("member-1"))

	updatedAt := testTime.AddDate(0, 0, 1)
	svc := NewMemberService(store, 5, sequentialIDs("member"), fixedNow(updatedAt))

	member, err := svc.Update(context.Background(), UpdateMemberParams{
		MemberID:       "member-1",
		Name:           "Renamed",
		Status:         persistence.MemberSuspended,
		MaxActiveLoans: 2,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if member.Name != "Renamed" || member.Status != persistence.MemberSuspended || member.MaxActiveLoans != 2 {
		t.Fatalf("unexpected member after update: %+v", member)
	}
	if !member.UpdatedAt.Equal(updatedAt) {
		t.Fatalf("expected updated timestamp %v, got %v", updatedAt, member.UpdatedAt)
	}

	_, err = svc.Update(context.Background(), UpdateMemberParams{
		MemberID:       "member-1",
		Name:           "",
		Status:         persistence.MemberStatus("UNKNOWN"),
		MaxActiveLoans: 0,
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"name", "status", "max_active_loans"} {
		if _, ok := vErr.FieldErrors[field]; !ok {
			t.Fatalf("expected error on field %q, got %v", field, vErr.FieldErrors)
		}
	}

	if _, err := svc.Update(context.Background(), UpdateMemberParams{MemberID: "ghost", Name: "X", Status: persistence.MemberActive, MaxActiveLoans: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
