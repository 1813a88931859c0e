package testfixtures

import (
	"context"
	"testing"

	"github.com/example/library-circulation/internal/application"
	"github.com/example/library-circulation/internal/persistence/memory"
)

func TestServiceFactoryNewMemberService(t *testing.T) {
	factory := NewServiceFactory()
	store := memory.NewStore()

	svc := factory.NewMemberService(store, nil)

	member, err := svc.Register(context.Background(), application.RegisterMemberParams{
		Name:  "Hanako",
		Email: "hanako@example.com",
		PIN:   "4821",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if member.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", member.ID)
	}
	if !member.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), member.CreatedAt)
	}
	if member.MaxActiveLoans != 5 {
		t.Fatalf("expected default loan allowance 5, got %d", member.MaxActiveLoans)
	}
}

func TestServiceFactoryAppliesPolicy(t *testing.T) {
	clock := NewClock(ReferenceTime())
	factory := NewServiceFactory(
		WithClock(clock),
		WithIDGenerator(NewIDGenerator("loan")),
		WithPolicy(application.CirculationPolicy{
			LoanDurationDays:         7,
			DailyPenaltyFee:          50,
			PenaltyBlockingThreshold: 500,
			PickupWindowDays:         2,
		}),
	)

	if factory.Policy.LoanDurationDays != 7 {
		t.Fatalf("expected loan duration 7, got %d", factory.Policy.LoanDurationDays)
	}
	if factory.IDGenerator.Next() != "loan-1" {
		t.Fatalf("expected the provided generator to be used")
	}
	if !factory.Clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected the provided clock to be used")
	}
}
