package circulation

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

func TestNextInLine(t *testing.T) {
	t.Run("empty queue has no next", func(t *testing.T) {
		if _, ok := NextInLine(nil); ok {
			t.Fatal("expected no entry")
		}
	})

	t.Run("smallest position wins regardless of slice order", func(t *testing.T) {
		entries := []QueueEntry{
			{ReservationID: "r-3", MemberID: "m-3", Position: 3},
			{ReservationID: "r-1", MemberID: "m-1", Position: 1},
			{ReservationID: "r-2", MemberID: "m-2", Position: 2},
		}
		next, ok := NextInLine(entries)
		if !ok || next.ReservationID != "r-1" {
			t.Fatalf("got %+v, ok=%v", next, ok)
		}
	})
}

// Fixed scenario from the queue design review: four reservations, position 2
// leaves. When the cancelled reservation was WAITING, the queue closes the
// gap; when it was READY_FOR_PICKUP, its position is already inactive and
// the waiting queue keeps its numbering untouched.
func TestCancelRenumberingScenario(t *testing.T) {
	waiting := func() []QueueEntry {
		return []QueueEntry{
			{ReservationID: "r-1", MemberID: "alice", Position: 1},
			{ReservationID: "r-3", MemberID: "carol", Position: 3},
			{ReservationID: "r-4", MemberID: "dave", Position: 4},
		}
	}

	t.Run("cancelled reservation was waiting at position 2", func(t *testing.T) {
		got := RenumberAfterCancel(waiting(), 2)
		want := []QueueEntry{
			{ReservationID: "r-1", MemberID: "alice", Position: 1},
			{ReservationID: "r-3", MemberID: "carol", Position: 2},
			{ReservationID: "r-4", MemberID: "dave", Position: 3},
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})

	t.Run("cancelled reservation was ready for pickup", func(t *testing.T) {
		// The workflow skips renumbering entirely: no WAITING slot was
		// vacated, so the waiting members keep their numbers.
		got := waiting()
		want := []QueueEntry{
			{ReservationID: "r-1", MemberID: "alice", Position: 1},
			{ReservationID: "r-3", MemberID: "carol", Position: 3},
			{ReservationID: "r-4", MemberID: "dave", Position: 4},
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
		// Applying the unconditional interpretation here would have produced
		// positions 1,2,3 and silently shifted the live queue.
		shifted := RenumberAfterCancel(waiting(), 2)
		if reflect.DeepEqual(shifted, want) {
			t.Fatal("unconditional renumbering should differ from the pinned behavior")
		}
	})
}

func TestRenumberAfterCancelProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		count := rapid.IntRange(1, 12).Draw(t, "count")

		entries := make([]QueueEntry, 0, count)
		for i := 0; i < count; i++ {
			entries = append(entries, QueueEntry{
				ReservationID: rapid.StringMatching(`r-[0-9a-f]{6}`).Draw(t, "id"),
				MemberID:      rapid.StringMatching(`m-[0-9a-f]{6}`).Draw(t, "member"),
				Position:      i + 1,
			})
		}

		cancelIdx := rapid.IntRange(0, count-1).Draw(t, "cancelIdx")
		vacated := entries[cancelIdx].Position
		remaining := append(append([]QueueEntry(nil), entries[:cancelIdx]...), entries[cancelIdx+1:]...)

		got := RenumberAfterCancel(remaining, vacated)

		if err := ValidateQueue(got); err != nil {
			t.Fatalf("queue invariant broken: %v", err)
		}
		if len(got) != len(remaining) {
			t.Fatalf("renumbering changed queue size: %d -> %d", len(remaining), len(got))
		}

		// Positions are contiguous again.
		for i, entry := range got {
			if entry.Position != i+1 {
				t.Fatalf("expected contiguous positions, got %+v", got)
			}
		}

		// Relative order of the surviving reservations is unchanged.
		wantOrder := make([]string, 0, len(remaining))
		for _, entry := range remaining {
			wantOrder = append(wantOrder, entry.ReservationID)
		}
		gotOrder := make([]string, 0, len(got))
		for _, entry := range got {
			gotOrder = append(gotOrder, entry.ReservationID)
		}
		if !reflect.DeepEqual(gotOrder, wantOrder) {
			t.Fatalf("relative order changed: got %v, want %v", gotOrder, wantOrder)
		}
	})
}

func TestValidateQueue(t *testing.T) {
	if err := ValidateQueue([]QueueEntry{{ReservationID: "a", Position: 1}, {ReservationID: "b", Position: 1}}); err == nil {
		t.Fatal("expected duplicate position error")
	}
	if err := ValidateQueue([]QueueEntry{{ReservationID: "a", Position: 0}}); err == nil {
		t.Fatal("expected non-positive position error")
	}
	if err := ValidateQueue([]QueueEntry{{ReservationID: "a", Position: 2}, {ReservationID: "b", Position: 5}}); err != nil {
		t.Fatalf("gaps are legal, got %v", err)
	}
}
