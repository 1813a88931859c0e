package circulation

import (
	"fmt"
	"sort"
)

// QueueEntry is one WAITING reservation's place in a book's FIFO queue.
type QueueEntry struct {
	ReservationID string
	MemberID      string
	Position      int
}

// NextInLine returns the entry with the smallest position. Positions are
// assigned once and never reused, so the smallest position is the earliest
// reservation still waiting.
func NextInLine(entries []QueueEntry) (QueueEntry, bool) {
	if len(entries) == 0 {
		return QueueEntry{}, false
	}
	next := entries[0]
	for _, entry := range entries[1:] {
		if entry.Position < next.Position {
			next = entry
		}
	}
	return next, true
}

// RenumberAfterCancel shifts the queue down after a WAITING reservation at
// the vacated position is cancelled: every entry with a strictly greater
// position is decremented by one. Relative order is unchanged. The caller
// applies this only when the cancelled reservation was itself WAITING; a
// READY_FOR_PICKUP reservation's position is no longer competing for order,
// so cancelling it vacates no slot.
func RenumberAfterCancel(entries []QueueEntry, vacated int) []QueueEntry {
	out := make([]QueueEntry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].Position > vacated {
			out[i].Position--
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ValidateQueue checks the queue invariant: pairwise-distinct positions, all
// positive.
func ValidateQueue(entries []QueueEntry) error {
	seen := make(map[int]string, len(entries))
	for _, entry := range entries {
		if entry.Position < 1 {
			return fmt.Errorf("circulation: reservation %s has non-positive position %d", entry.ReservationID, entry.Position)
		}
		if other, ok := seen[entry.Position]; ok {
			return fmt.Errorf("circulation: reservations %s and %s share position %d", other, entry.ReservationID, entry.Position)
		}
		seen[entry.Position] = entry.ReservationID
	}
	return nil
}
