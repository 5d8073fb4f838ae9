// Package lifecycle implements the swap state machine.
//
// Every operation takes a loaded *models.Swap, checks the caller's role and
// the current status, mutates the aggregate in memory and reports what
// happened in a Result. Nothing here does I/O: persisting the aggregate and
// applying ledger credits is the caller's job, and a caller that gets an
// error must discard the aggregate.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/rewear/rewear/internal/models"
)

// validTransitions is the complete set of legal status edges.
var validTransitions = map[models.SwapStatus][]models.SwapStatus{
	models.StatusPending:        {models.StatusAccepted, models.StatusDeclined, models.StatusCancelled, models.StatusDisputed},
	models.StatusAccepted:       {models.StatusMethodSelected, models.StatusCancelled, models.StatusDisputed},
	models.StatusMethodSelected: {models.StatusItemsPrepared, models.StatusDisputed},
	models.StatusItemsPrepared:  {models.StatusInTransit, models.StatusDisputed},
	models.StatusInTransit:      {models.StatusDelivered, models.StatusConfirmed, models.StatusDisputed},
	models.StatusDelivered:      {models.StatusConfirmed, models.StatusDisputed},
	models.StatusConfirmed:      {models.StatusCompleted, models.StatusDisputed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.SwapStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is one applied status change.
type Transition struct {
	From      models.SwapStatus
	To        models.SwapStatus
	Automatic bool
}

// Result describes the effect of one operation on a swap.
type Result struct {
	// Changed is false when the operation was a no-op and nothing needs saving.
	Changed bool

	// Transitions are the status changes applied, in order.
	Transitions []Transition

	// Credits must be applied atomically with saving the swap.
	Credits []models.LedgerCredit
}

func checkTransition(sw *models.Swap, to models.SwapStatus) error {
	if !CanTransition(sw.Status, to) {
		return fmt.Errorf("%w: swap %s cannot move from %s to %s", models.ErrConflict, sw.SwapID, sw.Status, to)
	}
	return nil
}

// updateStatus is the single status mutator. It appends exactly one
// timeline entry per change.
func updateStatus(sw *models.Swap, res *Result, to models.SwapStatus, actor, details string, automatic bool, now time.Time) error {
	if err := checkTransition(sw, to); err != nil {
		return err
	}

	from := sw.Status
	sw.Status = to
	sw.AppendTimeline(models.TimelineEntry{
		Event:       fmt.Sprintf("Status changed to %s", to),
		Timestamp:   now,
		PerformedBy: actor,
		Details:     details,
		Automatic:   automatic,
	})

	res.Changed = true
	res.Transitions = append(res.Transitions, Transition{From: from, To: to, Automatic: automatic})
	return nil
}

func requireStatus(sw *models.Swap, action string, allowed ...models.SwapStatus) error {
	for _, s := range allowed {
		if sw.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while swap %s is %s", models.ErrConflict, action, sw.SwapID, sw.Status)
}

func requireParty(sw *models.Swap, userID string) (models.Role, error) {
	role, ok := sw.RoleOf(userID)
	if !ok {
		return "", fmt.Errorf("%w: user %q is not a party to swap %s", models.ErrForbidden, userID, sw.SwapID)
	}
	return role, nil
}
