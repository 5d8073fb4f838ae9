package lifecycle

import (
	"fmt"
	"time"

	"github.com/rewear/rewear/internal/models"
)

// ExpiryPolicy decides whether an idle swap should be closed. It returns the
// status to move to and a reason, or an empty status to leave sw alone.
type ExpiryPolicy interface {
	Expire(sw *models.Swap, now time.Time) (models.SwapStatus, string)
}

// NeverExpire keeps swaps open indefinitely.
type NeverExpire struct{}

func (NeverExpire) Expire(*models.Swap, time.Time) (models.SwapStatus, string) {
	return "", ""
}

// DurationExpiry cancels negotiations and disputes shipments that have been
// idle for too long. A zero duration disables that rule.
type DurationExpiry struct {
	Pending   time.Duration
	InTransit time.Duration
}

func (d DurationExpiry) Expire(sw *models.Swap, now time.Time) (models.SwapStatus, string) {
	idle := now.Sub(sw.UpdatedAt)
	switch sw.Status {
	case models.StatusPending, models.StatusAccepted:
		if d.Pending > 0 && idle > d.Pending {
			return models.StatusCancelled, fmt.Sprintf("Expired after %s without progress", d.Pending)
		}
	case models.StatusInTransit, models.StatusDelivered:
		if d.InTransit > 0 && idle > d.InTransit {
			return models.StatusDisputed, fmt.Sprintf("Shipment unconfirmed after %s", d.InTransit)
		}
	}
	return "", ""
}
