package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewear/rewear/internal/models"
)

// SentConfirmation carries the optional shipping details for ConfirmSent.
type SentConfirmation struct {
	TrackingNumber    string
	ShippingService   string
	EstimatedDelivery *time.Time
}

// ReceivedConfirmation carries the receipt details for ConfirmReceived.
type ReceivedConfirmation struct {
	Condition          string
	SatisfactionRating *int
	Photos             []string
}

// ConfirmPrepared records that the caller's item is ready to hand over.
// When both items are ready the swap moves to items_prepared.
func (m *Machine) ConfirmPrepared(sw *models.Swap, userID string, photos []string, notes string, now time.Time) (Result, error) {
	var res Result

	role, err := requireParty(sw, userID)
	if err != nil {
		return res, err
	}
	if err := requireStatus(sw, "confirm preparation", models.StatusMethodSelected, models.StatusItemsPrepared); err != nil {
		return res, err
	}

	sw.Verification.For(role).MarkPrepared(notes, now)
	if len(photos) > 0 {
		sw.Verification.Photos.BeforeShipping.Set(role, photos)
	}
	res.Changed = true

	if sw.Status == models.StatusMethodSelected && sw.Verification.BothPrepared() {
		if err := updateStatus(sw, &res, models.StatusItemsPrepared, userID, "Both items prepared", true, now); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// ConfirmSent records that the caller has handed over or shipped its item.
// When both items are on their way the swap moves to in_transit.
func (m *Machine) ConfirmSent(sw *models.Swap, userID string, in SentConfirmation, now time.Time) (Result, error) {
	var res Result

	role, err := requireParty(sw, userID)
	if err != nil {
		return res, err
	}
	carrier, err := models.ParseCarrier(in.ShippingService)
	if err != nil {
		return res, err
	}
	if err := requireStatus(sw, "confirm sending", models.StatusItemsPrepared, models.StatusInTransit); err != nil {
		return res, err
	}

	tracking := strings.TrimSpace(in.TrackingNumber)
	proof := tracking
	if proof == "" {
		proof = "Hand delivery"
	}
	sw.Verification.For(role).MarkSent(proof, now)

	if method := sw.ExchangeMethod; method != nil && method.Type == models.MethodPostal && method.Postal != nil {
		recordShipment(method.Postal, role, tracking, carrier, in)
	}

	res.Changed = true

	if sw.Status == models.StatusItemsPrepared && sw.Verification.BothSent() {
		if err := updateStatus(sw, &res, models.StatusInTransit, userID, "Both items sent", true, now); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// recordShipment stores tracking details for the direction role ships in.
func recordShipment(p *models.PostalDetails, role models.Role, tracking string, carrier models.Carrier, in SentConfirmation) {
	if role == models.RoleRequester {
		if tracking != "" {
			p.TrackingNumbers.RequesterToProvider = tracking
		}
		if in.EstimatedDelivery != nil {
			eta := *in.EstimatedDelivery
			p.EstimatedDelivery.RequesterItem = &eta
		}
	} else {
		if tracking != "" {
			p.TrackingNumbers.ProviderToRequester = tracking
		}
		if in.EstimatedDelivery != nil {
			eta := *in.EstimatedDelivery
			p.EstimatedDelivery.ProviderItem = &eta
		}
	}
	if in.ShippingService != "" {
		p.ShippingService = carrier
	}
}

// ConfirmReceived records that the caller has the other party's item.
// When both items are received the swap moves to confirmed, and on to
// completed if both ratings meet the auto-complete threshold.
func (m *Machine) ConfirmReceived(sw *models.Swap, userID string, in ReceivedConfirmation, now time.Time) (Result, error) {
	var res Result

	role, err := requireParty(sw, userID)
	if err != nil {
		return res, err
	}
	condition := strings.TrimSpace(in.Condition)
	if condition == "" {
		return res, fmt.Errorf("%w: item condition is required", models.ErrValidation)
	}
	if r := in.SatisfactionRating; r != nil && (*r < 1 || *r > 5) {
		return res, fmt.Errorf("%w: satisfaction rating must be between 1 and 5, got %d", models.ErrValidation, *r)
	}
	if err := requireStatus(sw, "confirm receipt", models.StatusInTransit, models.StatusDelivered); err != nil {
		return res, err
	}

	set := sw.Verification.For(role)
	set.MarkReceived(condition, now)
	if in.SatisfactionRating != nil {
		rating := *in.SatisfactionRating
		set.SatisfactionRating = &rating
	}
	if len(in.Photos) > 0 {
		sw.Verification.Photos.AfterReceiving.Set(role, in.Photos)
	}
	res.Changed = true

	if !sw.Verification.BothReceived() {
		return res, nil
	}

	if err := updateStatus(sw, &res, models.StatusConfirmed, userID, "Both items received", true, now); err != nil {
		return Result{}, err
	}
	sw.Analytics.UserSatisfactionScore = satisfactionScore(&sw.Verification)

	if threshold := m.policy.AutoCompleteMinRating; threshold > 0 && sw.Verification.BothRatedAtLeast(threshold) {
		if err := settle(sw, &res, userID, true, now); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// satisfactionScore averages whichever ratings were given.
func satisfactionScore(v *models.Verification) *float64 {
	var sum, n int
	for _, r := range []*int{v.RequesterConfirmations.SatisfactionRating, v.ProviderConfirmations.SatisfactionRating} {
		if r != nil {
			sum += *r
			n++
		}
	}
	if n == 0 {
		return nil
	}
	score := float64(sum) / float64(n)
	return &score
}
