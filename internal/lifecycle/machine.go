package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewear/rewear/internal/models"
)

// DefaultAutoCompleteMinRating is the lowest satisfaction rating from both
// parties that completes a swap without an explicit CompleteSwap call.
const DefaultAutoCompleteMinRating = 3

// Policy configures the negotiable parts of the lifecycle.
type Policy struct {
	// AllowMethodReselection lets either party replace the exchange method
	// while the swap is still method_selected.
	AllowMethodReselection bool

	// AutoCompleteMinRating enables automatic completion when both ratings
	// are at least this value. Zero or less disables it.
	AutoCompleteMinRating int

	// Expiry decides whether an idle swap should be closed. Nil never expires.
	Expiry ExpiryPolicy
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		AutoCompleteMinRating: DefaultAutoCompleteMinRating,
		Expiry:                NeverExpire{},
	}
}

// Machine applies lifecycle operations under a Policy.
type Machine struct {
	policy Policy
}

// New creates a Machine.
func New(policy Policy) *Machine {
	if policy.Expiry == nil {
		policy.Expiry = NeverExpire{}
	}
	return &Machine{policy: policy}
}

// Policy returns the machine's policy.
func (m *Machine) Policy() Policy {
	return m.policy
}

// Create builds a pending swap and records the request on its timeline.
func (m *Machine) Create(requester, provider models.Party, message string, now time.Time) (*models.Swap, error) {
	sw, err := models.NewSwap(requester, provider, now)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = "Initial swap request"
	}
	sw.AppendTimeline(models.TimelineEntry{
		Event:       "Swap request created",
		Timestamp:   now,
		PerformedBy: requester.UserID,
		Details:     message,
	})
	return sw, nil
}

// Respond lets the provider accept or decline a pending request.
func (m *Machine) Respond(sw *models.Swap, userID string, accept bool, message string, now time.Time) (Result, error) {
	var res Result

	role, err := requireParty(sw, userID)
	if err != nil {
		return res, err
	}
	if role != models.RoleProvider {
		return res, fmt.Errorf("%w: only the provider can respond to this request", models.ErrForbidden)
	}

	to, verb := models.StatusDeclined, "declined"
	if accept {
		to, verb = models.StatusAccepted, "accepted"
	}
	if message == "" {
		message = fmt.Sprintf("Request %s", verb)
	}
	if err := updateStatus(sw, &res, to, userID, message, false, now); err != nil {
		return Result{}, err
	}

	minutes := now.Sub(sw.CreatedAt).Minutes()
	sw.Analytics.ResponseTimeMinutes = &minutes
	return res, nil
}

// SelectExchangeMethod records how the items will change hands.
func (m *Machine) SelectExchangeMethod(sw *models.Swap, userID string, method *models.ExchangeMethod, now time.Time) (Result, error) {
	var res Result

	if _, err := requireParty(sw, userID); err != nil {
		return res, err
	}
	if method != nil {
		cp := *method
		method = &cp
		method.Normalize()
	}
	if err := method.Validate(); err != nil {
		return res, err
	}

	if sw.Status == models.StatusMethodSelected {
		if !m.policy.AllowMethodReselection {
			return res, fmt.Errorf("%w: exchange method for swap %s is already selected", models.ErrConflict, sw.SwapID)
		}
		previous := sw.ExchangeMethod
		sw.ExchangeMethod = method
		details := fmt.Sprintf("Exchange method changed to %s", method.Type)
		if previous != nil {
			details = fmt.Sprintf("Exchange method changed from %s to %s", previous.Type, method.Type)
		}
		sw.AppendTimeline(models.TimelineEntry{
			Event:       "Exchange method changed",
			Timestamp:   now,
			PerformedBy: userID,
			Details:     details,
		})
		res.Changed = true
		return res, nil
	}

	if err := updateStatus(sw, &res, models.StatusMethodSelected, userID,
		fmt.Sprintf("Exchange method selected: %s", method.Type), false, now); err != nil {
		return Result{}, err
	}
	sw.ExchangeMethod = method
	return res, nil
}

// MarkDelivered records that the carrier reports both items delivered.
func (m *Machine) MarkDelivered(sw *models.Swap, userID string, now time.Time) (Result, error) {
	var res Result
	if _, err := requireParty(sw, userID); err != nil {
		return res, err
	}
	if err := updateStatus(sw, &res, models.StatusDelivered, userID, "Items delivered", false, now); err != nil {
		return Result{}, err
	}
	return res, nil
}

// UpdateTracking appends carrier updates to the timeline without changing status.
func (m *Machine) UpdateTracking(sw *models.Swap, userID string, updates []string, now time.Time) (Result, error) {
	var res Result
	if _, err := requireParty(sw, userID); err != nil {
		return res, err
	}

	var messages []string
	for _, u := range updates {
		if u = strings.TrimSpace(u); u != "" {
			messages = append(messages, u)
		}
	}
	if len(messages) == 0 {
		return res, fmt.Errorf("%w: at least one tracking update is required", models.ErrValidation)
	}
	if err := requireStatus(sw, "update tracking",
		models.StatusMethodSelected, models.StatusItemsPrepared, models.StatusInTransit, models.StatusDelivered); err != nil {
		return res, err
	}

	for _, msg := range messages {
		sw.AppendTimeline(models.TimelineEntry{
			Event:       "Tracking update",
			Timestamp:   now,
			PerformedBy: userID,
			Details:     msg,
		})
	}
	res.Changed = true
	return res, nil
}

// Cancel withdraws a swap before any logistics have been agreed.
func (m *Machine) Cancel(sw *models.Swap, userID, reason string, now time.Time) (Result, error) {
	var res Result
	if _, err := requireParty(sw, userID); err != nil {
		return res, err
	}
	details := strings.TrimSpace(reason)
	if details == "" {
		details = "Swap cancelled"
	}
	if err := updateStatus(sw, &res, models.StatusCancelled, userID, details, false, now); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ApplyExpiry closes sw if the expiry policy says it has been idle too long.
// actor is the caller whose request triggered the check and must be a party
// unless empty, which stands for the platform. The returned Result has
// Changed set only when the swap expired.
func (m *Machine) ApplyExpiry(sw *models.Swap, actor string, now time.Time) (Result, error) {
	var res Result
	if actor != "" {
		if _, err := requireParty(sw, actor); err != nil {
			return res, err
		}
	}
	to, reason := m.policy.Expiry.Expire(sw, now)
	if to == "" {
		return res, nil
	}
	if err := updateStatus(sw, &res, to, actor, reason, true, now); err != nil {
		return Result{}, err
	}
	if to == models.StatusDisputed {
		sw.DisputeResolution = &models.DisputeResolution{
			IsDisputed:       true,
			DisputeReason:    reason,
			DisputeTimestamp: now,
		}
	}
	return res, nil
}
