package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/rewear/rewear/internal/calculator"
	"github.com/rewear/rewear/internal/models"
)

// Complete finishes a confirmed swap and settles points and impact.
//
// actor may be empty when the platform completes the swap on nobody's
// behalf. Completing an already completed swap is a no-op.
func (m *Machine) Complete(sw *models.Swap, actor string, now time.Time) (Result, error) {
	if actor != "" {
		if _, err := requireParty(sw, actor); err != nil {
			return Result{}, err
		}
	}
	if sw.Status == models.StatusCompleted {
		return Result{}, nil
	}

	var res Result
	if err := settle(sw, &res, actor, false, now); err != nil {
		return Result{}, err
	}
	return res, nil
}

// settle computes the rewards, moves the swap to completed and emits one
// ledger credit per party. Rewards are computed before the status changes so
// a calculation error leaves the swap untouched.
func settle(sw *models.Swap, res *Result, actor string, automatic bool, now time.Time) error {
	if err := checkTransition(sw, models.StatusCompleted); err != nil {
		return err
	}
	if sw.PointsCalculation.PointsAwarded {
		return fmt.Errorf("%w: points for swap %s were already awarded", models.ErrConflict, sw.SwapID)
	}

	req, prov := sw.Requester.Item, sw.Provider.Item
	impact, err := calculator.CalculateImpact(req.CarbonSaving, prov.CarbonSaving)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	elapsed := now.Sub(sw.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	award, err := calculator.CalculatePoints(
		calculator.SwapSide{EstimatedValue: req.EstimatedValue, CarbonSaving: req.CarbonSaving},
		calculator.SwapSide{EstimatedValue: prov.EstimatedValue, CarbonSaving: prov.CarbonSaving},
		elapsed,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	details := "Swap completed"
	if automatic {
		details = "Swap completed automatically after positive ratings"
	}
	if err := updateStatus(sw, res, models.StatusCompleted, actor, details, automatic, now); err != nil {
		return err
	}

	calculatedAt := now
	sw.EnvironmentalImpact = models.EnvironmentalImpact{
		TotalCarbonSaved: impact.TotalCarbonSaved,
		WaterSaved:       impact.WaterSaved,
		WasteReduced:     impact.WasteReduced,
		CalculatedAt:     &calculatedAt,
	}
	sw.PointsCalculation = models.PointsCalculation{
		BasePoints: models.PartyPoints{Requester: award.RequesterBase, Provider: award.ProviderBase},
		BonusPoints: models.BonusPoints{
			Sustainability: award.SustainabilityBonus,
			Quality:        award.QualityBonus,
			Speed:          award.SpeedBonus,
		},
		TotalPoints:   models.PartyPoints{Requester: award.RequesterTotal, Provider: award.ProviderTotal},
		PointsAwarded: true,
	}
	hours := elapsed.Hours()
	sw.Analytics.CompletionTimeHours = &hours

	res.Credits = append(res.Credits,
		models.LedgerCredit{
			SwapID:      sw.SwapID,
			UserID:      sw.Requester.UserID,
			Points:      award.RequesterTotal,
			Swaps:       1,
			CarbonSaved: req.CarbonSaving,
		},
		models.LedgerCredit{
			SwapID:      sw.SwapID,
			UserID:      sw.Provider.UserID,
			Points:      award.ProviderTotal,
			Swaps:       1,
			CarbonSaved: prov.CarbonSaving,
		},
	)
	return nil
}

// DisputeReference builds the identifier handed back when a dispute is raised.
func DisputeReference(swapID string, at time.Time) string {
	return fmt.Sprintf("DISP-%s-%d", swapID, at.UnixMilli())
}

// Dispute freezes a swap pending manual resolution.
func (m *Machine) Dispute(sw *models.Swap, userID, reason string, evidence []string, now time.Time) (Result, error) {
	var res Result

	if _, err := requireParty(sw, userID); err != nil {
		return res, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return res, fmt.Errorf("%w: a dispute reason is required", models.ErrValidation)
	}
	if err := updateStatus(sw, &res, models.StatusDisputed, userID, fmt.Sprintf("Dispute raised: %s", reason), false, now); err != nil {
		return Result{}, err
	}

	var kept []string
	for _, e := range evidence {
		if e = strings.TrimSpace(e); e != "" {
			kept = append(kept, e)
		}
	}
	sw.DisputeResolution = &models.DisputeResolution{
		IsDisputed:       true,
		DisputeReason:    reason,
		DisputedBy:       userID,
		DisputeTimestamp: now,
		Evidence:         kept,
	}
	return res, nil
}
