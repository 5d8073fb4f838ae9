package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SwapStatus is the lifecycle state of a swap.
type SwapStatus string

const (
	StatusPending        SwapStatus = "pending"
	StatusAccepted       SwapStatus = "accepted"
	StatusDeclined       SwapStatus = "declined"
	StatusMethodSelected SwapStatus = "method_selected"
	StatusItemsPrepared  SwapStatus = "items_prepared"
	StatusInTransit      SwapStatus = "in_transit"
	StatusDelivered      SwapStatus = "delivered"
	StatusConfirmed      SwapStatus = "confirmed"
	StatusCompleted      SwapStatus = "completed"
	StatusDisputed       SwapStatus = "disputed"
	StatusCancelled      SwapStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []SwapStatus{
	StatusPending,
	StatusAccepted,
	StatusDeclined,
	StatusMethodSelected,
	StatusItemsPrepared,
	StatusInTransit,
	StatusDelivered,
	StatusConfirmed,
	StatusCompleted,
	StatusDisputed,
	StatusCancelled,
}

var progressByStatus = map[SwapStatus]int{
	StatusPending:        10,
	StatusAccepted:       20,
	StatusMethodSelected: 30,
	StatusItemsPrepared:  50,
	StatusInTransit:      70,
	StatusDelivered:      85,
	StatusConfirmed:      95,
	StatusCompleted:      100,
	StatusDisputed:       40,
	StatusCancelled:      0,
	StatusDeclined:       0,
}

// Valid reports whether s is a known status.
func (s SwapStatus) Valid() bool {
	_, ok := progressByStatus[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
// Disputes are resolved outside the swap core, so disputed is terminal here.
func (s SwapStatus) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusCompleted, StatusDisputed:
		return true
	}
	return false
}

// Progress is the cosmetic completion percentage shown to users.
func (s SwapStatus) Progress() int {
	return progressByStatus[s]
}

// ParseSwapStatus converts user input into a SwapStatus.
func ParseSwapStatus(v string) (SwapStatus, error) {
	s := SwapStatus(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
	}
	return s, nil
}

// Role identifies which side of a swap a user is on.
type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleRequester {
		return RoleProvider
	}
	return RoleRequester
}

// ItemSnapshot is what a party put on the table, copied from the catalog
// when the swap was created. It is never refreshed.
type ItemSnapshot struct {
	ItemID         string   `json:"itemId"`
	Title          string   `json:"title"`
	Images         []string `json:"images"`
	EstimatedValue float64  `json:"estimatedValue"`
	CarbonSaving   float64  `json:"carbonSaving"`
}

// Party is one side of a swap.
type Party struct {
	UserID   string       `json:"userId"`
	Username string       `json:"username"`
	Item     ItemSnapshot `json:"item"`
}

// TimelineEntry is one line of the swap's audit trail.
type TimelineEntry struct {
	Event       string    `json:"event"`
	Timestamp   time.Time `json:"timestamp"`
	PerformedBy string    `json:"performedBy"`
	Details     string    `json:"details"`

	// Automatic is set when the state machine produced the entry as a
	// consequence of PerformedBy's action rather than as the action itself.
	Automatic bool `json:"automatic,omitempty"`
}

// PartyPoints holds one number per party.
type PartyPoints struct {
	Requester float64 `json:"requester"`
	Provider  float64 `json:"provider"`
}

// BonusPoints are awarded identically to both parties.
type BonusPoints struct {
	Sustainability float64 `json:"sustainabilityBonus"`
	Quality        float64 `json:"qualityBonus"`
	Speed          float64 `json:"speedBonus"`
}

// PointsCalculation is the settled points breakdown.
type PointsCalculation struct {
	BasePoints    PartyPoints `json:"basePoints"`
	BonusPoints   BonusPoints `json:"bonusPoints"`
	TotalPoints   PartyPoints `json:"totalPoints"`
	PointsAwarded bool        `json:"pointsAwarded"`
}

// EnvironmentalImpact is derived from the two item snapshots at completion.
type EnvironmentalImpact struct {
	TotalCarbonSaved float64    `json:"totalCarbonSaved"`
	WaterSaved       float64    `json:"waterSaved"`
	WasteReduced     float64    `json:"wasteReduced"`
	CalculatedAt     *time.Time `json:"calculatedAt,omitempty"`
}

// DisputeResolution records a raised dispute. Resolution is filled in by
// whoever resolves it outside the swap core.
type DisputeResolution struct {
	IsDisputed       bool      `json:"isDisputed"`
	DisputeReason    string    `json:"disputeReason"`
	DisputedBy       string    `json:"disputedBy"`
	DisputeTimestamp time.Time `json:"disputeTimestamp"`
	Evidence         []string  `json:"evidence,omitempty"`
	Resolution       string    `json:"resolution,omitempty"`
}

// Analytics are timing and satisfaction figures for platform reporting.
type Analytics struct {
	ResponseTimeMinutes   *float64 `json:"responseTime,omitempty"`
	CompletionTimeHours   *float64 `json:"completionTime,omitempty"`
	UserSatisfactionScore *float64 `json:"userSatisfactionScore,omitempty"`
}

// Swap is the aggregate root for one negotiated exchange.
type Swap struct {
	// SwapID is the human-shareable identifier, e.g. SW-1718000000000-1a2b3c4d.
	SwapID string `json:"swapId"`

	Requester Party `json:"requester"`
	Provider  Party `json:"provider"`

	Status SwapStatus `json:"status"`

	// ExchangeMethod is nil until a method is selected.
	ExchangeMethod *ExchangeMethod `json:"exchangeMethod,omitempty"`

	Verification        Verification        `json:"verification"`
	PointsCalculation   PointsCalculation   `json:"pointsCalculation"`
	EnvironmentalImpact EnvironmentalImpact `json:"environmentalImpact"`

	// Timeline only grows. Entries are never edited or reordered.
	Timeline []TimelineEntry `json:"timeline"`

	DisputeResolution *DisputeResolution `json:"disputeResolution,omitempty"`
	Analytics         Analytics          `json:"analytics"`

	// Version is owned by the store and advances on every update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSwapID generates a swap identifier.
func NewSwapID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("SW-%d-%s", now.UnixMilli(), suffix)
}

// NewSwap builds a pending swap between two parties.
func NewSwap(requester, provider Party, now time.Time) (*Swap, error) {
	if requester.UserID == "" || provider.UserID == "" {
		return nil, fmt.Errorf("%w: requester and provider are required", ErrValidation)
	}
	if requester.UserID == provider.UserID {
		return nil, ErrSelfSwap
	}
	if err := requester.Item.validate(); err != nil {
		return nil, err
	}
	if err := provider.Item.validate(); err != nil {
		return nil, err
	}
	return &Swap{
		SwapID:    NewSwapID(now),
		Requester: requester,
		Provider:  provider,
		Status:    StatusPending,
		Timeline:  []TimelineEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (i ItemSnapshot) validate() error {
	if i.ItemID == "" {
		return fmt.Errorf("%w: item id is required", ErrValidation)
	}
	if i.EstimatedValue < 0 {
		return fmt.Errorf("%w: item %s has a negative value", ErrValidation, i.ItemID)
	}
	if i.CarbonSaving < 0 {
		return fmt.Errorf("%w: item %s has a negative carbon saving", ErrValidation, i.ItemID)
	}
	return nil
}

// ProgressPercentage derives progress from the current status.
func (s *Swap) ProgressPercentage() int {
	return s.Status.Progress()
}

// RoleOf resolves userID to a role. ok is false for non-parties.
func (s *Swap) RoleOf(userID string) (role Role, ok bool) {
	switch {
	case userID == "":
		return "", false
	case userID == s.Requester.UserID:
		return RoleRequester, true
	case userID == s.Provider.UserID:
		return RoleProvider, true
	}
	return "", false
}

// Party returns the party for role.
func (s *Swap) Party(role Role) *Party {
	if role == RoleRequester {
		return &s.Requester
	}
	return &s.Provider
}

// IsParty reports whether userID is the requester or the provider.
func (s *Swap) IsParty(userID string) bool {
	_, ok := s.RoleOf(userID)
	return ok
}

// AppendTimeline adds an entry to the audit trail.
func (s *Swap) AppendTimeline(entry TimelineEntry) {
	s.Timeline = append(s.Timeline, entry)
}
