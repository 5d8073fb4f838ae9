package lifecycle

import (
	"errors"
	"math"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/rewear/rewear/internal/models"
)

const (
	alice = "user-alice"
	bob   = "user-bob"
	carol = "user-carol"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestSwap(t *testing.T, m *Machine) *models.Swap {
	t.Helper()
	sw, err := m.Create(
		models.Party{UserID: alice, Username: "alice", Item: models.ItemSnapshot{ItemID: "item-jacket", Title: "Denim jacket", EstimatedValue: 55, CarbonSaving: 4.2}},
		models.Party{UserID: bob, Username: "bob", Item: models.ItemSnapshot{ItemID: "item-boots", Title: "Leather boots", EstimatedValue: 45, CarbonSaving: 3.8}},
		"",
		t0,
	)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sw
}

func inPerson() *models.ExchangeMethod {
	return &models.ExchangeMethod{
		Type: models.MethodInPerson,
		InPerson: &models.InPersonDetails{
			MeetupLocation: models.Location{Name: "Cafe", Address: "1 Main St"},
			ScheduledTime:  t0.Add(24 * time.Hour),
		},
	}
}

func postal() *models.ExchangeMethod {
	addr := models.PostalAddress{Street: "1 Main St", City: "Springfield", ZipCode: "12345"}
	return &models.ExchangeMethod{
		Type:   models.MethodPostal,
		Postal: &models.PostalDetails{RequesterAddress: addr, ProviderAddress: addr},
	}
}

func intPtr(v int) *int { return &v }

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// expectKind fails unless err wraps want.
func expectKind(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

// expectEntries fails unless the timeline holds exactly n entries.
func expectEntries(t *testing.T, sw *models.Swap, n int) {
	t.Helper()
	if len(sw.Timeline) != n {
		t.Errorf("expected %d timeline entries, got %d", n, len(sw.Timeline))
	}
}

// advance drives sw to the target status through the public operations.
func advance(t *testing.T, m *Machine, sw *models.Swap, target models.SwapStatus) {
	t.Helper()
	now := sw.Timeline[len(sw.Timeline)-1].Timestamp
	step := func() time.Time { now = now.Add(time.Hour); return now }

	path := []struct {
		status models.SwapStatus
		apply  func() error
	}{
		{models.StatusAccepted, func() error { _, err := m.Respond(sw, bob, true, "", step()); return err }},
		{models.StatusMethodSelected, func() error { _, err := m.SelectExchangeMethod(sw, alice, inPerson(), step()); return err }},
		{models.StatusItemsPrepared, func() error {
			if _, err := m.ConfirmPrepared(sw, alice, nil, "", step()); err != nil {
				return err
			}
			_, err := m.ConfirmPrepared(sw, bob, nil, "", step())
			return err
		}},
		{models.StatusInTransit, func() error {
			if _, err := m.ConfirmSent(sw, alice, SentConfirmation{}, step()); err != nil {
				return err
			}
			_, err := m.ConfirmSent(sw, bob, SentConfirmation{}, step())
			return err
		}},
		{models.StatusDelivered, func() error { _, err := m.MarkDelivered(sw, alice, step()); return err }},
		{models.StatusConfirmed, func() error {
			if _, err := m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "good"}, step()); err != nil {
				return err
			}
			_, err := m.ConfirmReceived(sw, bob, ReceivedConfirmation{Condition: "good"}, step())
			return err
		}},
		{models.StatusCompleted, func() error { _, err := m.Complete(sw, alice, step()); return err }},
	}

	start := 0
	for i, p := range path {
		if p.status == sw.Status {
			start = i + 1
		}
	}
	for _, p := range path[start:] {
		if sw.Status == target {
			return
		}
		if err := p.apply(); err != nil {
			t.Fatalf("advancing to %s: %v", p.status, err)
		}
		if sw.Status != p.status {
			t.Fatalf("expected %s, got %s", p.status, sw.Status)
		}
	}
	if sw.Status != target {
		t.Fatalf("expected %s, got %s", target, sw.Status)
	}
}

func TestCreate(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)

	if sw.Status != models.StatusPending {
		t.Errorf("Expected status pending, got %s", sw.Status)
	}
	if !regexp.MustCompile(`^SW-\d+-[0-9a-f]{8}$`).MatchString(sw.SwapID) {
		t.Errorf("Unexpected swap ID format: %s", sw.SwapID)
	}
	if len(sw.Timeline) != 1 {
		t.Fatalf("Expected 1 timeline entry, got %d", len(sw.Timeline))
	}
	first := sw.Timeline[0]
	if first.Event != "Swap request created" || first.Details != "Initial swap request" || first.PerformedBy != alice {
		t.Errorf("Unexpected creation entry: %+v", first)
	}
	if got := sw.ProgressPercentage(); got != 10 {
		t.Errorf("Expected progress 10, got %d", got)
	}
}

func TestCreate_SelfSwap(t *testing.T) {
	m := New(DefaultPolicy())
	p := models.Party{UserID: alice, Item: models.ItemSnapshot{ItemID: "item-1"}}

	_, err := m.Create(p, p, "", t0)
	if err == nil {
		t.Fatal("Expected error for self swap")
	}
	expectKind(t, err, models.ErrValidation)
}

func TestCanTransition(t *testing.T) {
	legal := map[models.SwapStatus][]models.SwapStatus{
		models.StatusPending:        {models.StatusAccepted, models.StatusDeclined, models.StatusCancelled, models.StatusDisputed},
		models.StatusAccepted:       {models.StatusMethodSelected, models.StatusCancelled, models.StatusDisputed},
		models.StatusMethodSelected: {models.StatusItemsPrepared, models.StatusDisputed},
		models.StatusItemsPrepared:  {models.StatusInTransit, models.StatusDisputed},
		models.StatusInTransit:      {models.StatusDelivered, models.StatusConfirmed, models.StatusDisputed},
		models.StatusDelivered:      {models.StatusConfirmed, models.StatusDisputed},
		models.StatusConfirmed:      {models.StatusCompleted, models.StatusDisputed},
	}

	for _, from := range models.AllStatuses {
		for _, to := range models.AllStatuses {
			want := false
			for _, s := range legal[from] {
				if s == to {
					want = true
				}
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
		if from.IsTerminal() && len(legal[from]) > 0 {
			t.Errorf("terminal status %s has outgoing edges", from)
		}
	}
}

func TestOperationLegality(t *testing.T) {
	ops := map[string]func(m *Machine, sw *models.Swap) error{
		"respond": func(m *Machine, sw *models.Swap) error {
			_, err := m.Respond(sw, bob, true, "", t0)
			return err
		},
		"select method": func(m *Machine, sw *models.Swap) error {
			_, err := m.SelectExchangeMethod(sw, alice, inPerson(), t0)
			return err
		},
		"confirm prepared": func(m *Machine, sw *models.Swap) error {
			_, err := m.ConfirmPrepared(sw, alice, nil, "", t0)
			return err
		},
		"confirm sent": func(m *Machine, sw *models.Swap) error {
			_, err := m.ConfirmSent(sw, alice, SentConfirmation{}, t0)
			return err
		},
		"confirm received": func(m *Machine, sw *models.Swap) error {
			_, err := m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "good"}, t0)
			return err
		},
		"mark delivered": func(m *Machine, sw *models.Swap) error {
			_, err := m.MarkDelivered(sw, alice, t0)
			return err
		},
		"complete": func(m *Machine, sw *models.Swap) error {
			_, err := m.Complete(sw, alice, t0)
			return err
		},
		"cancel": func(m *Machine, sw *models.Swap) error {
			_, err := m.Cancel(sw, alice, "", t0)
			return err
		},
		"dispute": func(m *Machine, sw *models.Swap) error {
			_, err := m.Dispute(sw, alice, "item never arrived", nil, t0)
			return err
		},
		"update tracking": func(m *Machine, sw *models.Swap) error {
			_, err := m.UpdateTracking(sw, alice, []string{"out for delivery"}, t0)
			return err
		},
	}

	allowed := map[string][]models.SwapStatus{
		"respond":          {models.StatusPending},
		"select method":    {models.StatusAccepted},
		"confirm prepared": {models.StatusMethodSelected, models.StatusItemsPrepared},
		"confirm sent":     {models.StatusItemsPrepared, models.StatusInTransit},
		"confirm received": {models.StatusInTransit, models.StatusDelivered},
		"mark delivered":   {models.StatusInTransit},
		"complete":         {models.StatusConfirmed, models.StatusCompleted},
		"cancel":           {models.StatusPending, models.StatusAccepted},
		"dispute": {models.StatusPending, models.StatusAccepted, models.StatusMethodSelected,
			models.StatusItemsPrepared, models.StatusInTransit, models.StatusDelivered, models.StatusConfirmed},
		"update tracking": {models.StatusMethodSelected, models.StatusItemsPrepared, models.StatusInTransit, models.StatusDelivered},
	}

	for name, op := range ops {
		for _, status := range models.AllStatuses {
			t.Run(name+"/"+string(status), func(t *testing.T) {
				m := New(DefaultPolicy())
				sw := newTestSwap(t, m)
				sw.Status = status
				sw.ExchangeMethod = inPerson()
				entries := len(sw.Timeline)

				err := op(m, sw)

				legal := false
				for _, s := range allowed[name] {
					if s == status {
						legal = true
					}
				}
				if legal {
					if err != nil {
						t.Errorf("Expected %s to be allowed from %s, got %v", name, status, err)
					}
					return
				}
				if err == nil {
					t.Fatalf("Expected %s to be rejected from %s", name, status)
				}
				expectKind(t, err, models.ErrConflict)
				if len(sw.Timeline) != entries {
					t.Errorf("Rejected operation touched the timeline: %d -> %d entries", entries, len(sw.Timeline))
				}
			})
		}
	}
}

func TestRespond(t *testing.T) {
	t.Run("accept", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)

		res, err := m.Respond(sw, bob, true, "", t0.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("Respond failed: %v", err)
		}
		if !res.Changed || sw.Status != models.StatusAccepted {
			t.Errorf("Expected accepted swap, got %s (changed=%v)", sw.Status, res.Changed)
		}
		if sw.Analytics.ResponseTimeMinutes == nil || !near(*sw.Analytics.ResponseTimeMinutes, 30) {
			t.Errorf("Expected response time of 30 minutes, got %v", sw.Analytics.ResponseTimeMinutes)
		}
		expectEntries(t, sw, 2)
		if got := sw.Timeline[len(sw.Timeline)-1].Details; got != "Request accepted" {
			t.Errorf("Unexpected details: %q", got)
		}
	})

	t.Run("decline is terminal", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)

		if _, err := m.Respond(sw, bob, false, "not my size", t0); err != nil {
			t.Fatalf("Respond failed: %v", err)
		}
		if sw.Status != models.StatusDeclined || !sw.Status.IsTerminal() {
			t.Errorf("Expected terminal declined status, got %s", sw.Status)
		}
		if got := sw.ProgressPercentage(); got != 0 {
			t.Errorf("Expected progress 0, got %d", got)
		}
	})

	t.Run("requester cannot respond", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)

		_, err := m.Respond(sw, alice, true, "", t0)
		expectKind(t, err, models.ErrForbidden)
		if sw.Status != models.StatusPending {
			t.Errorf("Expected pending, got %s", sw.Status)
		}
	})

	t.Run("stranger cannot respond", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)

		_, err := m.Respond(sw, carol, true, "", t0)
		expectKind(t, err, models.ErrForbidden)
	})
}

func TestSelectExchangeMethod(t *testing.T) {
	t.Run("invalid descriptor", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusAccepted)

		_, err := m.SelectExchangeMethod(sw, alice, &models.ExchangeMethod{Type: models.MethodPostal}, t0)
		expectKind(t, err, models.ErrValidation)
		if sw.Status != models.StatusAccepted || sw.ExchangeMethod != nil {
			t.Errorf("Invalid descriptor changed the swap: %s %+v", sw.Status, sw.ExchangeMethod)
		}
	})

	t.Run("postal defaults", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusAccepted)

		method := postal()
		if _, err := m.SelectExchangeMethod(sw, bob, method, t0); err != nil {
			t.Fatalf("SelectExchangeMethod failed: %v", err)
		}
		if sw.ExchangeMethod.Postal == nil {
			t.Fatal("Expected postal details")
		}
		if got := sw.ExchangeMethod.Postal.ShippingService; got != models.CarrierUSPS {
			t.Errorf("Expected default carrier USPS, got %s", got)
		}
		if got := sw.ExchangeMethod.Postal.RequesterAddress.Country; got != "US" {
			t.Errorf("Expected default country US, got %s", got)
		}
		if method.Postal.ShippingService != "" {
			t.Error("Caller's descriptor must not be mutated")
		}
	})

	t.Run("reselection disabled", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusMethodSelected)

		_, err := m.SelectExchangeMethod(sw, bob, postal(), t0)
		expectKind(t, err, models.ErrConflict)
		if sw.ExchangeMethod.Type != models.MethodInPerson {
			t.Errorf("Expected in_person method to stay, got %s", sw.ExchangeMethod.Type)
		}
	})

	t.Run("reselection enabled", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowMethodReselection = true
		m := New(policy)
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusMethodSelected)
		entries := len(sw.Timeline)

		res, err := m.SelectExchangeMethod(sw, bob, postal(), t0)
		if err != nil {
			t.Fatalf("SelectExchangeMethod failed: %v", err)
		}
		if !res.Changed || len(res.Transitions) != 0 {
			t.Errorf("Expected change without transition, got %+v", res)
		}
		if sw.Status != models.StatusMethodSelected || sw.ExchangeMethod.Type != models.MethodPostal {
			t.Errorf("Unexpected state: %s / %s", sw.Status, sw.ExchangeMethod.Type)
		}
		if len(sw.Timeline) != entries+1 {
			t.Fatalf("Expected %d timeline entries, got %d", entries+1, len(sw.Timeline))
		}
		if got := sw.Timeline[entries].Details; got != "Exchange method changed from in_person to postal" {
			t.Errorf("Unexpected details: %q", got)
		}
	})

	t.Run("reselection after preparation", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowMethodReselection = true
		m := New(policy)
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusItemsPrepared)

		_, err := m.SelectExchangeMethod(sw, bob, postal(), t0)
		expectKind(t, err, models.ErrConflict)
	})
}

func TestDualConfirmation(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusMethodSelected)
	entries := len(sw.Timeline)

	res, err := m.ConfirmPrepared(sw, alice, []string{"photos/jacket.jpg"}, "washed", t0)
	if err != nil {
		t.Fatalf("ConfirmPrepared failed: %v", err)
	}
	if len(res.Transitions) != 0 || sw.Status != models.StatusMethodSelected {
		t.Errorf("One confirmation must not transition, got %s", sw.Status)
	}
	expectEntries(t, sw, entries)

	// Re-confirming only moves the timestamp.
	if _, err := m.ConfirmPrepared(sw, alice, nil, "", t0.Add(time.Minute)); err != nil {
		t.Fatalf("ConfirmPrepared failed: %v", err)
	}
	prepared := sw.Verification.RequesterConfirmations.ItemPrepared
	if sw.Status != models.StatusMethodSelected {
		t.Errorf("Expected method_selected, got %s", sw.Status)
	}
	expectEntries(t, sw, entries)
	if prepared.Timestamp == nil || !prepared.Timestamp.Equal(t0.Add(time.Minute)) {
		t.Errorf("Expected timestamp to move to %v, got %v", t0.Add(time.Minute), prepared.Timestamp)
	}
	if prepared.Notes != "washed" {
		t.Errorf("Expected notes to be kept, got %q", prepared.Notes)
	}
	if !reflect.DeepEqual(sw.Verification.Photos.BeforeShipping.RequesterItem, []string{"photos/jacket.jpg"}) {
		t.Errorf("Unexpected requester photos: %v", sw.Verification.Photos.BeforeShipping.RequesterItem)
	}
	if len(sw.Verification.Photos.BeforeShipping.ProviderItem) != 0 {
		t.Errorf("Unexpected provider photos: %v", sw.Verification.Photos.BeforeShipping.ProviderItem)
	}

	res, err = m.ConfirmPrepared(sw, bob, nil, "", t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("ConfirmPrepared failed: %v", err)
	}
	if len(res.Transitions) != 1 {
		t.Fatalf("Expected 1 transition, got %d", len(res.Transitions))
	}
	want := Transition{From: models.StatusMethodSelected, To: models.StatusItemsPrepared, Automatic: true}
	if res.Transitions[0] != want {
		t.Errorf("Expected %+v, got %+v", want, res.Transitions[0])
	}
	expectEntries(t, sw, entries+1)

	last := sw.Timeline[len(sw.Timeline)-1]
	if last.Event != "Status changed to items_prepared" || last.PerformedBy != bob || !last.Automatic {
		t.Errorf("Unexpected transition entry: %+v", last)
	}
}

func TestConfirmSent_PostalTracking(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusAccepted)
	if _, err := m.SelectExchangeMethod(sw, alice, postal(), t0); err != nil {
		t.Fatalf("SelectExchangeMethod failed: %v", err)
	}
	for _, user := range []string{alice, bob} {
		if _, err := m.ConfirmPrepared(sw, user, nil, "", t0); err != nil {
			t.Fatalf("ConfirmPrepared failed: %v", err)
		}
	}

	eta := t0.Add(72 * time.Hour)
	if _, err := m.ConfirmSent(sw, bob, SentConfirmation{TrackingNumber: "1Z999", ShippingService: "UPS", EstimatedDelivery: &eta}, t0); err != nil {
		t.Fatalf("ConfirmSent failed: %v", err)
	}

	p := sw.ExchangeMethod.Postal
	if p.TrackingNumbers.ProviderToRequester != "1Z999" || p.TrackingNumbers.RequesterToProvider != "" {
		t.Errorf("Unexpected tracking numbers: %+v", p.TrackingNumbers)
	}
	if p.ShippingService != models.CarrierUPS {
		t.Errorf("Expected UPS, got %s", p.ShippingService)
	}
	if p.EstimatedDelivery.ProviderItem == nil || !eta.Equal(*p.EstimatedDelivery.ProviderItem) {
		t.Errorf("Expected provider ETA %v, got %v", eta, p.EstimatedDelivery.ProviderItem)
	}
	if got := sw.Verification.ProviderConfirmations.ItemSent.Proof; got != "1Z999" {
		t.Errorf("Expected tracking proof, got %q", got)
	}

	if _, err := m.ConfirmSent(sw, alice, SentConfirmation{}, t0); err != nil {
		t.Fatalf("ConfirmSent failed: %v", err)
	}
	if got := sw.Verification.RequesterConfirmations.ItemSent.Proof; got != "Hand delivery" {
		t.Errorf("Expected hand delivery proof, got %q", got)
	}
	if sw.Status != models.StatusInTransit {
		t.Errorf("Expected in_transit, got %s", sw.Status)
	}

	_, err := m.ConfirmSent(sw, alice, SentConfirmation{ShippingService: "pigeon"}, t0)
	expectKind(t, err, models.ErrValidation)
}

func TestConfirmReceived_Validation(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusInTransit)

	_, err := m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "  "}, t0)
	expectKind(t, err, models.ErrValidation)

	for _, rating := range []int{0, 6, -1} {
		_, err = m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "good", SatisfactionRating: intPtr(rating)}, t0)
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("rating %d: expected validation error, got %v", rating, err)
		}
	}
	if sw.Verification.RequesterConfirmations.ItemReceived.Confirmed {
		t.Error("Rejected confirmation must not be recorded")
	}
}

func TestAutoComplete(t *testing.T) {
	tests := []struct {
		name          string
		policy        func() Policy
		requester     *int
		provider      *int
		wantStatus    models.SwapStatus
		wantTransits  int
		wantCredits   int
		wantSatisfied float64
	}{
		{
			name:          "both ratings at threshold",
			policy:        DefaultPolicy,
			requester:     intPtr(3),
			provider:      intPtr(5),
			wantStatus:    models.StatusCompleted,
			wantTransits:  2,
			wantCredits:   2,
			wantSatisfied: 4,
		},
		{
			name:          "one low rating",
			policy:        DefaultPolicy,
			requester:     intPtr(2),
			provider:      intPtr(5),
			wantStatus:    models.StatusConfirmed,
			wantTransits:  1,
			wantSatisfied: 3.5,
		},
		{
			name:          "missing rating",
			policy:        DefaultPolicy,
			requester:     intPtr(5),
			wantStatus:    models.StatusConfirmed,
			wantTransits:  1,
			wantSatisfied: 5,
		},
		{
			name: "auto-complete disabled",
			policy: func() Policy {
				p := DefaultPolicy()
				p.AutoCompleteMinRating = 0
				return p
			},
			requester:     intPtr(5),
			provider:      intPtr(5),
			wantStatus:    models.StatusConfirmed,
			wantTransits:  1,
			wantSatisfied: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.policy())
			sw := newTestSwap(t, m)
			advance(t, m, sw, models.StatusInTransit)
			entries := len(sw.Timeline)

			if _, err := m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "good", SatisfactionRating: tt.requester}, t0.Add(10*time.Hour)); err != nil {
				t.Fatalf("ConfirmReceived failed: %v", err)
			}
			res, err := m.ConfirmReceived(sw, bob, ReceivedConfirmation{Condition: "like new", SatisfactionRating: tt.provider}, t0.Add(10*time.Hour))
			if err != nil {
				t.Fatalf("ConfirmReceived failed: %v", err)
			}

			if sw.Status != tt.wantStatus {
				t.Errorf("Expected %s, got %s", tt.wantStatus, sw.Status)
			}
			if len(res.Transitions) != tt.wantTransits {
				t.Errorf("Expected %d transitions, got %d", tt.wantTransits, len(res.Transitions))
			}
			expectEntries(t, sw, entries+tt.wantTransits)
			if len(res.Credits) != tt.wantCredits {
				t.Errorf("Expected %d credits, got %d", tt.wantCredits, len(res.Credits))
			}
			for _, tr := range res.Transitions {
				if !tr.Automatic {
					t.Errorf("Expected automatic transition, got %+v", tr)
				}
			}
			score := sw.Analytics.UserSatisfactionScore
			if score == nil || math.Abs(*score-tt.wantSatisfied) > 0.001 {
				t.Errorf("Expected satisfaction %v, got %v", tt.wantSatisfied, score)
			}
			if sw.PointsCalculation.PointsAwarded != (tt.wantStatus == models.StatusCompleted) {
				t.Errorf("Unexpected PointsAwarded=%v", sw.PointsCalculation.PointsAwarded)
			}
		})
	}
}

func TestCompleteScenario(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusConfirmed)

	res, err := m.Complete(sw, "", t0.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(res.Transitions) != 1 || res.Transitions[0].Automatic {
		t.Fatalf("Expected one manual transition, got %+v", res.Transitions)
	}

	pc := sw.PointsCalculation
	if !pc.PointsAwarded {
		t.Error("Expected points to be awarded")
	}
	if pc.BasePoints.Requester != 110 || pc.BasePoints.Provider != 90 {
		t.Errorf("Expected base points 110/90, got %v/%v", pc.BasePoints.Requester, pc.BasePoints.Provider)
	}
	if !near(pc.BonusPoints.Sustainability, 80) || pc.BonusPoints.Speed != 50 || pc.BonusPoints.Quality != 0 {
		t.Errorf("Unexpected bonuses: %+v", pc.BonusPoints)
	}
	if !near(pc.TotalPoints.Requester, 240) || !near(pc.TotalPoints.Provider, 220) {
		t.Errorf("Expected totals 240/220, got %v/%v", pc.TotalPoints.Requester, pc.TotalPoints.Provider)
	}

	impact := sw.EnvironmentalImpact
	if !near(impact.TotalCarbonSaved, 8.0) || !near(impact.WaterSaved, 29.36) || !near(impact.WasteReduced, 4.0) {
		t.Errorf("Unexpected impact: %+v", impact)
	}
	if impact.CalculatedAt == nil {
		t.Error("Expected impact timestamp")
	}

	if hours := sw.Analytics.CompletionTimeHours; hours == nil || !near(*hours, 10) {
		t.Errorf("Expected completion time of 10 hours, got %v", hours)
	}

	want := []models.LedgerCredit{
		{SwapID: sw.SwapID, UserID: alice, Points: pc.TotalPoints.Requester, Swaps: 1, CarbonSaved: 4.2},
		{SwapID: sw.SwapID, UserID: bob, Points: pc.TotalPoints.Provider, Swaps: 1, CarbonSaved: 3.8},
	}
	if !reflect.DeepEqual(res.Credits, want) {
		t.Errorf("Expected credits %+v, got %+v", want, res.Credits)
	}
	if got := sw.ProgressPercentage(); got != 100 {
		t.Errorf("Expected progress 100, got %d", got)
	}
}

func TestComplete_Idempotent(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusCompleted)
	entries := len(sw.Timeline)
	points := sw.PointsCalculation

	res, err := m.Complete(sw, bob, t0.Add(100*time.Hour))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Changed || len(res.Credits) != 0 {
		t.Errorf("Second completion must be a no-op, got %+v", res)
	}
	expectEntries(t, sw, entries)
	if !reflect.DeepEqual(points, sw.PointsCalculation) {
		t.Errorf("Points changed: %+v -> %+v", points, sw.PointsCalculation)
	}

	_, err = m.Complete(sw, carol, t0)
	expectKind(t, err, models.ErrForbidden)
}

func TestComplete_SlowSwapNoSpeedBonus(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusConfirmed)

	if _, err := m.Complete(sw, alice, t0.Add(72*time.Hour)); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if sw.PointsCalculation.BonusPoints.Speed != 0 {
		t.Errorf("Expected no speed bonus, got %v", sw.PointsCalculation.BonusPoints.Speed)
	}
	if !near(sw.PointsCalculation.TotalPoints.Requester, 190) {
		t.Errorf("Expected requester total 190, got %v", sw.PointsCalculation.TotalPoints.Requester)
	}
}

func TestDispute(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusInTransit)

	_, err := m.Dispute(sw, alice, "  ", nil, t0)
	expectKind(t, err, models.ErrValidation)

	_, err = m.Dispute(sw, carol, "not mine", nil, t0)
	expectKind(t, err, models.ErrForbidden)

	entries := len(sw.Timeline)
	res, err := m.Dispute(sw, bob, "wrong item received", []string{"photos/a.jpg", ""}, t0)
	if err != nil {
		t.Fatalf("Dispute failed: %v", err)
	}
	if len(res.Transitions) != 1 || sw.Status != models.StatusDisputed {
		t.Fatalf("Expected disputed swap, got %s", sw.Status)
	}
	expectEntries(t, sw, entries+1)
	d := sw.DisputeResolution
	if d == nil || !d.IsDisputed || d.DisputedBy != bob {
		t.Fatalf("Unexpected dispute resolution: %+v", d)
	}
	if !reflect.DeepEqual(d.Evidence, []string{"photos/a.jpg"}) {
		t.Errorf("Expected blank evidence to be dropped, got %v", d.Evidence)
	}
	if got := sw.ProgressPercentage(); got != 40 {
		t.Errorf("Expected frozen progress 40, got %d", got)
	}

	// A disputed swap is frozen.
	entries = len(sw.Timeline)
	_, err = m.ConfirmReceived(sw, alice, ReceivedConfirmation{Condition: "good"}, t0)
	expectKind(t, err, models.ErrConflict)
	_, err = m.Complete(sw, alice, t0)
	expectKind(t, err, models.ErrConflict)
	_, err = m.Dispute(sw, alice, "again", nil, t0)
	expectKind(t, err, models.ErrConflict)
	expectEntries(t, sw, entries)
}

func TestDisputeReference(t *testing.T) {
	at := time.UnixMilli(1718000000123)
	if got := DisputeReference("SW-1-abc", at); got != "DISP-SW-1-abc-1718000000123" {
		t.Errorf("Unexpected dispute reference: %s", got)
	}
}

func TestUpdateTracking(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)
	advance(t, m, sw, models.StatusInTransit)
	entries := len(sw.Timeline)

	_, err := m.UpdateTracking(sw, alice, []string{"", "  "}, t0)
	expectKind(t, err, models.ErrValidation)

	res, err := m.UpdateTracking(sw, alice, []string{"Picked up", "", "Out for delivery"}, t0)
	if err != nil {
		t.Fatalf("UpdateTracking failed: %v", err)
	}
	if !res.Changed || len(res.Transitions) != 0 {
		t.Errorf("Expected change without transition, got %+v", res)
	}
	if len(sw.Timeline) != entries+2 {
		t.Fatalf("Expected %d timeline entries, got %d", entries+2, len(sw.Timeline))
	}
	if sw.Timeline[entries].Event != "Tracking update" || sw.Timeline[entries+1].Details != "Out for delivery" {
		t.Errorf("Unexpected tracking entries: %+v", sw.Timeline[entries:])
	}
	if sw.Status != models.StatusInTransit {
		t.Errorf("Expected in_transit, got %s", sw.Status)
	}
}

func TestTimelineIsMonotonic(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)

	for _, target := range []models.SwapStatus{
		models.StatusAccepted, models.StatusMethodSelected, models.StatusItemsPrepared,
		models.StatusInTransit, models.StatusDelivered, models.StatusConfirmed, models.StatusCompleted,
	} {
		snapshot := append([]models.TimelineEntry(nil), sw.Timeline...)
		advance(t, m, sw, target)

		if len(sw.Timeline) != len(snapshot)+1 {
			t.Fatalf("moving to %s: expected %d timeline entries, got %d", target, len(snapshot)+1, len(sw.Timeline))
		}
		if !reflect.DeepEqual(snapshot, sw.Timeline[:len(snapshot)]) {
			t.Errorf("existing entries changed while moving to %s", target)
		}
		for i := 1; i < len(sw.Timeline); i++ {
			if sw.Timeline[i].Timestamp.Before(sw.Timeline[i-1].Timestamp) {
				t.Errorf("entry %d is older than entry %d", i, i-1)
			}
		}
	}
}

func TestCancel(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)

	_, err := m.Cancel(sw, carol, "", t0)
	expectKind(t, err, models.ErrForbidden)

	if _, err := m.Cancel(sw, alice, "changed my mind", t0); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if sw.Status != models.StatusCancelled {
		t.Errorf("Expected cancelled, got %s", sw.Status)
	}
	expectEntries(t, sw, 2)
	if got := sw.Timeline[len(sw.Timeline)-1].Details; got != "changed my mind" {
		t.Errorf("Unexpected details: %q", got)
	}
}

func TestApplyExpiry(t *testing.T) {
	policy := DefaultPolicy()
	policy.Expiry = DurationExpiry{Pending: 24 * time.Hour, InTransit: 14 * 24 * time.Hour}
	m := New(policy)

	t.Run("fresh swap untouched", func(t *testing.T) {
		sw := newTestSwap(t, m)
		res, err := m.ApplyExpiry(sw, alice, t0.Add(time.Hour))
		if err != nil {
			t.Fatalf("ApplyExpiry failed: %v", err)
		}
		if res.Changed || sw.Status != models.StatusPending {
			t.Errorf("Fresh swap must not expire, got %s", sw.Status)
		}
	})

	t.Run("stale pending is cancelled", func(t *testing.T) {
		sw := newTestSwap(t, m)
		res, err := m.ApplyExpiry(sw, bob, t0.Add(25*time.Hour))
		if err != nil {
			t.Fatalf("ApplyExpiry failed: %v", err)
		}
		if !res.Changed || sw.Status != models.StatusCancelled {
			t.Fatalf("Expected cancelled swap, got %s", sw.Status)
		}
		last := sw.Timeline[len(sw.Timeline)-1]
		if !last.Automatic || last.PerformedBy != bob {
			t.Errorf("Unexpected expiry entry: %+v", last)
		}
	})

	t.Run("stale shipment is disputed", func(t *testing.T) {
		sw := newTestSwap(t, m)
		advance(t, m, sw, models.StatusInTransit)
		sw.UpdatedAt = t0

		if _, err := m.ApplyExpiry(sw, alice, t0.Add(15*24*time.Hour)); err != nil {
			t.Fatalf("ApplyExpiry failed: %v", err)
		}
		if sw.Status != models.StatusDisputed {
			t.Fatalf("Expected disputed, got %s", sw.Status)
		}
		if sw.DisputeResolution == nil || sw.DisputeResolution.DisputedBy != "" {
			t.Errorf("Expected system dispute, got %+v", sw.DisputeResolution)
		}
	})

	t.Run("non-party cannot trigger expiry", func(t *testing.T) {
		sw := newTestSwap(t, m)
		entries := len(sw.Timeline)

		res, err := m.ApplyExpiry(sw, carol, t0.Add(25*time.Hour))
		expectKind(t, err, models.ErrForbidden)
		if res.Changed || sw.Status != models.StatusPending {
			t.Errorf("Non-party changed the swap: %s", sw.Status)
		}
		expectEntries(t, sw, entries)
	})

	t.Run("platform may expire", func(t *testing.T) {
		sw := newTestSwap(t, m)
		res, err := m.ApplyExpiry(sw, "", t0.Add(25*time.Hour))
		if err != nil {
			t.Fatalf("ApplyExpiry failed: %v", err)
		}
		if !res.Changed || sw.Status != models.StatusCancelled {
			t.Errorf("Expected cancelled swap, got %s", sw.Status)
		}
	})

	t.Run("never expire", func(t *testing.T) {
		m := New(DefaultPolicy())
		sw := newTestSwap(t, m)
		res, err := m.ApplyExpiry(sw, alice, t0.Add(10000*time.Hour))
		if err != nil {
			t.Fatalf("ApplyExpiry failed: %v", err)
		}
		if res.Changed {
			t.Error("Default policy must never expire")
		}
	})
}

func TestErrorsAreClassified(t *testing.T) {
	m := New(DefaultPolicy())
	sw := newTestSwap(t, m)

	_, err := m.Complete(sw, alice, t0)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}
	if got := models.ErrorKind(err); got != "conflict" {
		t.Errorf("Expected kind conflict, got %s", got)
	}
}
