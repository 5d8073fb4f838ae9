package models

import "time"

// Checkpoint is a single boolean confirmation with the time it was given.
type Checkpoint struct {
	Confirmed bool       `json:"confirmed"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (c *Checkpoint) confirm(now time.Time) {
	c.Confirmed = true
	c.Timestamp = &now
}

// PreparedCheckpoint records that a party has its item ready.
type PreparedCheckpoint struct {
	Checkpoint
	Notes string `json:"notes,omitempty"`
}

// SentCheckpoint records that a party has handed its item over.
// Proof is a tracking number or "Hand delivery".
type SentCheckpoint struct {
	Checkpoint
	Proof string `json:"proof,omitempty"`
}

// ReceivedCheckpoint records that a party has the other item in hand.
type ReceivedCheckpoint struct {
	Checkpoint
	Condition string `json:"condition,omitempty"`
}

// ConfirmationSet is one party's side of the verification ledger.
type ConfirmationSet struct {
	ItemPrepared       PreparedCheckpoint `json:"itemPrepared"`
	ItemSent           SentCheckpoint     `json:"itemSent"`
	ItemReceived       ReceivedCheckpoint `json:"itemReceived"`
	SatisfactionRating *int               `json:"satisfactionRating,omitempty"`
}

// MarkPrepared confirms preparation.
func (c *ConfirmationSet) MarkPrepared(notes string, now time.Time) {
	c.ItemPrepared.confirm(now)
	if notes != "" {
		c.ItemPrepared.Notes = notes
	}
}

// MarkSent confirms hand-over with proof.
func (c *ConfirmationSet) MarkSent(proof string, now time.Time) {
	c.ItemSent.confirm(now)
	c.ItemSent.Proof = proof
}

// MarkReceived confirms receipt in the given condition.
func (c *ConfirmationSet) MarkReceived(condition string, now time.Time) {
	c.ItemReceived.confirm(now)
	c.ItemReceived.Condition = condition
}

// PhotoBundle holds image references per party item.
type PhotoBundle struct {
	RequesterItem []string `json:"requesterItem"`
	ProviderItem  []string `json:"providerItem"`
}

// Set replaces the photos for the item the given role is responsible for.
func (b *PhotoBundle) Set(role Role, refs []string) {
	cp := append([]string(nil), refs...)
	if role == RoleRequester {
		b.RequesterItem = cp
	} else {
		b.ProviderItem = cp
	}
}

// Get returns the photos for role's item.
func (b *PhotoBundle) Get(role Role) []string {
	if role == RoleRequester {
		return b.RequesterItem
	}
	return b.ProviderItem
}

// Photos is the shared evidence bucket.
type Photos struct {
	BeforeShipping PhotoBundle `json:"beforeShipping"`
	AfterReceiving PhotoBundle `json:"afterReceiving"`
}

// Verification is the bilateral confirmation record.
type Verification struct {
	RequesterConfirmations ConfirmationSet `json:"requesterConfirmations"`
	ProviderConfirmations  ConfirmationSet `json:"providerConfirmations"`
	Photos                 Photos          `json:"photos"`
}

// For returns role's confirmation set.
func (v *Verification) For(role Role) *ConfirmationSet {
	if role == RoleRequester {
		return &v.RequesterConfirmations
	}
	return &v.ProviderConfirmations
}

// BothPrepared reports whether both parties confirmed preparation.
func (v *Verification) BothPrepared() bool {
	return v.RequesterConfirmations.ItemPrepared.Confirmed && v.ProviderConfirmations.ItemPrepared.Confirmed
}

// BothSent reports whether both parties confirmed sending.
func (v *Verification) BothSent() bool {
	return v.RequesterConfirmations.ItemSent.Confirmed && v.ProviderConfirmations.ItemSent.Confirmed
}

// BothReceived reports whether both parties confirmed receipt.
func (v *Verification) BothReceived() bool {
	return v.RequesterConfirmations.ItemReceived.Confirmed && v.ProviderConfirmations.ItemReceived.Confirmed
}

// BothRatedAtLeast reports whether both parties left a rating of at least min.
// A missing rating counts as zero.
func (v *Verification) BothRatedAtLeast(min int) bool {
	return ratingOrZero(v.RequesterConfirmations.SatisfactionRating) >= min &&
		ratingOrZero(v.ProviderConfirmations.SatisfactionRating) >= min
}

func ratingOrZero(r *int) int {
	if r == nil {
		return 0
	}
	return *r
}
