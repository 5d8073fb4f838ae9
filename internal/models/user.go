package models

// UserProfile is the identity provider's view of a user.
// The swap core only needs a stable ID and a display name to snapshot.
type UserProfile struct {
	// ID is the identity provider's user ID.
	ID string `json:"id"`

	// Username is the display name copied into swap snapshots.
	Username string `json:"username"`

	// CreatedAt is the Unix timestamp when the profile was first seen.
	CreatedAt int64 `json:"createdAt"`
}

// CatalogItem is the catalog service's view of a listed garment.
type CatalogItem struct {
	// ID is the catalog's item ID.
	ID string `json:"id"`

	// OwnerID is the user who listed the item.
	OwnerID string `json:"ownerId"`

	// Title is the listing title.
	Title string `json:"title"`

	// Images are image references in listing order.
	Images []string `json:"images"`

	// Price is the estimated value in dollars.
	Price float64 `json:"price"`

	// CarbonSavingEstimate is the estimated kg CO2e avoided by reusing the item.
	CarbonSavingEstimate float64 `json:"carbonSavingEstimate"`

	// CreatedAt is the Unix timestamp when the item was listed.
	CreatedAt int64 `json:"createdAt"`
}

// UserStats are a user's gamification totals as kept by the ledger.
type UserStats struct {
	UserID        string  `json:"userId"`
	PointsBalance float64 `json:"pointsBalance"`
	TotalSwaps    int64   `json:"totalSwaps"`
	CarbonSaved   float64 `json:"carbonSaved"`
	UpdatedAt     int64   `json:"updatedAt"`
}

// LedgerCredit is one settlement delta for one user from one swap.
// Stores apply a credit at most once per (SwapID, UserID).
type LedgerCredit struct {
	SwapID      string
	UserID      string
	Points      float64
	Swaps       int64
	CarbonSaved float64
}
