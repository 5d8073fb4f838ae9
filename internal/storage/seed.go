package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rewear/rewear/internal/models"
)

// demoUsers and demoItems give a fresh install something to swap.
var demoUsers = []models.UserProfile{
	{ID: "demo-alice", Username: "alice"},
	{ID: "demo-bob", Username: "bob"},
	{ID: "demo-carol", Username: "carol"},
}

var demoItems = []models.CatalogItem{
	{ID: "demo-item-jacket", OwnerID: "demo-alice", Title: "Vintage denim jacket", Price: 55, CarbonSavingEstimate: 4.2,
		Images: []string{"https://images.example.com/jacket.jpg"}},
	{ID: "demo-item-boots", OwnerID: "demo-bob", Title: "Leather ankle boots", Price: 45, CarbonSavingEstimate: 3.8,
		Images: []string{"https://images.example.com/boots.jpg"}},
	{ID: "demo-item-dress", OwnerID: "demo-carol", Title: "Linen summer dress", Price: 30, CarbonSavingEstimate: 2.5},
	{ID: "demo-item-scarf", OwnerID: "demo-alice", Title: "Wool scarf", Price: 12.5, CarbonSavingEstimate: 1.1},
}

// SeedDemoData upserts a small set of users and catalog items.
func SeedDemoData(ctx context.Context, dir Directory) error {
	now := time.Now().Unix()

	for _, u := range demoUsers {
		u.CreatedAt = now
		if err := dir.UpsertUser(ctx, &u); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", u.ID, err)
		}
	}
	for _, item := range demoItems {
		item.CreatedAt = now
		if err := dir.UpsertItem(ctx, &item); err != nil {
			return fmt.Errorf("failed to seed item %s: %w", item.ID, err)
		}
	}

	slog.Info("Seeded demo data", "users", len(demoUsers), "items", len(demoItems))
	return nil
}
