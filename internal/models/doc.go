// Package models defines the core domain models for ReWear swaps.
//
// # Aggregate
//
// A Swap is the aggregate root. Everything that happens to an exchange of
// two garments is recorded on it:
//   - Party / ItemSnapshot: who is swapping what, frozen at creation
//   - ExchangeMethod: how the items physically change hands
//   - Verification: each party's prepared/sent/received checkpoints and photos
//   - PointsCalculation / EnvironmentalImpact: derived at completion
//   - Timeline: append-only audit log
//
// # Collaborators
//
// UserProfile, CatalogItem and UserStats are read models of the identity,
// catalog and gamification collaborators. The swap core only reads the first
// two and only writes the third through LedgerCredit.
//
// # Design Principles
//
//  1. Value types over nested maps: every nested document shape is a struct.
//  2. IDs, not pointers: parties and items reference collaborators by ID.
//  3. Derived fields (progress, impact, points) are never set by callers.
package models
