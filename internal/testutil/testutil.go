// Package testutil provides shared test helpers for setting up databases,
// artifact stores, and fixture loans.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/starford/fehu/internal/artifacts"
	"github.com/starford/fehu/internal/models"
	"github.com/starford/fehu/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically
// cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "fehu-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArtifacts creates a temporary artifact store.
func TestArtifacts(t *testing.T) *artifacts.FS {
	t.Helper()
	art, err := artifacts.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return art
}

// SeedItem registers an item with the given copy count and daily fine rate.
func SeedItem(t *testing.T, db *store.DB, id string, copies int, rate string) *models.Item {
	t.Helper()
	r, err := decimal.NewFromString(rate)
	if err != nil {
		t.Fatalf("bad rate %q: %v", rate, err)
	}
	item := &models.Item{
		ID:              id,
		Title:           "Test Item " + id,
		TotalCopies:     copies,
		AvailableCopies: copies,
		DailyFineRate:   r,
	}
	if err := db.UpsertItem(item); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	return item
}

// Borrower and staff actors shared across tests.
var (
	Borrower = models.Actor{ID: "reader-1", Role: models.RoleBorrower}
	Staff    = models.Actor{ID: "librarian-1", Role: models.RoleStaff}
)

// Date builds a UTC timestamp from its parts.
func Date(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}
