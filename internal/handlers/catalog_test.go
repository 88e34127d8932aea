package handlers

import (
	"testing"

	"github.com/google/uuid"

	"github.com/pointloyal/loyalty-backend/internal/models"
)

func item(name, category string, cost int, active bool) models.CatalogItem {
	return models.CatalogItem{
		ID:         uuid.New(),
		Name:       name,
		Category:   category,
		PointsCost: cost,
		IsActive:   active,
	}
}

func names(items []models.CatalogItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestFilterCatalogItems(t *testing.T) {
	catalog := []models.CatalogItem{
		item("Free Coffee", "drinks", 500, true),
		item("Free Smoothie", "drinks", 650, true),
		item("10% Off Coupon", "discounts", 300, true),
		item("Movie Ticket", "entertainment", 1200, true),
		item("Retired Mug", "drinks", 400, false),
	}

	tests := []struct {
		name     string
		search   string
		category string
		want     []string
	}{
		{
			name: "no filters returns all active",
			want: []string{"Free Coffee", "Free Smoothie", "10% Off Coupon", "Movie Ticket"},
		},
		{
			name:     "category all is a wildcard",
			category: "all",
			want:     []string{"Free Coffee", "Free Smoothie", "10% Off Coupon", "Movie Ticket"},
		},
		{
			name:     "category filter",
			category: "drinks",
			want:     []string{"Free Coffee", "Free Smoothie"},
		},
		{
			name:   "search is case-insensitive",
			search: "COFFEE",
			want:   []string{"Free Coffee"},
		},
		{
			name:     "search and category combine",
			search:   "free",
			category: "drinks",
			want:     []string{"Free Coffee", "Free Smoothie"},
		},
		{
			name:   "no match yields empty slice",
			search: "pizza",
			want:   []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := names(filterCatalogItems(catalog, tc.search, tc.category))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

// Inactive items never appear, even when they match the filters directly.
func TestFilterCatalogItems_ExcludesInactive(t *testing.T) {
	catalog := []models.CatalogItem{
		item("Retired Mug", "drinks", 400, false),
	}

	if got := filterCatalogItems(catalog, "retired mug", "drinks"); len(got) != 0 {
		t.Errorf("inactive item leaked into the listing: %v", names(got))
	}
}

func TestMemberCode(t *testing.T) {
	userID := uuid.New()
	want := "LOYAL:" + userID.String()
	if got := memberCode(userID); got != want {
		t.Errorf("member code: got %q, want %q", got, want)
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Basic abc123", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := extractBearerToken(tc.header); got != tc.want {
			t.Errorf("extractBearerToken(%q): got %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestHasAnyRole(t *testing.T) {
	roles := []string{models.RoleUser, models.RoleCashier}

	if !hasAnyRole(roles, models.RoleCashier, models.RoleAdmin) {
		t.Error("cashier should satisfy cashier-or-admin")
	}
	if hasAnyRole([]string{models.RoleUser}, models.RoleCashier, models.RoleAdmin) {
		t.Error("plain user should not satisfy cashier-or-admin")
	}
	if hasAnyRole(nil, models.RoleCashier) {
		t.Error("no roles should never satisfy a role check")
	}
}
