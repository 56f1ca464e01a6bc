package report

import "testing"

func TestDepartmentFor(t *testing.T) {
	tests := []struct {
		category Category
		want     string
	}{
		{CategoryGarbage, "Municipality"},
		{CategoryPotholes, "Municipality"},
		{CategoryStreetLightOff, "Electrical"},
		{CategoryNormalRoad, "General"},
		{CategoryStreetLightOn, "General"},
	}

	for _, tt := range tests {
		if got := DepartmentFor(tt.category); got != tt.want {
			t.Errorf("DepartmentFor(%q) = %q, want %q", tt.category, got, tt.want)
		}
	}
}

func TestCategoryIsNonIssue(t *testing.T) {
	nonIssues := map[Category]bool{
		CategoryNormalRoad:    true,
		CategoryStreetLightOn: true,
	}

	for _, c := range AllowedCategories {
		if got := c.IsNonIssue(); got != nonIssues[c] {
			t.Errorf("%q.IsNonIssue() = %v, want %v", c, got, nonIssues[c])
		}
	}
}

func TestCategoryIsAllowed(t *testing.T) {
	for _, c := range AllowedCategories {
		if !c.IsAllowed() {
			t.Errorf("%q should be allowed", c)
		}
	}
	for _, c := range []Category{"", "flooding", "Potholes", "garbage "} {
		if c.IsAllowed() {
			t.Errorf("%q should not be allowed", c)
		}
	}
}

func TestEffectiveStatusDefaultsToPending(t *testing.T) {
	if got := (Record{}).EffectiveStatus(); got != StatusPending {
		t.Errorf("EffectiveStatus() = %q, want %q", got, StatusPending)
	}
	if got := (Record{Status: StatusResolved}).EffectiveStatus(); got != StatusResolved {
		t.Errorf("EffectiveStatus() = %q, want %q", got, StatusResolved)
	}
}
