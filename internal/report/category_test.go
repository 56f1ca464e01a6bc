package report

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"potholes", CategoryPotholes},
		{"pothole", CategoryPotholes},
		{"Pothole", CategoryPotholes},
		{"POT-HOLE", ""}, // separator splits the word; not a pothole label
		{"deep_potholes", CategoryPotholes},
		{"pothole-detected", CategoryPotholes},
		{"normal road", CategoryNormalRoad},
		{"Normal_Road", CategoryNormalRoad},
		{"road normal", CategoryNormalRoad},
		{"normalroad", CategoryNormalRoad},
		{"street light off", CategoryStreetLightOff},
		{"street_light_off", CategoryStreetLightOff},
		{"streetlightoff", CategoryStreetLightOff},
		{"street light on", CategoryStreetLightOn},
		{"Street-Light-On", CategoryStreetLightOn},
		{"garbage", CategoryGarbage},
		{"trash", CategoryGarbage},
		{"litter on road", CategoryGarbage},
		{"GARBAGE_PILE", CategoryGarbage},
		{"", ""},
		{"   ", ""},
		{"flooding", ""},
		{"broken fence", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCategory(tt.raw); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeCategoryIdempotent(t *testing.T) {
	for _, c := range AllowedCategories {
		if got := NormalizeCategory(string(c)); got != c {
			t.Errorf("NormalizeCategory(%q) = %q, want fixed point", c, got)
		}
	}

	// Idempotency must also hold for every producible output.
	inputs := []string{"pot_hole", "Trash", "street  light   off", "road-normal", "street_light_on"}
	for _, raw := range inputs {
		once := NormalizeCategory(raw)
		if once == "" {
			continue
		}
		if twice := NormalizeCategory(string(once)); twice != once {
			t.Errorf("NormalizeCategory not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	}
}

func TestNormalizeCategoryPotholePrecedence(t *testing.T) {
	// Pothole wins over any other token in the same label.
	for _, raw := range []string{"garbage near pothole", "pothole on normal road"} {
		if got := NormalizeCategory(raw); got != CategoryPotholes {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", raw, got, CategoryPotholes)
		}
	}
}
