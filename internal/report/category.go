package report

import (
	"regexp"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[_\-]+`)
	spaceRun     = regexp.MustCompile(`\s+`)

	potholePattern        = regexp.MustCompile(`pothole`)
	normalRoadPattern     = regexp.MustCompile(`normal\s*road|road\s*normal`)
	streetLightOffPattern = regexp.MustCompile(`street\s*light\s*off`)
	streetLightOnPattern  = regexp.MustCompile(`street\s*light\s*on`)
	garbagePattern        = regexp.MustCompile(`garbage|trash|litter`)
)

// NormalizeCategory maps a raw label, from the classifier or from manual
// entry, onto the canonical category set. It returns "" when the label
// matches nothing; an empty result is a validation failure for the caller,
// never a silent default.
//
// Matching precedence is fixed: potholes, normal road, street light off,
// street light on, garbage. Normalization is idempotent over its own
// outputs.
func NormalizeCategory(raw string) Category {
	v := strings.ToLower(raw)
	v = separatorRun.ReplaceAllString(v, " ")
	v = spaceRun.ReplaceAllString(v, " ")
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}

	switch {
	case potholePattern.MatchString(v):
		return CategoryPotholes
	case normalRoadPattern.MatchString(v):
		return CategoryNormalRoad
	case streetLightOffPattern.MatchString(v):
		return CategoryStreetLightOff
	case streetLightOnPattern.MatchString(v):
		return CategoryStreetLightOn
	case garbagePattern.MatchString(v):
		return CategoryGarbage
	}
	return ""
}
