package bulk

import "strings"

// Grade is the qualitative evaluation of an identifier.
type Grade string

// Known grades. GradeNone means the evaluation lookup returned nothing usable.
const (
	GradeS    Grade = "S"
	GradeA    Grade = "A"
	GradeB    Grade = "B"
	GradeC    Grade = "C"
	GradeNone Grade = ""
)

// ParseGrade normalizes a backend grade string. Unknown values map to
// GradeNone.
func ParseGrade(s string) Grade {
	switch g := Grade(strings.ToUpper(strings.TrimSpace(s))); g {
	case GradeS, GradeA, GradeB, GradeC:
		return g
	default:
		return GradeNone
	}
}

// String returns the grade letter, or "-" for GradeNone.
func (g Grade) String() string {
	if g == GradeNone {
		return "-"
	}
	return string(g)
}

// Tier is the display class derived from a grade.
type Tier int

// Display tiers.
const (
	TierNone Tier = iota
	Tier1
	Tier2
	Tier3
)

// String returns a short name for the tier.
func (t Tier) String() string {
	switch t {
	case Tier1:
		return "tier1"
	case Tier2:
		return "tier2"
	case Tier3:
		return "tier3"
	default:
		return "none"
	}
}

// ParseTier parses the names produced by Tier.String.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tier1", "1":
		return Tier1, true
	case "tier2", "2":
		return Tier2, true
	case "tier3", "3":
		return Tier3, true
	case "none", "", "0":
		return TierNone, true
	default:
		return TierNone, false
	}
}

// TierMapping assigns display tiers to grades. Grades missing from the
// mapping classify as TierNone.
type TierMapping map[Grade]Tier

// DefaultTierMapping returns {S,A}→Tier1, B→Tier2, C→Tier3.
func DefaultTierMapping() TierMapping {
	return TierMapping{
		GradeS: Tier1,
		GradeA: Tier1,
		GradeB: Tier2,
		GradeC: Tier3,
	}
}

// Classify returns the tier for grade under mapping. A nil mapping uses the
// default.
func Classify(grade Grade, mapping TierMapping) Tier {
	if mapping == nil {
		mapping = DefaultTierMapping()
	}
	if grade == GradeNone {
		return TierNone
	}
	return mapping[grade]
}
