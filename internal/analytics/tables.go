package analytics

// The canonical category identifiers. Diagnosis output always carries all
// nine, in this order, regardless of which categories an attempt touched.
var CanonicalCategories = []string{
	"Scope of Practice & Reporting",
	"Change in Condition",
	"Observation & Safety",
	"Environment & Safety",
	"Infection Control",
	"Personal Care & Comfort",
	"Mobility & Positioning",
	"Communication & Emotional Support",
	"Dignity & Resident Rights",
}

// highRiskCategories get the High-Risk Flag label below 70% accuracy and
// depress the overall readiness status.
var highRiskCategories = map[string]bool{
	"Scope of Practice & Reporting": true,
	"Change in Condition":           true,
	"Infection Control":             true,
}

// chapterMapping ties a category to its study chapters and the fixed lens
// question embedded verbatim in guidance text.
type chapterMapping struct {
	primary   []int
	secondary []int
	lens      string
}

var categoryChapters = map[string]chapterMapping{
	"Scope of Practice & Reporting": {
		primary:   []int{2},
		secondary: []int{5, 1},
		lens:      "Is this within my role, or do I observe and report?",
	},
	"Change in Condition": {
		primary:   []int{5},
		secondary: []int{3, 4},
		lens:      "What is different from this resident’s baseline?",
	},
	"Observation & Safety": {
		primary:   []int{3},
		secondary: []int{5, 4},
		lens:      "What should I notice to prevent harm right now?",
	},
	"Environment & Safety": {
		primary:   []int{1},
		secondary: []int{3},
		lens:      "Is the physical space safe and supportive?",
	},
	"Infection Control": {
		primary:   []int{2},
		secondary: []int{4, 3},
		lens:      "What prevents contamination or spread of germs?",
	},
	"Personal Care & Comfort": {
		primary:   []int{3},
		secondary: []int{4},
		lens:      "Am I supporting comfort, dignity, and independence?",
	},
	"Mobility & Positioning": {
		primary:   []int{3},
		secondary: []int{4},
		lens:      "Is the resident being moved safely and correctly?",
	},
	"Communication & Emotional Support": {
		primary:   []int{5},
		secondary: []int{1},
		lens:      "How should I respond verbally and emotionally?",
	},
	"Dignity & Resident Rights": {
		primary:   []int{1},
		secondary: []int{3, 5},
		lens:      "Am I preserving choice, privacy, and respect?",
	},
}
