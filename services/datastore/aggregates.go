package datastore

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sahilchouksey/college-explorer-api/model"
)

const (
	RegionState = "State"
	RegionUT    = "UT"

	statesWithExamples = 3
	topDistricts       = 10
	topExams           = 10
)

// Filters holds the distinct values offered by the browse dropdowns.
type Filters struct {
	States    []string `json:"states"`
	Districts []string `json:"districts"`
	Tiers     []string `json:"tiers"`
	Courses   []string `json:"courses"`
}

// StateCount is one state or union territory with its college count.
type StateCount struct {
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	Type     string   `json:"type"`
	Examples []string `json:"examples"`
}

type StateStats struct {
	TotalStates   int          `json:"totalStates"`
	TotalUTs      int          `json:"totalUTs"`
	TotalColleges int          `json:"totalColleges"`
	States        []StateCount `json:"states"`
}

// NamedCount is a label with a count, used by the aggregate dashboard.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Aggregate struct {
	TotalColleges        int          `json:"totalColleges"`
	TotalExams           int          `json:"totalExams"`
	StateDistribution    []NamedCount `json:"stateDistribution"`
	DistrictDistribution []NamedCount `json:"districtDistribution"`
	ExamPopularity       []NamedCount `json:"examPopularity"`
}

var indianStates = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh", "Goa", "Gujarat", "Haryana",
	"Himachal Pradesh", "Jharkhand", "Karnataka", "Kerala", "Madhya Pradesh", "Maharashtra", "Manipur",
	"Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab", "Rajasthan", "Sikkim", "Tamil Nadu",
	"Telangana", "Tripura", "Uttar Pradesh", "Uttarakhand", "West Bengal",
}

var unionTerritories = []string{
	"Andaman and Nicobar Islands", "Chandigarh", "Dadra and Nagar Haveli and Daman and Diu", "Delhi",
	"Jammu and Kashmir", "Ladakh", "Lakshadweep", "Puducherry",
}

var stateAliases = map[string]string{
	"dadra and nagar haveli": "Dadra and Nagar Haveli and Daman and Diu",
	"daman and diu":          "Dadra and Nagar Haveli and Daman and Diu",
	"new delhi":              "Delhi",
	"nct of delhi":           "Delhi",
	"orissa":                 "Odisha",
	"pondicherry":            "Puducherry",
}

var (
	canonicalRegions = buildRegionIndex()
	whitespace       = regexp.MustCompile(`\s+`)
)

func buildRegionIndex() map[string]string {
	index := make(map[string]string, len(indianStates)+len(unionTerritories)+len(stateAliases))
	for _, s := range indianStates {
		index[NormalizeStateName(s)] = s
	}
	for _, s := range unionTerritories {
		index[NormalizeStateName(s)] = s
	}
	for alias, s := range stateAliases {
		index[alias] = s
	}
	return index
}

// NormalizeStateName lower-cases a state name, spells "&" as "and" and
// collapses whitespace so spelling variants compare equal.
func NormalizeStateName(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "&", "and"))
	return strings.TrimSpace(whitespace.ReplaceAllString(name, " "))
}

// CanonicalState maps a free-form state name onto the fixed list of states
// and union territories. It returns "" when the name is not recognised.
func CanonicalState(name string) string {
	return canonicalRegions[NormalizeStateName(name)]
}

// RegionType reports whether a canonical name is a State or a UT.
func RegionType(name string) string {
	for _, ut := range unionTerritories {
		if ut == name {
			return RegionUT
		}
	}
	return RegionState
}

// ComputeFilters collects the distinct states, districts, tiers and course
// names across colleges, each sorted.
func ComputeFilters(colleges []model.College) Filters {
	states := map[string]struct{}{}
	districts := map[string]struct{}{}
	tiers := map[string]struct{}{}
	courses := map[string]struct{}{}

	for _, c := range colleges {
		addNonEmpty(states, c.StateName())
		addNonEmpty(districts, c.DistrictName())
		addNonEmpty(tiers, c.Tier())
		for _, course := range c.Courses {
			addNonEmpty(courses, course.Name)
		}
	}

	return Filters{
		States:    sortedKeys(states),
		Districts: sortedKeys(districts),
		Tiers:     sortedKeys(tiers),
		Courses:   sortedKeys(courses),
	}
}

// ComputeStateStats counts colleges per state/UT. Every state and UT is
// present in the result even with a zero count. Colleges whose state is not
// recognised count towards TotalColleges only.
func ComputeStateStats(colleges []model.College) StateStats {
	counts := make(map[string]*StateCount, len(indianStates)+len(unionTerritories))
	order := make([]*StateCount, 0, len(indianStates)+len(unionTerritories))
	for _, s := range indianStates {
		sc := &StateCount{Name: s, Type: RegionState, Examples: []string{}}
		counts[s] = sc
		order = append(order, sc)
	}
	for _, s := range unionTerritories {
		sc := &StateCount{Name: s, Type: RegionUT, Examples: []string{}}
		counts[s] = sc
		order = append(order, sc)
	}

	for _, c := range colleges {
		name := CanonicalState(c.StateName())
		if name == "" {
			continue
		}
		sc := counts[name]
		sc.Count++
		if len(sc.Examples) < statesWithExamples {
			sc.Examples = append(sc.Examples, c.Name)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Count != order[j].Count {
			return order[i].Count > order[j].Count
		}
		return order[i].Name < order[j].Name
	})

	stats := StateStats{
		TotalStates:   len(indianStates),
		TotalUTs:      len(unionTerritories),
		TotalColleges: len(colleges),
		States:        make([]StateCount, 0, len(order)),
	}
	for _, sc := range order {
		stats.States = append(stats.States, *sc)
	}
	return stats
}

// ComputeAggregate builds the dashboard numbers: colleges per state, the top
// districts and the exams accepted by the most colleges.
func ComputeAggregate(colleges []model.College, exams []model.Exam) Aggregate {
	byState := map[string]int{}
	byDistrict := map[string]int{}
	for _, c := range colleges {
		byState[labelOrUnknown(c.StateName())]++
		byDistrict[labelOrUnknown(c.DistrictName())]++
	}

	popularity := make([]NamedCount, 0, len(exams))
	for _, e := range exams {
		popularity = append(popularity, NamedCount{
			Name:  e.DisplayName(),
			Count: len(e.CollegesAccepting) + len(e.AcceptedColleges),
		})
	}
	sortByCount(popularity)

	return Aggregate{
		TotalColleges:        len(colleges),
		TotalExams:           len(exams),
		StateDistribution:    rankCounts(byState, 0),
		DistrictDistribution: rankCounts(byDistrict, topDistricts),
		ExamPopularity:       truncate(popularity, topExams),
	}
}

func rankCounts(counts map[string]int, limit int) []NamedCount {
	out := make([]NamedCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, NamedCount{Name: name, Count: n})
	}
	sortByCount(out)
	return truncate(out, limit)
}

func sortByCount(list []NamedCount) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Count != list[j].Count {
			return list[i].Count > list[j].Count
		}
		return list[i].Name < list[j].Name
	})
}

func truncate(list []NamedCount, limit int) []NamedCount {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func labelOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func addNonEmpty(set map[string]struct{}, v string) {
	v = strings.TrimSpace(v)
	if v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
