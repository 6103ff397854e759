package datastore

import (
	"testing"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalStateFoldsAliases(t *testing.T) {
	cases := map[string]string{
		"Daman and Diu":         "Dadra and Nagar Haveli and Daman and Diu",
		"Dadra & Nagar  Haveli": "Dadra and Nagar Haveli and Daman and Diu",
		"new delhi":             "Delhi",
		"NCT of Delhi":          "Delhi",
		"Orissa":                "Odisha",
		"Pondicherry":           "Puducherry",
		"Jammu & Kashmir":       "Jammu and Kashmir",
		" Tamil Nadu ":          "Tamil Nadu",
		"Atlantis":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalState(in), in)
	}
}

func TestComputeStateStats(t *testing.T) {
	colleges := []model.College{
		{ID: "1", Name: "Goa One", Location: "Panaji, Goa"},
		{ID: "2", Name: "Goa Two", State: "Goa"},
		{ID: "3", Name: "Diu College", Location: "Diu, Daman and Diu"},
		{ID: "4", Name: "Cuttack College", Location: "Cuttack, Orissa"},
		{ID: "5", Name: "Goa Three", Location: "Margao, Goa"},
		{ID: "6", Name: "Goa Four", Location: "Vasco, Goa"},
		{ID: "7", Name: "Nowhere", Location: "Somewhere"},
	}

	stats := ComputeStateStats(colleges)
	assert.Equal(t, 28, stats.TotalStates)
	assert.Equal(t, 8, stats.TotalUTs)
	assert.Equal(t, 7, stats.TotalColleges)
	require.Len(t, stats.States, 36)

	top := stats.States[0]
	assert.Equal(t, "Goa", top.Name)
	assert.Equal(t, 4, top.Count)
	assert.Equal(t, RegionState, top.Type)
	assert.Equal(t, []string{"Goa One", "Goa Two", "Goa Three"}, top.Examples)

	byName := map[string]StateCount{}
	for _, s := range stats.States {
		byName[s.Name] = s
	}
	assert.Equal(t, 1, byName["Dadra and Nagar Haveli and Daman and Diu"].Count)
	assert.Equal(t, RegionUT, byName["Dadra and Nagar Haveli and Daman and Diu"].Type)
	assert.Equal(t, 1, byName["Odisha"].Count)
	assert.Equal(t, 0, byName["Kerala"].Count)
	assert.NotNil(t, byName["Kerala"].Examples)

	for i := 1; i < len(stats.States); i++ {
		assert.GreaterOrEqual(t, stats.States[i-1].Count, stats.States[i].Count)
	}
}

func TestComputeFilters(t *testing.T) {
	colleges := []model.College{
		{ID: "1", Name: "A", Location: "Pune, Maharashtra", RankingTier: "Tier 1",
			Meta: map[string]any{"district": "Pune"}, Courses: []model.Course{{Name: "MBA"}, {Name: "BTech"}}},
		{ID: "2", Name: "B", State: "Goa", Ranking: "Tier 2", District: "North Goa",
			Courses: []model.Course{{Name: "BTech"}}},
		{ID: "3", Name: "C"},
	}

	f := ComputeFilters(colleges)
	assert.Equal(t, []string{"Goa", "Maharashtra"}, f.States)
	assert.Equal(t, []string{"North Goa", "Pune"}, f.Districts)
	assert.Equal(t, []string{"Tier 1", "Tier 2"}, f.Tiers)
	assert.Equal(t, []string{"BTech", "MBA"}, f.Courses)

	empty := ComputeFilters(nil)
	assert.NotNil(t, empty.States)
	assert.Empty(t, empty.States)
}

func TestComputeAggregate(t *testing.T) {
	colleges := []model.College{
		{ID: "1", Name: "A", State: "Goa", District: "North Goa"},
		{ID: "2", Name: "B", State: "Goa", District: "North Goa"},
		{ID: "3", Name: "C", State: "Kerala"},
	}
	exams := []model.Exam{
		{ID: "cat", Name: "Common Admission Test", ShortName: "CAT", CollegesAccepting: model.StringList{"1", "2"}},
		{ID: "gate", Name: "GATE", AcceptedColleges: model.StringList{"3"}},
		{ID: "none", Name: "Unused"},
	}

	agg := ComputeAggregate(colleges, exams)
	assert.Equal(t, 3, agg.TotalColleges)
	assert.Equal(t, 3, agg.TotalExams)
	assert.Equal(t, []NamedCount{{Name: "Goa", Count: 2}, {Name: "Kerala", Count: 1}}, agg.StateDistribution)
	assert.Equal(t, []NamedCount{{Name: "North Goa", Count: 2}, {Name: "Unknown", Count: 1}}, agg.DistrictDistribution)
	assert.Equal(t, "CAT", agg.ExamPopularity[0].Name)
	assert.Equal(t, 2, agg.ExamPopularity[0].Count)
}
