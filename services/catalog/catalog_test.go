package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	colleges []model.College
	exams    []model.Exam
	err      error
}

func (s staticSource) Colleges(context.Context) ([]model.College, error) { return s.colleges, s.err }
func (s staticSource) Exams(context.Context) ([]model.Exam, error)       { return s.exams, s.err }

func sampleSource() staticSource {
	return staticSource{
		colleges: []model.College{
			{ID: "iit-kanpur", Name: "Indian Institute of Technology Kanpur", ShortName: "IIT Kanpur",
				Location: "Kanpur, Uttar Pradesh", RankingTier: "Tier 1", AcceptedExams: model.StringList{"jee-advanced", "gate"},
				Courses: []model.Course{{Name: "BTech Computer Science"}}},
			{ID: "bhu", Name: "Banaras Hindu University", Location: "Varanasi, Uttar Pradesh", RankingTier: "Tier 2",
				AcceptedExams: model.StringList{"cuet"}, Courses: []model.Course{{Name: "BA"}}},
			{ID: "goa-uni", Name: "Goa University", State: "Goa", District: "North Goa", RankingTier: "Tier 3",
				Alias: model.StringList{"GU"}},
			{ID: "diu-college", Name: "Government College Daman", Location: "Daman, Daman and Diu"},
		},
		exams: []model.Exam{
			{ID: "jee-advanced", Name: "Joint Entrance Examination Advanced", ShortName: "JEE Advanced", Type: "Engineering",
				CollegesAccepting: model.StringList{"iit-kanpur", "iit-unknown"}},
			{ID: "cuet", Name: "Common University Entrance Test", ShortName: "CUET", Type: "University"},
			{ID: "gate", Name: "Graduate Aptitude Test in Engineering", ShortName: "GATE", Type: "Engineering"},
		},
	}
}

func ids(colleges []model.College) []string {
	out := make([]string, 0, len(colleges))
	for _, c := range colleges {
		out = append(out, c.ID)
	}
	return out
}

func TestListCollegesFilters(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	tests := []struct {
		name  string
		query CollegeQuery
		want  []string
	}{
		{"state", CollegeQuery{State: "uttar pradesh"}, []string{"iit-kanpur", "bhu"}},
		{"state alias", CollegeQuery{State: "Dadra and Nagar Haveli and Daman and Diu"}, []string{"diu-college"}},
		{"district", CollegeQuery{District: "north goa"}, []string{"goa-uni"}},
		{"text on alias", CollegeQuery{Q: "gu"}, []string{"goa-uni"}},
		{"text on short name", CollegeQuery{Q: "iit"}, []string{"iit-kanpur"}},
		{"tier", CollegeQuery{Tier: "tier 2"}, []string{"bhu"}},
		{"course", CollegeQuery{Course: "computer"}, []string{"iit-kanpur"}},
		{"exam", CollegeQuery{Exam: "CUET"}, []string{"bhu"}},
		{"combined", CollegeQuery{State: "Uttar Pradesh", Exam: "gate"}, []string{"iit-kanpur"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.ListColleges(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(page.Colleges))
			assert.Equal(t, len(tt.want), page.Total)
		})
	}
}

func TestListCollegesPaging(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	page, err := svc.ListColleges(ctx, CollegeQuery{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"diu-college"}, ids(page.Colleges))
	assert.Equal(t, 4, page.Total)

	page, err = svc.ListColleges(ctx, CollegeQuery{Page: 9, Limit: 500})
	require.NoError(t, err)
	assert.Empty(t, page.Colleges)
	assert.Equal(t, MaxPageSize, page.Limit)

	page, err = svc.ListColleges(ctx, CollegeQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Limit)
	assert.Equal(t, 1, page.Page)
}

func TestSortColleges(t *testing.T) {
	colleges := sampleSource().colleges

	byName := append([]model.College(nil), colleges...)
	SortColleges(byName, "name", "")
	assert.Equal(t, []string{"bhu", "goa-uni", "diu-college", "iit-kanpur"}, ids(byName))

	byTier := append([]model.College(nil), colleges...)
	SortColleges(byTier, "tier", "asc")
	assert.Equal(t, []string{"iit-kanpur", "bhu", "goa-uni", "diu-college"}, ids(byTier))

	SortColleges(byTier, "ranking", "desc")
	assert.Equal(t, "diu-college", byTier[0].ID)

	byExams := append([]model.College(nil), colleges...)
	SortColleges(byExams, "exams", "")
	assert.Equal(t, "iit-kanpur", byExams[0].ID)

	unsorted := append([]model.College(nil), colleges...)
	SortColleges(unsorted, "bogus", "desc")
	assert.Equal(t, ids(colleges), ids(unsorted))
}

func TestSearch(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	res, err := svc.Search(ctx, "  ", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Colleges)
	assert.Empty(t, res.Exams)

	res, err = svc.Search(ctx, "kanpur", 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Colleges)
	assert.Equal(t, "iit-kanpur", res.Colleges[0].ID)

	res, err = svc.Search(ctx, "gate", 1)
	require.NoError(t, err)
	require.Len(t, res.Exams, 1)
	assert.Equal(t, "gate", res.Exams[0].ID)
}

func TestSuggest(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	got, err := svc.Suggest(ctx, "bhu", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Suggestion{ID: "bhu", Name: "Banaras Hindu University", Location: "Varanasi, Uttar Pradesh", Type: KindCollege}, got[0])

	got, err = svc.Suggest(ctx, "kanpur", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "iit-kanpur", got[0].ID)

	got, err = svc.Suggest(ctx, "cuet", KindExam)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CUET", got[0].Name)
	assert.Equal(t, "Common University Entrance Test", got[0].FullName)

	got, err = svc.Suggest(ctx, "university", KindCollege)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Suggest(ctx, "", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListExamsResolvesColleges(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	exams, err := svc.ListExams(ctx, ExamQuery{Type: "engineering"})
	require.NoError(t, err)
	require.Len(t, exams, 2)

	jee := exams[0]
	assert.Equal(t, "jee-advanced", jee.ID)
	assert.Equal(t, []string{"IIT Kanpur", "iit-unknown"}, jee.AcceptedCollegesResolved)
	assert.Equal(t, 2, jee.AcceptedCount)

	gate := exams[1]
	assert.Equal(t, []string{"IIT Kanpur"}, gate.AcceptedCollegesResolved)
	assert.Equal(t, []string{"General Aptitude", "Subject-specific paper"}, []string(gate.Syllabus))

	exams, err = svc.ListExams(ctx, ExamQuery{Q: "common"})
	require.NoError(t, err)
	require.Len(t, exams, 1)
	assert.Equal(t, []string{"Banaras Hindu University"}, exams[0].AcceptedCollegesResolved)
}

func TestExamDetail(t *testing.T) {
	svc := NewService(sampleSource())
	ctx := context.Background()

	view, err := svc.ExamDetail(ctx, "cuet")
	require.NoError(t, err)
	assert.Equal(t, 1, view.AcceptedCount)

	_, err = svc.ExamDetail(ctx, "missing")
	assert.ErrorIs(t, err, datastore.ErrNotFound)

	broken := NewService(staticSource{err: errors.New("redis down")})
	_, err = broken.ExamDetail(ctx, "cuet")
	assert.EqualError(t, err, "redis down")
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "iiotk", Initials("indian institute of technology kanpur"))
	assert.Equal(t, "", Initials("   "))
}
