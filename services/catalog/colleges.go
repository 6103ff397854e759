package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CollegeQuery holds the /api/colleges filters.
type CollegeQuery struct {
	State    string
	District string
	Q        string
	Tier     string
	Course   string
	Exam     string
	SortBy   string
	Order    string
	Page     int
	Limit    int
}

// Normalize clamps paging values to their allowed ranges.
func (q *CollegeQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
}

type CollegePage struct {
	Colleges []model.College
	Total    int
	Page     int
	Limit    int
}

// ListColleges filters, sorts and pages the college list.
func (s *Service) ListColleges(ctx context.Context, q CollegeQuery) (CollegePage, error) {
	q.Normalize()
	colleges, err := s.source.Colleges(ctx)
	if err != nil {
		return CollegePage{}, err
	}

	matched := FilterColleges(colleges, q)
	SortColleges(matched, q.SortBy, q.Order)

	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}

	return CollegePage{
		Colleges: matched[start:end],
		Total:    len(matched),
		Page:     q.Page,
		Limit:    q.Limit,
	}, nil
}

// FilterColleges returns a new slice with the colleges matching every set filter.
func FilterColleges(colleges []model.College, q CollegeQuery) []model.College {
	state := datastore.NormalizeStateName(q.State)
	district := strings.ToLower(strings.TrimSpace(q.District))
	text := strings.ToLower(strings.TrimSpace(q.Q))
	tier := strings.ToLower(strings.TrimSpace(q.Tier))
	course := strings.ToLower(strings.TrimSpace(q.Course))
	exam := strings.ToLower(strings.TrimSpace(q.Exam))

	out := make([]model.College, 0, len(colleges))
	for _, c := range colleges {
		if state != "" && !stateMatches(c, state) {
			continue
		}
		if district != "" && strings.ToLower(c.DistrictName()) != district {
			continue
		}
		if text != "" && !textMatches(c, text) {
			continue
		}
		if tier != "" && strings.ToLower(c.Tier()) != tier {
			continue
		}
		if course != "" && !offersCourse(c, course) {
			continue
		}
		if exam != "" && !acceptsExam(c, exam) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func stateMatches(c model.College, normalized string) bool {
	own := datastore.NormalizeStateName(c.StateName())
	if own == normalized {
		return true
	}
	canonical := datastore.CanonicalState(c.StateName())
	return canonical != "" && canonical == datastore.CanonicalState(normalized)
}

func textMatches(c model.College, text string) bool {
	if strings.Contains(strings.ToLower(c.Name), text) ||
		strings.Contains(strings.ToLower(c.ShortName), text) {
		return true
	}
	for _, a := range c.Alias {
		if strings.Contains(strings.ToLower(a), text) {
			return true
		}
	}
	return false
}

func offersCourse(c model.College, course string) bool {
	for _, cr := range c.Courses {
		if strings.Contains(strings.ToLower(cr.Name), course) {
			return true
		}
	}
	return false
}

func acceptsExam(c model.College, exam string) bool {
	for _, e := range c.AcceptedExams {
		if strings.ToLower(e) == exam {
			return true
		}
	}
	for _, cr := range c.Courses {
		for _, e := range cr.Exams {
			if strings.ToLower(e) == exam {
				return true
			}
		}
	}
	return false
}

// SortColleges orders colleges in place. Unknown sort keys keep the input order.
func SortColleges(colleges []model.College, sortBy, order string) {
	desc := strings.EqualFold(order, "desc")
	var less func(a, b model.College) bool

	switch strings.ToLower(sortBy) {
	case "name":
		less = func(a, b model.College) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case "ranking", "tier":
		// best tier first in ascending order
		less = func(a, b model.College) bool { return tierScore(a.Tier()) > tierScore(b.Tier()) }
	case "exams":
		less = func(a, b model.College) bool { return len(a.AcceptedExams) > len(b.AcceptedExams) }
	default:
		return
	}

	sort.SliceStable(colleges, func(i, j int) bool {
		if desc {
			return less(colleges[j], colleges[i])
		}
		return less(colleges[i], colleges[j])
	})
}

func tierScore(tier string) int {
	t := strings.ToLower(tier)
	switch {
	case strings.Contains(t, "tier 1"):
		return 3
	case strings.Contains(t, "tier 2"):
		return 2
	case strings.Contains(t, "tier 3"):
		return 1
	default:
		return 0
	}
}
