package catalog

import (
	"context"
	"strings"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilm/fuzzy"
)

const (
	DefaultSearchLimit = 20
	SuggestLimit       = 8

	KindCollege = "college"
	KindExam    = "exam"
)

type SearchResults struct {
	Colleges []model.College `json:"colleges"`
	Exams    []model.Exam    `json:"exams"`
}

type Suggestion struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName,omitempty"`
	Location string `json:"location,omitempty"`
	Type     string `json:"type"`
}

type collegeSource []model.College

func (s collegeSource) Len() int { return len(s) }

func (s collegeSource) String(i int) string {
	c := s[i]
	parts := []string{c.Name, c.ShortName}
	parts = append(parts, c.Alias...)
	return strings.ToLower(strings.Join(parts, " "))
}

type examSource []model.Exam

func (s examSource) Len() int { return len(s) }

func (s examSource) String(i int) string {
	return strings.ToLower(s[i].Name + " " + s[i].ShortName + " " + s[i].ID)
}

// Search runs a fuzzy match over college and exam names, best matches first.
func (s *Service) Search(ctx context.Context, q string, limit int) (SearchResults, error) {
	results := SearchResults{Colleges: []model.College{}, Exams: []model.Exam{}}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return results, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	colleges, err := s.source.Colleges(ctx)
	if err != nil {
		return results, err
	}
	exams, err := s.source.Exams(ctx)
	if err != nil {
		return results, err
	}

	for _, m := range fuzzy.FindFrom(q, collegeSource(colleges)) {
		if len(results.Colleges) == limit {
			break
		}
		results.Colleges = append(results.Colleges, colleges[m.Index])
	}
	for _, m := range fuzzy.FindFrom(q, examSource(exams)) {
		if len(results.Exams) == limit {
			break
		}
		results.Exams = append(results.Exams, exams[m.Index])
	}
	return results, nil
}

// Suggest returns quick completions: substring matches on name and short
// name, plus initials for colleges ("bhu" finds "Banaras Hindu University").
// kind limits results to "college" or "exam".
func (s *Service) Suggest(ctx context.Context, q, kind string) ([]Suggestion, error) {
	out := []Suggestion{}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return out, nil
	}

	if kind == "" || kind == KindCollege {
		colleges, err := s.source.Colleges(ctx)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, c := range colleges {
			if n == SuggestLimit {
				break
			}
			name := strings.ToLower(c.Name)
			if strings.Contains(name, q) || strings.Contains(strings.ToLower(c.ShortName), q) ||
				strings.Contains(Initials(name), q) {
				out = append(out, Suggestion{ID: c.ID, Name: c.Name, Location: c.Location, Type: KindCollege})
				n++
			}
		}
	}

	if kind == "" || kind == KindExam {
		exams, err := s.source.Exams(ctx)
		if err != nil {
			return nil, err
		}
		n := 0
		for _, e := range exams {
			if n == SuggestLimit {
				break
			}
			if strings.Contains(strings.ToLower(e.Name), q) || strings.Contains(strings.ToLower(e.ShortName), q) {
				out = append(out, Suggestion{ID: e.ID, Name: e.DisplayName(), FullName: e.Name, Type: KindExam})
				n++
			}
		}
	}
	return out, nil
}

// Initials returns the first letter of every word.
func Initials(name string) string {
	var b strings.Builder
	for _, w := range strings.Fields(name) {
		r := []rune(w)
		b.WriteRune(r[0])
	}
	return b.String()
}
