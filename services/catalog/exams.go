package catalog

import (
	"context"
	"strings"

	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/services/datastore"
)

// defaultSyllabi fills in exams whose records carry no syllabus.
var defaultSyllabi = map[string][]string{
	"xat": {
		"Verbal & Logical Ability",
		"Decision Making",
		"Quantitative Ability & Data Interpretation",
		"General Knowledge",
	},
	"cmat": {
		"Quantitative Techniques & Data Interpretation",
		"Logical Reasoning",
		"Language Comprehension",
		"General Awareness",
		"Innovation & Entrepreneurship",
	},
	"snap": {
		"General English",
		"Analytical & Logical Reasoning",
		"Quantitative, Data Interpretation & Data Sufficiency",
	},
	"gate": {
		"General Aptitude",
		"Subject-specific paper",
	},
}

type ExamQuery struct {
	Type string
	Q    string
}

// ListExams filters exams and resolves the colleges accepting each one.
func (s *Service) ListExams(ctx context.Context, q ExamQuery) ([]model.ExamView, error) {
	exams, err := s.source.Exams(ctx)
	if err != nil {
		return nil, err
	}
	colleges, err := s.source.Colleges(ctx)
	if err != nil {
		return nil, err
	}

	typ := strings.ToLower(strings.TrimSpace(q.Type))
	text := strings.ToLower(strings.TrimSpace(q.Q))
	names := displayNames(colleges)

	out := make([]model.ExamView, 0, len(exams))
	for _, e := range exams {
		if typ != "" && strings.ToLower(e.Type) != typ {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(e.Name), text) &&
			!strings.Contains(strings.ToLower(e.ShortName), text) {
			continue
		}
		out = append(out, resolveExam(e, colleges, names))
	}
	return out, nil
}

// ExamDetail returns one exam with its accepting colleges resolved.
func (s *Service) ExamDetail(ctx context.Context, id string) (model.ExamView, error) {
	exams, err := s.source.Exams(ctx)
	if err != nil {
		return model.ExamView{}, err
	}
	for _, e := range exams {
		if e.ID != id {
			continue
		}
		colleges, err := s.source.Colleges(ctx)
		if err != nil {
			return model.ExamView{}, err
		}
		return resolveExam(e, colleges, displayNames(colleges)), nil
	}
	return model.ExamView{}, datastore.ErrNotFound
}

// resolveExam maps accepted college IDs to display names. IDs that do not
// resolve are kept verbatim. When the exam lists no colleges, colleges whose
// acceptedExams name the exam are used instead.
func resolveExam(e model.Exam, colleges []model.College, names map[string]string) model.ExamView {
	resolved := []string{}
	for _, id := range e.AcceptingIDs() {
		if name, ok := names[id]; ok {
			resolved = append(resolved, name)
			continue
		}
		if strings.TrimSpace(id) != "" {
			resolved = append(resolved, id)
		}
	}

	if len(resolved) == 0 {
		key := strings.ToLower(firstNonEmpty(e.ID, e.ShortName, e.Name))
		for _, c := range colleges {
			for _, accepted := range c.AcceptedExams {
				if strings.ToLower(accepted) == key {
					resolved = append(resolved, c.DisplayName())
					break
				}
			}
		}
	}

	if len(e.Syllabus) == 0 {
		if syllabus, ok := defaultSyllabi[e.ID]; ok {
			e.Syllabus = append(model.StringList(nil), syllabus...)
		}
	}

	return model.ExamView{
		Exam:                     e,
		AcceptedCount:            len(resolved),
		AcceptedCollegesResolved: resolved,
	}
}

func displayNames(colleges []model.College) map[string]string {
	names := make(map[string]string, len(colleges))
	for _, c := range colleges {
		names[c.ID] = c.DisplayName()
	}
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
