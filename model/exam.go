package model

import (
	"encoding/json"
)

// Exam is an entrance examination record from exams.json.
type Exam struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	ShortName         string          `json:"shortName,omitempty"`
	Type              string          `json:"type,omitempty"`
	Syllabus          StringList      `json:"syllabus,omitempty"`
	Pattern           json.RawMessage `json:"pattern,omitempty"`
	ConductingBody    string          `json:"conductingBody,omitempty"`
	CollegesAccepting StringList      `json:"collegesAccepting,omitempty"`
	AcceptedColleges  StringList      `json:"acceptedColleges,omitempty"`
	Dates             json.RawMessage `json:"dates,omitempty"`
	PastPapers        json.RawMessage `json:"pastPapers,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var examFields = fieldSet(
	"id", "name", "shortName", "type", "syllabus", "pattern", "conductingBody",
	"collegesAccepting", "acceptedColleges", "dates", "pastPapers",
)

func (e *Exam) UnmarshalJSON(b []byte) error {
	type plain Exam
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := splitExtra(b, examFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*e = Exam(p)
	return nil
}

func (e Exam) MarshalJSON() ([]byte, error) {
	type plain Exam
	encoded, err := json.Marshal(plain(e))
	if err != nil {
		return nil, err
	}
	return mergeExtra(encoded, e.Extra)
}

// AcceptingIDs returns collegesAccepting, or acceptedColleges when the former is empty.
func (e Exam) AcceptingIDs() []string {
	if len(e.CollegesAccepting) > 0 {
		return e.CollegesAccepting
	}
	return e.AcceptedColleges
}

// DisplayName is the short name when one exists.
func (e Exam) DisplayName() string {
	return firstNonEmpty(e.ShortName, e.Name)
}

// ExamView is the API representation of an exam with accepted colleges resolved to names.
type ExamView struct {
	Exam
	AcceptedCount            int      `json:"acceptedCount"`
	AcceptedCollegesResolved []string `json:"acceptedCollegesResolved"`
}

func (v ExamView) MarshalJSON() ([]byte, error) {
	encoded, err := v.Exam.MarshalJSON()
	if err != nil {
		return nil, err
	}
	resolved := v.AcceptedCollegesResolved
	if resolved == nil {
		resolved = []string{}
	}
	count, _ := json.Marshal(v.AcceptedCount)
	names, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}
	return mergeExtra(encoded, map[string]json.RawMessage{
		"acceptedCount":            count,
		"acceptedCollegesResolved": names,
	})
}
