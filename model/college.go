package model

import (
	"encoding/json"
	"strings"
)

// College is a single institution record as stored in shard files, the
// override ledger and the colleges:map Redis hash. Keys not modelled here are
// kept in Extra so records survive a decode/encode cycle unchanged.
type College struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ShortName     string          `json:"shortName,omitempty"`
	Alias         StringList      `json:"alias,omitempty"`
	Location      string          `json:"location,omitempty"`
	State         string          `json:"state,omitempty"`
	District      string          `json:"district,omitempty"`
	RankingTier   FlexString      `json:"rankingTier,omitempty"`
	Ranking       FlexString      `json:"ranking,omitempty"`
	Type          string          `json:"type,omitempty"`
	Overview      string          `json:"overview,omitempty"`
	OfficialURL   string          `json:"officialUrl,omitempty"`
	AcceptedExams StringList      `json:"acceptedExams,omitempty"`
	Courses       []Course        `json:"courses,omitempty"`
	Placements    json.RawMessage `json:"placements,omitempty"`
	PastCutoffs   json.RawMessage `json:"pastCutoffs,omitempty"`
	Source        string          `json:"source,omitempty"`
	LastUpdated   string          `json:"lastUpdated,omitempty"`
	Meta          map[string]any  `json:"meta,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Course is one programme offered by a college.
type Course struct {
	Name     string     `json:"name"`
	Degree   string     `json:"degree,omitempty"`
	Duration FlexString `json:"duration,omitempty"`
	Exams    StringList `json:"exams,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var collegeFields = fieldSet(
	"id", "name", "shortName", "alias", "location", "state", "district",
	"rankingTier", "ranking", "type", "overview", "officialUrl", "acceptedExams",
	"courses", "placements", "pastCutoffs", "source", "lastUpdated", "meta",
)

var courseFields = fieldSet("name", "degree", "duration", "exams")

func (c *College) UnmarshalJSON(b []byte) error {
	type plain College
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := splitExtra(b, collegeFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*c = College(p)
	return nil
}

func (c College) MarshalJSON() ([]byte, error) {
	type plain College
	encoded, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	return mergeExtra(encoded, c.Extra)
}

func (c *Course) UnmarshalJSON(b []byte) error {
	type plain Course
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := splitExtra(b, courseFields)
	if err != nil {
		return err
	}
	p.Extra = extra
	*c = Course(p)
	return nil
}

func (c Course) MarshalJSON() ([]byte, error) {
	type plain Course
	encoded, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	return mergeExtra(encoded, c.Extra)
}

// StateName returns the explicit state field, falling back to the last
// comma-separated part of the free-text location ("City, State").
func (c College) StateName() string {
	if s := strings.TrimSpace(c.State); s != "" {
		return s
	}
	if c.Location == "" {
		return ""
	}
	parts := strings.Split(c.Location, ",")
	return strings.TrimSpace(parts[len(parts)-1])
}

// DistrictName prefers meta.district over the top-level district field.
func (c College) DistrictName() string {
	if c.Meta != nil {
		if d := stringFromAny(c.Meta["district"]); strings.TrimSpace(d) != "" {
			return strings.TrimSpace(d)
		}
	}
	return strings.TrimSpace(c.District)
}

// Tier returns rankingTier, or the legacy ranking field.
func (c College) Tier() string {
	return firstNonEmpty(c.RankingTier.String(), c.Ranking.String())
}

// DisplayName is the short name when one exists.
func (c College) DisplayName() string {
	return firstNonEmpty(c.ShortName, c.Name)
}

// Valid reports whether the record carries the two fields every shard entry needs.
func (c College) Valid() bool {
	return strings.TrimSpace(c.ID) != "" && strings.TrimSpace(c.Name) != ""
}
