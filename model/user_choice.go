package model

import "encoding/json"

// ChoiceList is a user's ordered college preference list. Entries are kept as
// raw JSON because the frontend owns their shape.
type ChoiceList []json.RawMessage

// SharedList is a read-only snapshot of a choice list published under a share ID.
type SharedList struct {
	Choices   ChoiceList `json:"choices"`
	UserName  string     `json:"userName"`
	CreatedAt string     `json:"createdAt"`
}
