// Package catalog implements the browse, search and suggestion logic that
// sits between the HTTP handlers and the data store.
package catalog

import (
	"context"

	"github.com/sahilchouksey/college-explorer-api/model"
)

// Source is the subset of the data store the catalog reads from.
type Source interface {
	Colleges(ctx context.Context) ([]model.College, error)
	Exams(ctx context.Context) ([]model.Exam, error)
}

type Service struct {
	source Source
}

func NewService(source Source) *Service {
	return &Service{source: source}
}
