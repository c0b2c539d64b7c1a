package search

import (
	"context"
	"strings"
)

// MaxRelated caps how many related snippets a result keeps.
const MaxRelated = 3

type Result struct {
	Abstract string   `json:"abstract"`
	Related  []string `json:"related"`
}

func (r Result) Empty() bool {
	return strings.TrimSpace(r.Abstract) == "" && len(r.Related) == 0
}

type Provider interface {
	Search(ctx context.Context, query string) (Result, error)
}
