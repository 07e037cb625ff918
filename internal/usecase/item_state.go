package usecase

import (
	"context"

	"ArticlesRewriter/internal/domain"
	"ArticlesRewriter/internal/ports"
)

// ItemState is the position of one listing item in the pipeline.
type ItemState int

const (
	StateFetched ItemState = iota
	StateSkipped
	StateContentLoaded
	StatePersisted
	StateRewriting
	StateRewritten
	StateDone
)

func (s ItemState) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateSkipped:
		return "skipped"
	case StateContentLoaded:
		return "content_loaded"
	case StatePersisted:
		return "persisted"
	case StateRewriting:
		return "rewriting"
	case StateRewritten:
		return "rewritten"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Terminal reports states that end processing of an item.
func (s ItemState) Terminal() bool {
	return s == StateSkipped || s == StateDone
}

// stageHandler advances an item from one state. On error the returned state
// is where the item rests.
type stageHandler func(ctx context.Context, it *itemRun) (ItemState, error)

type itemRun struct {
	item      domain.SourceItem
	opts      *RunOptions
	content   ports.PageContent
	article   domain.Article
	rewrite   domain.RewriteRecord
	visited   []ItemState
	humanized bool
	circuit   bool
	err       error
}

func (it *itemRun) visit(s ItemState) {
	it.visited = append(it.visited, s)
}

func (it *itemRun) reached(s ItemState) bool {
	for _, v := range it.visited {
		if v == s {
			return true
		}
	}
	return false
}
