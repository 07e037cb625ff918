package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesRewriter/internal/domain"
)

type namedScanner string

func (n namedScanner) Name() string { return string(n) }

func (n namedScanner) Scan(context.Context, Request) ([]domain.SourceItem, error) {
	return nil, nil
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(namedScanner("tdcategory"), namedScanner("feed"))

	s, err := reg.Resolve("feed")
	require.NoError(t, err)
	assert.Equal(t, "feed", s.Name())
	assert.Equal(t, []string{"feed", "tdcategory"}, reg.Names())

	_, err = reg.Resolve("sitemap")
	assert.EqualError(t, err, "scanner sitemap is not registered (known: feed, tdcategory)")
}

func TestRegistryZeroValueRegister(t *testing.T) {
	t.Parallel()

	var reg Registry
	reg.Register(namedScanner("feed"))
	_, err := reg.Resolve("feed")
	assert.NoError(t, err)
}
