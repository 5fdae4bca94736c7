package source_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/source"
)

func TestSubtypeFilter(t *testing.T) {
	f := source.SubtypeFilter(source.SubtypeArticle)
	require.True(t, f.Accept(source.SubtypeArticle))
	require.False(t, f.Accept(source.SubtypeTrack))
	require.False(t, f.Accept(""))

	var none source.TypeFilter
	require.True(t, none.Accept(source.SubtypeTrack))
}
