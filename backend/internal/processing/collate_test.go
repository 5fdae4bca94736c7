package processing_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/processing"
)

func TestPrimaryCollatorOrder(t *testing.T) {
	c := processing.NewPrimaryCollator("en")
	titles := []string{"zurich", "Éze", "amsterdam", "Berlin"}
	sort.SliceStable(titles, func(i, j int) bool { return c.Compare(titles[i], titles[j]) < 0 })
	require.Equal(t, []string{"amsterdam", "Berlin", "Éze", "zurich"}, titles)
	require.Zero(t, c.Compare("paris", "PARIS"))
}

func TestStartsFromSpace(t *testing.T) {
	tests := []struct {
		name  string
		query string
		input string
		want  bool
	}{
		{name: "prefix", query: "par", input: "Paris", want: true},
		{name: "word prefix", query: "york", input: "New York", want: true},
		{name: "inside word", query: "aris", input: "Paris", want: false},
		{name: "diacritics", query: "zur", input: "Zürich", want: true},
		{name: "empty query", query: "", input: "Anything", want: true},
		{name: "empty name", query: "a", input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := processing.NewStartsFromSpace(tt.query)
			require.Equal(t, tt.want, m.Matches(tt.input))
		})
	}

	require.True(t, processing.MatchesAny(processing.NewStartsFromSpace("lon"), "Londres", "London"))
	require.False(t, processing.MatchesAny(processing.NewStartsFromSpace("lon")))
}
