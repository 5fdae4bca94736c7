package travel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/source"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

const alpsWays = `
file: Alps.travel.obf
objects:
  - tags: {ref: "123", name: alpine_loop}
    points: [[45.0, 6.0], [45.01, 6.01]]
`

const pyreneesWays = `
file: Pyrenees.travel.obf
objects:
  - tags: {ref: "123", name: alpine_loop}
    points: [[42.6, 0.6], [42.61, 0.61], [42.62, 0.62]]
  - tags: {ref: "123", name: alpine_loop}
    points: [[42.62, 0.62], [42.63, 0.63]]
`

const emptyWays = `
file: Jura.travel.obf
objects:
  - tags: {ref: "456", name: crest_trail}
    points: [[46.5, 6.0], [46.6, 6.1]]
`

func alpineLoop(file string) *travel.Article {
	return &travel.Article{Kind: travel.KindRoute, File: file, Title: "Alpine loop", Lang: "en", RouteID: "R000123"}
}

func segmentSizes(t *testing.T, r *travel.RouteResolver, a *travel.Article) []int {
	t.Helper()
	f := r.Resolve(context.Background(), a)
	require.NotNil(t, f)
	require.Len(t, f.Tracks, 1)
	sizes := make([]int, 0, len(f.Tracks[0].Segments))
	for _, s := range f.Tracks[0].Segments {
		sizes = append(sizes, len(s.Points))
	}
	return sizes
}

func TestResolveStopsAtFirstSourceWithWays(t *testing.T) {
	alps, pyrenees := loadBook(t, alpsWays), loadBook(t, pyreneesWays)

	r := travel.NewRouteResolver(source.Static{alps, pyrenees}, nil)
	require.Equal(t, []int{2}, segmentSizes(t, r, alpineLoop("")))

	r = travel.NewRouteResolver(source.Static{pyrenees, alps}, nil)
	require.Equal(t, []int{3, 2}, segmentSizes(t, r, alpineLoop("")))
}

func TestResolveSkipsFailingSource(t *testing.T) {
	r := travel.NewRouteResolver(source.Static{failingSource{}, loadBook(t, pyreneesWays)}, nil)
	require.Equal(t, []int{3, 2}, segmentSizes(t, r, alpineLoop("")))
}

func TestResolveSourceSelection(t *testing.T) {
	jura := &countingSource{Source: loadBook(t, emptyWays)}
	alps := &countingSource{Source: loadBook(t, alpsWays)}
	pyrenees := &countingSource{Source: loadBook(t, pyreneesWays)}
	r := travel.NewRouteResolver(source.Static{jura, alps, pyrenees}, nil)

	// Without a file every source is a candidate, in provider order.
	require.Equal(t, []int{2}, segmentSizes(t, r, alpineLoop("")))
	require.Equal(t, 1, jura.calls())
	require.Equal(t, 1, alps.calls())
	require.Zero(t, pyrenees.calls())

	// A file pins the scan to that source.
	require.Equal(t, []int{3, 2}, segmentSizes(t, r, alpineLoop("Pyrenees.travel.obf")))
	require.Equal(t, 1, jura.calls())
	require.Equal(t, 1, alps.calls())
	require.Equal(t, 1, pyrenees.calls())

	require.Nil(t, r.Resolve(context.Background(), alpineLoop("Jura.travel.obf")))
	require.Nil(t, r.Resolve(context.Background(), &travel.Article{Kind: travel.KindRoute, Title: "Alpine loop"}))
}

func TestMaterializeTrackScansAllSourcesWithoutFile(t *testing.T) {
	repo := newRepo(t, []source.Source{failingSource{}, loadBook(t, emptyWays), loadBook(t, pyreneesWays)})

	route := alpineLoop("")
	path, err := repo.MaterializeTrack(context.Background(), route, t.TempDir())
	require.NoError(t, err)
	require.FileExists(t, path)

	f, loaded := route.Geometry()
	require.True(t, loaded)
	require.Equal(t, 5, f.PointCount())
}
