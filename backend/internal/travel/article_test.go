package travel_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/source"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

func TestImageURL(t *testing.T) {
	sum := md5.Sum([]byte("Paris_montage.jpg"))
	h := hex.EncodeToString(sum[:])

	require.Equal(t,
		"https://upload.wikimedia.org/wikipedia/commons/"+h[:1]+"/"+h[:2]+"/Paris_montage.jpg",
		travel.ImageURL("Paris montage.jpg"))
	require.Empty(t, travel.ImageURL(""))
}

func TestColorByTag(t *testing.T) {
	tests := []struct {
		tag  string
		want uint32
	}{
		{"red", 0xffd00d0d},
		{" Blue ", 0xff1010a0},
		{"#00ff00", 0xff00ff00},
		{"#8000ff00", 0x8000ff00},
		{"#zzz", 0},
		{"chartreuse", 0},
		{"", 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, travel.ColorByTag(tt.tag), tt.tag)
	}
}

func TestOrderLanguages(t *testing.T) {
	tests := []struct {
		name   string
		langs  []string
		active string
		want   []string
	}{
		{"active then english", []string{"de", "en", "fr"}, "fr", []string{"fr", "en", "de"}},
		{"english active", []string{"de", "en", "fr"}, "en", []string{"en", "de", "fr"}},
		{"no english", []string{"de", "fr", "it"}, "it", []string{"it", "de", "fr"}},
		{"active missing", []string{"de", "en"}, "fr", []string{"en", "de"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, travel.OrderLanguages(tt.langs, tt.active))
		})
	}
}

func TestRouteRef(t *testing.T) {
	require.Equal(t, "123", travel.RouteRef("R000123"))
	require.Equal(t, "12", travel.RouteRef("12"))
	require.Equal(t, "", travel.RouteRef(""))
}

func TestCacheMergesLanguages(t *testing.T) {
	c := travel.NewCache()
	loc := geo.Point{Lat: 1, Lon: 2}

	en := &travel.Article{File: "a.obf", RouteID: "Q1", Title: "Town", Lang: "en", Location: loc}
	id, ok := c.Put(map[string]*travel.Article{"en": en})
	require.True(t, ok)

	enAgain := &travel.Article{File: "a.obf", RouteID: "Q1", Title: "Town", Lang: "en", Location: loc}
	de := &travel.Article{File: "a.obf", RouteID: "Q1", Title: "Stadt", Lang: "de", Location: loc}
	_, ok = c.Put(map[string]*travel.Article{"en": enAgain, "de": de})
	require.True(t, ok)

	got, cached := c.Get(id, "en")
	require.True(t, cached)
	require.Same(t, en, got)

	got, _ = c.Get(id, "")
	require.Same(t, en, got)

	got, cached = c.Get(id, "fr")
	require.True(t, cached)
	require.Nil(t, got)

	require.Equal(t, []string{"de", "en"}, c.Langs(id))
	require.Equal(t, 2, c.Len())

	found, ok := c.FindByTitle("Stadt")
	require.True(t, ok)
	require.Equal(t, "Q1", found.RouteID)

	_, cached = c.Get(travel.Identifier{File: "a.obf", RouteID: "Q2"}, "en")
	require.False(t, cached)

	_, ok = c.Put(nil)
	require.False(t, ok)
}

func TestCacheDefaultSlotAndCoordinateKeys(t *testing.T) {
	c := travel.NewCache()
	plain := &travel.Article{File: "b.obf", Title: "Hill", Location: geo.Point{Lat: 10.123456, Lon: 20.654321}}
	id, ok := c.Put(map[string]*travel.Article{"": plain})
	require.True(t, ok)

	got, _ := c.Get(id, "it")
	require.Same(t, plain, got)

	other := travel.Identifier{File: "b.obf", Title: "Colline", Lat: 10.1234561, Lon: 20.6543209}
	got, cached := c.Get(other, "it")
	require.True(t, cached)
	require.Same(t, plain, got)
}

func routeRecord(t *testing.T, tags string) source.Record {
	t.Helper()
	b := loadBook(t, "records:\n  - subtype: route_track\n    name: river_walk.gpx\n    lat: 1\n    lon: 2\n    tags: "+tags+"\n")
	var rec source.Record
	require.NoError(t, b.SearchName(context.Background(), source.NameQuery{}, func(r source.Record) bool {
		rec = r
		return false
	}))
	return rec
}

func TestReadRouteToleratesMalformedNumbers(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reader := travel.NewRecordReader(log)

	rec := routeRecord(t, `{distance: abc, diff_ele_up: "12.5", diff_ele_down: "x", route_id: R1, user: anna}`)
	articles := reader.Read("w.obf", rec)
	require.Len(t, articles, 1)

	a := articles["en"]
	require.NotNil(t, a)
	require.Equal(t, travel.KindRoute, a.Kind)
	require.Equal(t, "River walk", a.Title)
	require.Equal(t, "R1", a.RouteID)
	require.Equal(t, &travel.RouteStats{Distance: 0, ElevationGain: 12.5, ElevationLoss: 0, User: "anna"}, a.Route)
	require.Contains(t, buf.String(), "malformed route tag")
}

func TestReadArticlesPerLanguage(t *testing.T) {
	b := loadBook(t, europeBook)
	var paris source.Record
	require.NoError(t, b.SearchName(context.Background(), source.NameQuery{Prefix: "Paris"}, func(r source.Record) bool {
		paris = r
		return false
	}))
	require.Equal(t, []string{"en", "fr"}, travel.Languages(paris))

	articles := travel.NewRecordReader(nil).ReadArticles(europeFile, paris)
	require.Len(t, articles, 2)
	for lang, a := range articles {
		require.Equal(t, lang, a.Lang)
		require.Equal(t, travel.KindDescription, a.Kind)
		require.Nil(t, a.Route)
		require.Equal(t, "Q90", a.RouteID)
		require.Equal(t, paris.Location(), a.Location)
		require.Equal(t, "Paris montage.jpg", a.ImageTitle)
	}
	require.Equal(t, "Île-de-France,France", articles["en"].IsPartOf)
	require.Empty(t, articles["fr"].IsPartOf)
}
