package dedupe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/travel-guide/backend/internal/dedupe"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestWindowRemembersMarkedKeys(t *testing.T) {
	w := dedupe.NewWindow[string](10, time.Minute)
	require.False(t, w.Seen("paris.gpx"))
	w.Mark("paris.gpx")
	require.True(t, w.Seen("paris.gpx"))
	require.Equal(t, 1, w.Len())
}

func TestWindowExpiresAfterTTL(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	w := dedupe.NewWindow[string](10, time.Minute).WithClock(c.now)

	w.Mark("lyon.gpx")
	c.t = c.t.Add(59 * time.Second)
	require.True(t, w.Seen("lyon.gpx"))

	c.t = c.t.Add(2 * time.Second)
	require.False(t, w.Seen("lyon.gpx"))

	w.Mark("nice.gpx")
	require.Equal(t, 1, w.Len())
}

func TestWindowCapacityEvictsOldest(t *testing.T) {
	type key struct{ file, lang string }
	w := dedupe.NewWindow[key](1, time.Minute)

	w.Mark(key{"a.obf", "en"})
	w.Mark(key{"a.obf", "fr"})

	require.False(t, w.Seen(key{"a.obf", "en"}))
	require.True(t, w.Seen(key{"a.obf", "fr"}))
}
