package travel

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/DeafMist/travel-guide/backend/internal/processing"
	"github.com/DeafMist/travel-guide/backend/internal/source"
)

// routeLang keys the single language version of a route article.
const routeLang = "en"

// RecordReader converts source records into articles.
type RecordReader struct {
	log *slog.Logger
}

// NewRecordReader creates a reader that reports malformed tags to log.
func NewRecordReader(log *slog.Logger) *RecordReader {
	if log == nil {
		log = slog.Default()
	}
	return &RecordReader{log: log}
}

// Languages lists the languages a record carries content for, sorted.
func Languages(r source.Record) []string {
	set := map[string]struct{}{}
	for _, key := range r.InfoKeys() {
		for _, prefix := range []string{source.TagDescription + ":", source.TagIsPart + ":"} {
			if lang, ok := strings.CutPrefix(key, prefix); ok && lang != "" {
				set[lang] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for lang := range set {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// ReadArticle builds one language version of a description article.
func (rr *RecordReader) ReadArticle(file string, r source.Record, lang string) *Article {
	title := r.Name(lang)
	if title == "" {
		title = r.Name("")
	}
	return &Article{
		Kind:             KindDescription,
		File:             file,
		Title:            title,
		Lang:             lang,
		Content:          r.LangTag(source.TagDescription, lang),
		ContentJSON:      r.LangTag(source.TagContentJSON, lang),
		IsPartOf:         r.LangTag(source.TagIsPart, lang),
		AggregatedPartOf: r.LangTag(source.TagIsAggrPart, lang),
		IsParentOf:       r.LangTag(source.TagIsParentOf, lang),
		ImageTitle:       r.Tag(source.TagImageTitle),
		RouteID:          r.Tag(source.TagRouteID),
		RouteSource:      r.Tag(source.TagRouteSource),
		Location:         r.Location(),
	}
}

// ReadArticles builds every language version of a description article.
// The result is empty when the record carries no language content.
func (rr *RecordReader) ReadArticles(file string, r source.Record) map[string]*Article {
	langs := Languages(r)
	out := make(map[string]*Article, len(langs))
	for _, lang := range langs {
		out[lang] = rr.ReadArticle(file, r, lang)
	}
	return out
}

// ReadRoute builds the single route article of a track record, keyed "en".
// Malformed numeric tags default to zero.
func (rr *RecordReader) ReadRoute(file string, r source.Record) map[string]*Article {
	name := r.Name(routeLang)
	if name == "" {
		name = r.Name("")
	}
	a := &Article{
		Kind:     KindRoute,
		File:     file,
		Title:    processing.TrackTitle(name),
		Lang:     routeLang,
		RouteID:  r.Tag(source.TagRouteID),
		Location: r.Location(),
		Route: &RouteStats{
			Distance:      rr.parseFloat(r, source.TagDistance),
			ElevationGain: rr.parseFloat(r, source.TagDiffEleUp),
			ElevationLoss: rr.parseFloat(r, source.TagDiffEleDown),
			User:          r.Tag(source.TagUser),
		},
	}
	return map[string]*Article{routeLang: a}
}

// Read dispatches on the record subtype.
func (rr *RecordReader) Read(file string, r source.Record) map[string]*Article {
	if r.SubType() == source.SubtypeTrack {
		return rr.ReadRoute(file, r)
	}
	return rr.ReadArticles(file, r)
}

func (rr *RecordReader) parseFloat(r source.Record, tag string) float64 {
	raw := strings.TrimSpace(r.Tag(tag))
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		rr.log.Debug("malformed route tag", "tag", tag, "value", raw, "err", err)
		return 0
	}
	return v
}
