package elasticsearch

import (
	"time"

	"github.com/DeafMist/travel-guide/backend/internal/geo"
	"github.com/DeafMist/travel-guide/backend/internal/models"
	"github.com/DeafMist/travel-guide/backend/internal/travel"
)

// ToDocument converts an article into its saved form.
func ToDocument(a *travel.Article, savedAt time.Time) models.SavedArticle {
	doc := models.SavedArticle{
		ID:               DocumentID(a.File, a.RouteID, a.Lang),
		Kind:             a.Kind.String(),
		File:             a.File,
		RouteID:          a.RouteID,
		Lang:             a.Lang,
		Title:            a.Title,
		Content:          a.Content,
		ContentJSON:      a.ContentJSON,
		IsPartOf:         a.IsPartOf,
		AggregatedPartOf: a.AggregatedPartOf,
		IsParentOf:       a.IsParentOf,
		ImageTitle:       a.ImageTitle,
		RouteSource:      a.RouteSource,
		Lat:              a.Location.Lat,
		Lon:              a.Location.Lon,
		SavedAt:          savedAt.UTC(),
	}
	if a.Route != nil {
		doc.Route = &models.RouteStats{
			Distance:      a.Route.Distance,
			ElevationGain: a.Route.ElevationGain,
			ElevationLoss: a.Route.ElevationLoss,
			User:          a.Route.User,
		}
	}
	if f, loaded := a.Geometry(); loaded {
		doc.Geometry = f
	}
	return doc
}

// FromDocument rebuilds an article from its saved form. Saved articles
// always count as having their geometry loaded.
func FromDocument(doc models.SavedArticle) *travel.Article {
	a := &travel.Article{
		Kind:             travel.KindDescription,
		File:             doc.File,
		Title:            doc.Title,
		Lang:             doc.Lang,
		Content:          doc.Content,
		ContentJSON:      doc.ContentJSON,
		IsPartOf:         doc.IsPartOf,
		AggregatedPartOf: doc.AggregatedPartOf,
		IsParentOf:       doc.IsParentOf,
		ImageTitle:       doc.ImageTitle,
		RouteID:          doc.RouteID,
		RouteSource:      doc.RouteSource,
		Location:         geo.Point{Lat: doc.Lat, Lon: doc.Lon},
	}
	if doc.Kind == travel.KindRoute.String() {
		a.Kind = travel.KindRoute
		a.Route = &travel.RouteStats{}
		if doc.Route != nil {
			a.Route = &travel.RouteStats{
				Distance:      doc.Route.Distance,
				ElevationGain: doc.Route.ElevationGain,
				ElevationLoss: doc.Route.ElevationLoss,
				User:          doc.Route.User,
			}
		}
	}
	a.AttachGeometry(doc.Geometry)
	return a
}
