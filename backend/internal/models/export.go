package models

import "time"

// ExportRequest asks the worker to write the track file of an article.
type ExportRequest struct {
	RequestID   string    `json:"request_id"`
	File        string    `json:"file"`
	RouteID     string    `json:"route_id"`
	Title       string    `json:"title"`
	Lang        string    `json:"lang"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
