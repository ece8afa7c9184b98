package domain

import "time"

// MapStatus is the visibility status of a catalog map.
type MapStatus string

const (
	MapActive  MapStatus = "active"
	MapDeleted MapStatus = "deleted"
)

// Map is a catalog entry for a single game map.
type Map struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      MapStatus `json:"status"`
	ImageURL    *string   `json:"image_url"`
	Players     string    `json:"players"`
	Tileset     string    `json:"tileset"`
	Overview    string    `json:"overview"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasImage reports whether the map references a stored image.
func (m *Map) HasImage() bool {
	return m.ImageURL != nil && *m.ImageURL != ""
}

// MapInput carries the fields of a new map.
type MapInput struct {
	Title       string
	Description string
	ImageURL    *string
	Players     string
	Tileset     string
	Overview    string
}

// MapPatch carries optional map fields; nil means unchanged.
type MapPatch struct {
	Title       *string
	Description *string
	ImageURL    *string
	Players     *string
	Tileset     *string
	Overview    *string
}

// Apply copies the set fields of p onto m.
func (p MapPatch) Apply(m *Map) {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.ImageURL != nil {
		if *p.ImageURL == "" {
			m.ImageURL = nil
		} else {
			url := *p.ImageURL
			m.ImageURL = &url
		}
	}
	if p.Players != nil {
		m.Players = *p.Players
	}
	if p.Tileset != nil {
		m.Tileset = *p.Tileset
	}
	if p.Overview != nil {
		m.Overview = *p.Overview
	}
}
