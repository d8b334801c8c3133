package types

import "time"

// GeoPoint is a GeoJSON point. Coordinates are ordered [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a point from longitude and latitude.
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// Area is a barangay, the smallest administrative unit households and
// workers are assigned to.
type Area struct {
	// ID is the unique identifier of the area.
	ID int `json:"id" db:"id"`

	// Name is unique (case-insensitively) among non-deleted areas.
	Name string `json:"name" db:"name"`

	// Location defaults to the origin when no coordinate is known.
	Location GeoPoint `json:"location" db:"-"`

	Deleted   bool      `json:"deleted" db:"deleted"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
