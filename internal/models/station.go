package models

import "strconv"

// StationStatus is the operational state reported by the backend.
type StationStatus string

const (
	StatusOperative    StationStatus = "Operative"
	StatusOutOfService StationStatus = "Out of service"
	StatusClosed       StationStatus = "Closed"
)

// Position is a WGS84 coordinate pair in decimal degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Station is a bike-share dock record. The backend owns it; the console
// only holds cached copies and never invents one locally.
type Station struct {
	ID             int64         `json:"id"`
	Name           string        `json:"name"`
	Status         StationStatus `json:"status"`
	Capacity       *int          `json:"capacity"`
	BikesAvailable int           `json:"bikes_available"`
	Position       Position      `json:"position"`
}

// Operative reports whether the station renders with the active marker
// style. Every non-operative status renders identically.
func (s Station) Operative() bool {
	return s.Status == StatusOperative
}

// CapacityLabel returns the capacity for display, "N/A" when the backend
// did not report one.
func (s Station) CapacityLabel() string {
	if s.Capacity == nil {
		return "N/A"
	}
	return strconv.Itoa(*s.Capacity)
}

// StationPatch carries the fields of a station edit. Nil fields are left
// untouched by the backend.
type StationPatch struct {
	Name           *string        `json:"name,omitempty"`
	Status         *StationStatus `json:"status,omitempty"`
	Capacity       *int           `json:"capacity,omitempty"`
	BikesAvailable *int           `json:"bikes_available,omitempty"`
	Lat            *float64       `json:"lat,omitempty"`
	Lon            *float64       `json:"lon,omitempty"`
}
