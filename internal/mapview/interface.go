package mapview

import (
	"context"

	"github.com/velibadmin/console/internal/models"
)

// StationSource is the slice of the backend the map view depends on.
type StationSource interface {
	GetStations(ctx context.Context, lat, lon, radius float64) ([]models.Station, error)
	GeocodeAddress(ctx context.Context, address string) (models.GeocodeResult, error)
}

// Notice is a transient user-facing banner message.
type Notice string

const (
	NoticeNone            Notice = ""
	NoticeLoadFailed      Notice = "Erreur lors du chargement des stations"
	NoticeAddressNotFound Notice = "Adresse introuvable. Essayez une autre adresse parisienne."
)

// Manager owns the map viewport, the visible station set and the
// current selection.
type Manager interface {
	// Viewport returns the current map center and zoom
	Viewport() models.Viewport

	// SetViewport records a viewport change and schedules a debounced
	// station reload for it
	SetViewport(vp models.Viewport)

	// Stations returns the currently visible stations
	Stations() []models.Station

	// Selected returns the selected station, if any
	Selected() (models.Station, bool)

	// Select marks a visible station as selected
	Select(id int64) bool

	// Deselect clears the selection
	Deselect()

	// SearchAddress recenters the map on a resolved address and reloads
	// stations immediately
	SearchAddress(ctx context.Context, address string) error

	// ApplyUpdate folds an updated record back into the station list
	ApplyUpdate(station models.Station)

	// ApplyDelete removes a deleted station from the list
	ApplyDelete(id int64)

	// Notice returns the pending banner message, if any
	Notice() Notice

	// ClearNotice dismisses the banner
	ClearNotice()

	// Loading reports whether a station reload is in flight
	Loading() bool

	// Reset restores the initial viewport and drops all fetched state
	Reset()

	// Subscribe returns a channel pulsed on every state change
	Subscribe() <-chan struct{}

	// Close stops the debounce timer and detaches in-flight reloads
	Close()
}
