package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/velibadmin/console/internal/models"
)

// StationWriter is the slice of the backend the detail popup depends on.
type StationWriter interface {
	UpdateStation(ctx context.Context, id int64, patch models.StationPatch) (models.Station, error)
	DeleteStation(ctx context.Context, id int64) error
}

// ErrBusy is returned when a save or delete is already in flight.
var ErrBusy = errors.New("operation already in flight")

// ErrNotEditing is returned by Save when no edit session is open.
var ErrNotEditing = errors.New("not in edit mode")

// Draft is the local working copy of a station's editable fields. It
// never reaches the station list; only the server's answer does.
type Draft struct {
	Name           string               `json:"name"`
	Status         models.StationStatus `json:"status"`
	Capacity       int                  `json:"capacity"`
	BikesAvailable int                  `json:"bikes_available"`
}

// Controller drives the read-only/edit presentation of one selected
// station. At most one station is open at a time.
type Controller struct {
	writer StationWriter

	mu      sync.Mutex
	station models.Station
	open    bool
	editing bool
	draft   Draft
	busy    bool
}

func NewController(writer StationWriter) *Controller {
	return &Controller{writer: writer}
}

// Open shows a station in read-only mode, replacing any previous one.
func (c *Controller) Open(station models.Station) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.station = station
	c.open = true
	c.editing = false
	c.draft = draftOf(station)
}

// Close discards everything, draft included.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = false
	c.editing = false
	c.busy = false
}

// Station returns the displayed station, if one is open.
func (c *Controller) Station() (models.Station, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.station, c.open
}

func (c *Controller) Editing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// StartEdit seeds the draft from the displayed station and switches to
// edit mode.
func (c *Controller) StartEdit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return false
	}
	c.editing = true
	c.draft = draftOf(c.station)
	return true
}

// SetDraft replaces the working copy. Nothing is sent anywhere.
func (c *Controller) SetDraft(draft Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = draft
}

// Cancel discards the draft and returns to read-only mode without any
// network call.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.editing = false
	c.draft = draftOf(c.station)
}

// Save sends the draft to the backend. On success the displayed station
// becomes the record the server answered with, not the draft, and edit
// mode ends. On failure the draft and edit mode survive for a retry.
func (c *Controller) Save(ctx context.Context) (models.Station, error) {
	c.mu.Lock()
	if !c.open || !c.editing {
		c.mu.Unlock()
		return models.Station{}, ErrNotEditing
	}
	if c.busy {
		c.mu.Unlock()
		return models.Station{}, ErrBusy
	}
	c.busy = true
	id := c.station.ID
	draft := c.draft
	c.mu.Unlock()

	updated, err := c.writer.UpdateStation(ctx, id, patchOf(draft))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		log.Error().Err(err).Int64("station_id", id).Msg("station update failed")
		return models.Station{}, fmt.Errorf("saving station: %w", err)
	}

	c.station = updated
	c.editing = false
	c.draft = draftOf(updated)
	return updated, nil
}

// Delete removes the open station, but only when the caller confirmed.
// Without confirmation no network call happens and the station stays.
// The returned flag reports whether the deletion actually went through.
func (c *Controller) Delete(ctx context.Context, confirmed bool) (bool, error) {
	if !confirmed {
		return false, nil
	}

	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return false, errors.New("no station open")
	}
	if c.busy {
		c.mu.Unlock()
		return false, ErrBusy
	}
	c.busy = true
	id := c.station.ID
	c.mu.Unlock()

	err := c.writer.DeleteStation(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	if err != nil {
		log.Error().Err(err).Int64("station_id", id).Msg("station delete failed")
		return false, fmt.Errorf("deleting station: %w", err)
	}

	c.open = false
	c.editing = false
	return true, nil
}

func draftOf(station models.Station) Draft {
	capacity := 0
	if station.Capacity != nil {
		capacity = *station.Capacity
	}
	return Draft{
		Name:           station.Name,
		Status:         station.Status,
		Capacity:       capacity,
		BikesAvailable: station.BikesAvailable,
	}
}

func patchOf(draft Draft) models.StationPatch {
	name := draft.Name
	status := draft.Status
	capacity := draft.Capacity
	bikes := draft.BikesAvailable
	return models.StationPatch{
		Name:           &name,
		Status:         &status,
		Capacity:       &capacity,
		BikesAvailable: &bikes,
	}
}
