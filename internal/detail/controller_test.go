package detail

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velibadmin/console/internal/models"
)

type fakeWriter struct {
	mu          sync.Mutex
	updateCalls int
	deleteCalls int
	lastPatch   models.StationPatch
	updated     models.Station
	updateErr   error
	deleteErr   error
}

func (f *fakeWriter) UpdateStation(_ context.Context, _ int64, patch models.StationPatch) (models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	f.lastPatch = patch
	if f.updateErr != nil {
		return models.Station{}, f.updateErr
	}
	return f.updated, nil
}

func (f *fakeWriter) DeleteStation(_ context.Context, _ int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func testStation() models.Station {
	capacity := 20
	return models.Station{
		ID:             7,
		Name:           "Bastille",
		Status:         models.StatusOperative,
		Capacity:       &capacity,
		BikesAvailable: 12,
		Position:       models.Position{Lat: 48.853, Lon: 2.369},
	}
}

func TestOpenSeedsReadOnlyView(t *testing.T) {
	t.Parallel()

	ctrl := NewController(&fakeWriter{})
	ctrl.Open(testStation())

	station, open := ctrl.Station()
	require.True(t, open)
	assert.Equal(t, "Bastille", station.Name)
	assert.False(t, ctrl.Editing())
}

func TestStartEditSeedsDraftFromStation(t *testing.T) {
	t.Parallel()

	ctrl := NewController(&fakeWriter{})
	ctrl.Open(testStation())
	require.True(t, ctrl.StartEdit())

	draft := ctrl.Draft()
	assert.Equal(t, "Bastille", draft.Name)
	assert.Equal(t, models.StatusOperative, draft.Status)
	assert.Equal(t, 20, draft.Capacity)
	assert.Equal(t, 12, draft.BikesAvailable)
}

func TestStartEditWithoutOpenStation(t *testing.T) {
	t.Parallel()

	ctrl := NewController(&fakeWriter{})
	assert.False(t, ctrl.StartEdit())
}

func TestMissingCapacitySeedsZero(t *testing.T) {
	t.Parallel()

	station := testStation()
	station.Capacity = nil

	ctrl := NewController(&fakeWriter{})
	ctrl.Open(station)
	require.True(t, ctrl.StartEdit())

	assert.Zero(t, ctrl.Draft().Capacity)
}

func TestCancelDiscardsDraftWithoutNetworkCall(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	ctrl := NewController(writer)
	ctrl.Open(testStation())
	require.True(t, ctrl.StartEdit())

	ctrl.SetDraft(Draft{Name: "Renamed", Status: models.StatusClosed, Capacity: 5, BikesAvailable: 1})
	ctrl.Cancel()

	assert.False(t, ctrl.Editing())
	assert.Equal(t, "Bastille", ctrl.Draft().Name, "draft reverts to the station")
	assert.Zero(t, writer.updateCalls, "cancel must not touch the network")

	station, _ := ctrl.Station()
	assert.Equal(t, "Bastille", station.Name)
}

func TestSaveAdoptsServerRecordOverDraft(t *testing.T) {
	t.Parallel()

	serverCapacity := 18
	writer := &fakeWriter{
		// The server answers with different values than the draft holds.
		updated: models.Station{
			ID:             7,
			Name:           "Bastille (rebuilt)",
			Status:         models.StatusOutOfService,
			Capacity:       &serverCapacity,
			BikesAvailable: 2,
			Position:       models.Position{Lat: 48.853, Lon: 2.369},
		},
	}

	ctrl := NewController(writer)
	ctrl.Open(testStation())
	require.True(t, ctrl.StartEdit())
	ctrl.SetDraft(Draft{Name: "A", Status: models.StatusClosed, Capacity: 20, BikesAvailable: 5})

	updated, err := ctrl.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bastille (rebuilt)", updated.Name)
	station, _ := ctrl.Station()
	assert.Equal(t, "Bastille (rebuilt)", station.Name, "displayed fields come from the server body")
	assert.Equal(t, models.StatusOutOfService, station.Status)
	assert.False(t, ctrl.Editing(), "save exits edit mode")

	require.NotNil(t, writer.lastPatch.Name)
	assert.Equal(t, "A", *writer.lastPatch.Name, "the draft is what was sent")
	require.NotNil(t, writer.lastPatch.Status)
	assert.Equal(t, models.StatusClosed, *writer.lastPatch.Status)
}

func TestSaveFailureKeepsDraftAndEditMode(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{updateErr: errors.New("backend down")}
	ctrl := NewController(writer)
	ctrl.Open(testStation())
	require.True(t, ctrl.StartEdit())
	ctrl.SetDraft(Draft{Name: "Renamed", Status: models.StatusClosed, Capacity: 9, BikesAvailable: 3})

	_, err := ctrl.Save(context.Background())
	require.Error(t, err)

	assert.True(t, ctrl.Editing(), "edit mode survives a failed save")
	assert.Equal(t, "Renamed", ctrl.Draft().Name, "draft survives a failed save")

	station, _ := ctrl.Station()
	assert.Equal(t, "Bastille", station.Name, "displayed station is untouched")
}

func TestSaveWithoutEditSession(t *testing.T) {
	t.Parallel()

	ctrl := NewController(&fakeWriter{})
	ctrl.Open(testStation())

	_, err := ctrl.Save(context.Background())
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestDeleteDeclinedIssuesNoCall(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	ctrl := NewController(writer)
	ctrl.Open(testStation())

	deleted, err := ctrl.Delete(context.Background(), false)
	require.NoError(t, err)

	assert.False(t, deleted)
	assert.Zero(t, writer.deleteCalls, "declining confirmation must not reach the network")
	_, open := ctrl.Station()
	assert.True(t, open, "station stays visible")
}

func TestDeleteConfirmedClosesPopup(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	ctrl := NewController(writer)
	ctrl.Open(testStation())

	deleted, err := ctrl.Delete(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, deleted)
	assert.Equal(t, 1, writer.deleteCalls)
	_, open := ctrl.Station()
	assert.False(t, open, "popup closes after a successful delete")
}

func TestDeleteFailureLeavesPopupOpen(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{deleteErr: errors.New("backend down")}
	ctrl := NewController(writer)
	ctrl.Open(testStation())

	deleted, err := ctrl.Delete(context.Background(), true)
	require.Error(t, err)

	assert.False(t, deleted)
	_, open := ctrl.Station()
	assert.True(t, open, "failed delete takes no further action")
}
