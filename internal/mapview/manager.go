package mapview

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velibadmin/console/internal/cache"
	"github.com/velibadmin/console/internal/models"
)

const (
	// DefaultReloadDelay is how long the viewport must settle before a
	// station reload is issued.
	DefaultReloadDelay = 500 * time.Millisecond

	// DefaultRadius is the fetch radius around the viewport center, in
	// degrees.
	DefaultRadius = 0.015

	// DefaultSearchZoom is the zoom applied after a successful address
	// search.
	DefaultSearchZoom = 14
)

// ParisViewport is the initial map position.
var ParisViewport = models.Viewport{
	Latitude:  48.8566,
	Longitude: 2.3522,
	Zoom:      12,
}

type Options struct {
	Source       StationSource
	ReloadDelay  time.Duration
	Radius       float64
	SearchZoom   float64
	Initial      models.Viewport
	GeocodeCache *cache.GeocodeCache
}

type manager struct {
	src     StationSource
	delay   time.Duration
	radius  float64
	zoom    float64
	initial models.Viewport
	geocode *cache.GeocodeCache

	mu           sync.Mutex
	viewport     models.Viewport
	stations     []models.Station
	selectedID   int64
	hasSelection bool
	notice       Notice
	loading      bool
	timer        *time.Timer
	seq          uint64
	closed       bool
	listeners    []chan struct{}
}

// NewManager creates a map view manager positioned on the initial
// viewport. No fetch happens until the first SetViewport or search.
func NewManager(opts Options) Manager {
	if opts.ReloadDelay == 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	if opts.Radius == 0 {
		opts.Radius = DefaultRadius
	}
	if opts.SearchZoom == 0 {
		opts.SearchZoom = DefaultSearchZoom
	}
	if opts.Initial == (models.Viewport{}) {
		opts.Initial = ParisViewport
	}

	return &manager{
		src:      opts.Source,
		delay:    opts.ReloadDelay,
		radius:   opts.Radius,
		zoom:     opts.SearchZoom,
		initial:  opts.Initial,
		geocode:  opts.GeocodeCache,
		viewport: opts.Initial,
	}
}

func (m *manager) Viewport() models.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

// SetViewport reschedules the pending reload on every call, so a burst
// of viewport changes collapses into one fetch for the settled position.
func (m *manager) SetViewport(vp models.Viewport) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.viewport = vp
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.delay, func() {
		m.reload(context.Background())
	})
	m.mu.Unlock()

	m.notify()
}

func (m *manager) Stations() []models.Station {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Return a copy to prevent external modification
	result := make([]models.Station, len(m.stations))
	copy(result, m.stations)
	return result
}

func (m *manager) Selected() (models.Station, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasSelection {
		return models.Station{}, false
	}
	for _, station := range m.stations {
		if station.ID == m.selectedID {
			return station, true
		}
	}
	return models.Station{}, false
}

func (m *manager) Select(id int64) bool {
	m.mu.Lock()
	found := false
	for _, station := range m.stations {
		if station.ID == id {
			found = true
			break
		}
	}
	if found {
		m.selectedID = id
		m.hasSelection = true
	}
	m.mu.Unlock()

	if found {
		m.notify()
	}
	return found
}

func (m *manager) Deselect() {
	m.mu.Lock()
	m.hasSelection = false
	m.selectedID = 0
	m.mu.Unlock()

	m.notify()
}

// SearchAddress geocodes the input and, on success, recenters the map
// and reloads stations without waiting for the debounce delay. A blank
// input is a no-op. On failure nothing moves.
func (m *manager) SearchAddress(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}

	result, ok := m.cachedGeocode(address)
	if !ok {
		var err error
		result, err = m.src.GeocodeAddress(ctx, address)
		if err != nil {
			log.Warn().Err(err).Str("address", address).Msg("address search failed")
			m.mu.Lock()
			m.notice = NoticeAddressNotFound
			m.mu.Unlock()
			m.notify()
			return err
		}
		if m.geocode != nil {
			m.geocode.Add(address, result)
		}
	}

	m.mu.Lock()
	m.viewport = models.Viewport{
		Latitude:  result.Lat,
		Longitude: result.Lon,
		Zoom:      m.zoom,
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.notify()

	m.reload(ctx)
	return nil
}

func (m *manager) cachedGeocode(address string) (models.GeocodeResult, bool) {
	if m.geocode == nil {
		return models.GeocodeResult{}, false
	}
	return m.geocode.Get(address)
}

func (m *manager) ApplyUpdate(station models.Station) {
	m.mu.Lock()
	for i := range m.stations {
		if m.stations[i].ID == station.ID {
			m.stations[i] = station
			break
		}
	}
	m.mu.Unlock()

	m.notify()
}

func (m *manager) ApplyDelete(id int64) {
	m.mu.Lock()
	kept := m.stations[:0]
	for _, station := range m.stations {
		if station.ID != id {
			kept = append(kept, station)
		}
	}
	m.stations = kept
	if m.hasSelection && m.selectedID == id {
		m.hasSelection = false
		m.selectedID = 0
	}
	m.mu.Unlock()

	m.notify()
}

func (m *manager) Notice() Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}

func (m *manager) ClearNotice() {
	m.mu.Lock()
	m.notice = NoticeNone
	m.mu.Unlock()

	m.notify()
}

func (m *manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

func (m *manager) Reset() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.seq++ // orphan any in-flight reload
	m.viewport = m.initial
	m.stations = nil
	m.hasSelection = false
	m.selectedID = 0
	m.notice = NoticeNone
	m.loading = false
	m.mu.Unlock()

	m.notify()
}

func (m *manager) Subscribe() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{}, 1)
	m.listeners = append(m.listeners, ch)
	return ch
}

func (m *manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.seq++
	m.mu.Unlock()
}

// reload fetches stations for the current viewport. Each fetch carries a
// sequence number; a response is applied only if no newer fetch has been
// issued since, so a slow stale response can never overwrite fresh data.
func (m *manager) reload(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.seq++
	seq := m.seq
	vp := m.viewport
	m.loading = true
	m.mu.Unlock()
	m.notify()

	stations, err := m.src.GetStations(ctx, vp.Latitude, vp.Longitude, m.radius)

	m.mu.Lock()
	if seq != m.seq {
		m.mu.Unlock()
		log.Debug().Uint64("seq", seq).Msg("discarding stale station reload")
		return
	}
	m.loading = false
	if err != nil {
		// Prior list stays visible: stale beats empty.
		m.notice = NoticeLoadFailed
		m.mu.Unlock()
		log.Error().Err(err).Float64("lat", vp.Latitude).Float64("lon", vp.Longitude).Msg("station reload failed")
		m.notify()
		return
	}
	m.stations = stations
	m.notice = NoticeNone
	m.mu.Unlock()

	log.Debug().Int("station_count", len(stations)).Float64("lat", vp.Latitude).Float64("lon", vp.Longitude).Msg("stations reloaded")
	m.notify()
}

func (m *manager) notify() {
	m.mu.Lock()
	listeners := make([]chan struct{}, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
