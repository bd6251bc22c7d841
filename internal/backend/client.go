package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/velibadmin/console/internal/models"
	"github.com/velibadmin/console/pkg/http/client"
)

// DefaultRadius is the station query radius, in degrees, used when the
// caller does not supply one.
const DefaultRadius = 0.01

// Client is the sole point of contact with the station backend. Bearer
// handling and the global 401 side effect live in the transport; this
// layer maps endpoints to typed calls and wire errors to sentinel errors.
type Client struct {
	http client.Interface
}

func New(httpClient client.Interface) *Client {
	return &Client{http: httpClient}
}

// Login exchanges credentials for a session token. Credential rejection
// surfaces as ErrBadCredentials without further detail.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (string, error) {
	resp, err := c.http.Do(ctx, http.MethodPost, "/login", creds)
	if err != nil {
		return "", fmt.Errorf("calling login: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrBadCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError(resp.StatusCode, "login failed", nil)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if body.AccessToken == "" {
		return "", NewAPIError(resp.StatusCode, "login response missing token", nil)
	}

	log.Debug().Msg("login accepted")
	return body.AccessToken, nil
}

// GetStations fetches the stations within radius degrees of a point.
func (c *Client) GetStations(ctx context.Context, lat, lon, radius float64) ([]models.Station, error) {
	if radius <= 0 {
		radius = DefaultRadius
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	query.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))

	return c.fetchStations(ctx, query)
}

// GetStationsByAddress fetches the stations near a street address. The
// address replaces the coordinate parameters entirely; the backend does
// its own geocoding in that case.
func (c *Client) GetStationsByAddress(ctx context.Context, address string) ([]models.Station, error) {
	query := url.Values{}
	query.Set("address", address)

	return c.fetchStations(ctx, query)
}

func (c *Client) fetchStations(ctx context.Context, query url.Values) ([]models.Station, error) {
	resp, err := c.http.Get(ctx, "/stations?"+query.Encode())
	if err != nil {
		return nil, fmt.Errorf("fetching stations: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewAPIError(resp.StatusCode, "fetching stations", nil)
	}

	var stations []models.Station
	if err := json.Unmarshal(resp.Body, &stations); err != nil {
		return nil, fmt.Errorf("decoding stations response: %w", err)
	}

	log.Debug().Int("station_count", len(stations)).Msg("stations fetched")
	return stations, nil
}

// GeocodeAddress resolves a street address to coordinates.
func (c *Client) GeocodeAddress(ctx context.Context, address string) (models.GeocodeResult, error) {
	query := url.Values{}
	query.Set("address", address)

	resp, err := c.http.Get(ctx, "/geocode?"+query.Encode())
	if err != nil {
		return models.GeocodeResult{}, fmt.Errorf("geocoding address: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return models.GeocodeResult{}, ErrUnauthorized
	case http.StatusNotFound:
		return models.GeocodeResult{}, ErrAddressNotFound
	default:
		return models.GeocodeResult{}, NewAPIError(resp.StatusCode, "geocoding address", nil)
	}

	var result models.GeocodeResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return models.GeocodeResult{}, fmt.Errorf("decoding geocode response: %w", err)
	}
	return result, nil
}

// CreateStation registers a new station. No console flow drives this
// today; it exists for API completeness.
func (c *Client) CreateStation(ctx context.Context, station models.Station) (models.Station, error) {
	resp, err := c.http.Do(ctx, http.MethodPost, "/stations", station)
	if err != nil {
		return models.Station{}, fmt.Errorf("creating station: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return models.Station{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return models.Station{}, NewAPIError(resp.StatusCode, "creating station", nil)
	}

	var created models.Station
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return models.Station{}, fmt.Errorf("decoding create response: %w", err)
	}
	return created, nil
}

// UpdateStation applies a partial edit and returns the authoritative
// record the backend answered with.
func (c *Client) UpdateStation(ctx context.Context, id int64, patch models.StationPatch) (models.Station, error) {
	resp, err := c.http.Do(ctx, http.MethodPut, "/stations/"+strconv.FormatInt(id, 10), patch)
	if err != nil {
		return models.Station{}, fmt.Errorf("updating station %d: %w", id, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return models.Station{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return models.Station{}, NewAPIError(resp.StatusCode, "updating station", nil)
	}

	var updated models.Station
	if err := json.Unmarshal(resp.Body, &updated); err != nil {
		return models.Station{}, fmt.Errorf("decoding update response: %w", err)
	}

	log.Debug().Int64("station_id", id).Msg("station updated")
	return updated, nil
}

// DeleteStation removes a station permanently.
func (c *Client) DeleteStation(ctx context.Context, id int64) error {
	resp, err := c.http.Do(ctx, http.MethodDelete, "/stations/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return fmt.Errorf("deleting station %d: %w", id, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return NewAPIError(resp.StatusCode, "deleting station", nil)
	}

	log.Debug().Int64("station_id", id).Msg("station deleted")
	return nil
}
