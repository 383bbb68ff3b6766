package tado

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/tado-bridge/internal/model"
)

const (
	defaultAPIURL  = "https://my.tado.com/api/v2"
	defaultAuthURL = "https://login.tado.com/oauth2/token"
	clientID       = "tado-web-app"
	userAgent      = "tado-bridge/0.2.2"

	requestTimeout = 30 * time.Second
)

// API is the surface the coordinator depends on. Tests substitute fakes.
type API interface {
	Zones(ctx context.Context) ([]model.Zone, error)
	Devices(ctx context.Context) ([]model.Device, error)
	ZoneStates(ctx context.Context) (map[int]model.ZoneState, error)
	HomeState(ctx context.Context) (model.HomeState, error)

	SetZoneOverlay(ctx context.Context, zoneID int, power model.Power, temperature float64) error
	ResetZoneOverlay(ctx context.Context, zoneID int) error
	SetPresence(ctx context.Context, presence model.Presence) error
	SetChildLock(ctx context.Context, serial string, enabled bool) error
	SetTemperatureOffset(ctx context.Context, serial string, offset float64) error
	SetDazzle(ctx context.Context, zoneID int, enabled bool) error
	SetEarlyStart(ctx context.Context, zoneID int, enabled bool) error
	SetOpenWindowDetection(ctx context.Context, zoneID int, enabled bool, timeoutSeconds int) error
	SetAwayTemperature(ctx context.Context, zoneID int, temperature float64) error
	IdentifyDevice(ctx context.Context, serial string) error

	RateLimit() model.RateLimit
}

// Client talks to the Tado cloud API. Every response passes through a single
// request path that captures rate-limit headers, so the quota snapshot is
// always the one from the most recent call.
type Client struct {
	httpClient *http.Client
	apiURL     string
	authURL    string

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	tokenExpiry  time.Time
	homeID       int
	rateLimit    model.RateLimit

	// onTokenRotated is invoked whenever the auth server hands back a new
	// refresh token, so the settings store can persist it.
	onTokenRotated func(token string)
}

var _ API = &Client{}

type Option func(*Client)

func WithBaseURLs(apiURL, authURL string) Option {
	return func(c *Client) {
		c.apiURL = apiURL
		c.authURL = authURL
	}
}

func WithTokenRotationCallback(fn func(token string)) Option {
	return func(c *Client) { c.onTokenRotated = fn }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(refreshToken string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		apiURL:       defaultAPIURL,
		authURL:      defaultAuthURL,
		refreshToken: refreshToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init refreshes auth and resolves the home id. Must be called before any
// other operation.
func (c *Client) Init(ctx context.Context) error {
	if err := c.ensureAuth(ctx); err != nil {
		return err
	}

	var me struct {
		Homes []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"homes"`
	}
	if err := c.request(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return err
	}
	if len(me.Homes) == 0 {
		return &ValidationError{Field: "homes", Err: fmt.Errorf("no homes on account")}
	}

	c.mu.Lock()
	c.homeID = me.Homes[0].ID
	c.mu.Unlock()

	log.Info().Int("home_id", me.Homes[0].ID).Str("home", me.Homes[0].Name).Msg("Tado client initialized")
	return nil
}

func (c *Client) RateLimit() model.RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateLimit
}

func (c *Client) Zones(ctx context.Context) ([]model.Zone, error) {
	var zones []model.Zone
	if err := c.request(ctx, http.MethodGet, c.homePath("zones"), nil, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}

func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := c.request(ctx, http.MethodGet, c.homePath("devices"), nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// ZoneStates decodes each zone entry independently: a malformed zone payload
// is logged and dropped instead of failing the whole fetch.
func (c *Client) ZoneStates(ctx context.Context) (map[int]model.ZoneState, error) {
	var raw struct {
		ZoneStates map[string]json.RawMessage `json:"zoneStates"`
	}
	if err := c.request(ctx, http.MethodGet, c.homePath("zoneStates"), nil, &raw); err != nil {
		return nil, err
	}

	states := make(map[int]model.ZoneState, len(raw.ZoneStates))
	for id, msg := range raw.ZoneStates {
		zoneID, err := parseZoneID(id)
		if err != nil {
			log.Warn().Err(err).Str("zone_id", id).Msg("Skipping zone state with malformed id")
			continue
		}
		var zs model.ZoneState
		if err := json.Unmarshal(msg, &zs); err != nil {
			verr := &ValidationError{Field: "zoneStates." + id, Err: err}
			log.Warn().Err(verr).Msg("Skipping malformed zone state")
			continue
		}
		states[zoneID] = zs
	}
	return states, nil
}

func (c *Client) HomeState(ctx context.Context) (model.HomeState, error) {
	var hs model.HomeState
	if err := c.request(ctx, http.MethodGet, c.homePath("state"), nil, &hs); err != nil {
		return model.HomeState{}, err
	}
	return hs, nil
}

func (c *Client) SetZoneOverlay(ctx context.Context, zoneID int, power model.Power, temperature float64) error {
	zoneType := model.ZoneTypeHeating
	setting := map[string]any{
		"type":  zoneType,
		"power": power,
	}
	if power == model.PowerOn {
		setting["temperature"] = map[string]float64{"celsius": temperature}
	}
	body := map[string]any{
		"setting":     setting,
		"termination": map[string]string{"typeSkillBasedApp": "MANUAL"},
	}
	return c.request(ctx, http.MethodPut, c.zonePath(zoneID, "overlay"), body, nil)
}

func (c *Client) ResetZoneOverlay(ctx context.Context, zoneID int) error {
	return c.request(ctx, http.MethodDelete, c.zonePath(zoneID, "overlay"), nil, nil)
}

func (c *Client) SetPresence(ctx context.Context, presence model.Presence) error {
	body := map[string]string{"homePresence": string(presence)}
	return c.request(ctx, http.MethodPut, c.homePath("presenceLock"), body, nil)
}

func (c *Client) SetChildLock(ctx context.Context, serial string, enabled bool) error {
	body := map[string]bool{"childLockEnabled": enabled}
	return c.request(ctx, http.MethodPut, "/devices/"+url.PathEscape(serial)+"/childLock", body, nil)
}

func (c *Client) SetTemperatureOffset(ctx context.Context, serial string, offset float64) error {
	body := map[string]float64{"celsius": offset}
	return c.request(ctx, http.MethodPut, "/devices/"+url.PathEscape(serial)+"/temperatureOffset", body, nil)
}

func (c *Client) SetDazzle(ctx context.Context, zoneID int, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.request(ctx, http.MethodPut, c.zonePath(zoneID, "dazzle"), body, nil)
}

func (c *Client) SetEarlyStart(ctx context.Context, zoneID int, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.request(ctx, http.MethodPut, c.zonePath(zoneID, "earlyStart"), body, nil)
}

func (c *Client) SetOpenWindowDetection(ctx context.Context, zoneID int, enabled bool, timeoutSeconds int) error {
	body := map[string]any{"enabled": enabled}
	if enabled {
		body["timeoutInSeconds"] = timeoutSeconds
	}
	return c.request(ctx, http.MethodPut, c.zonePath(zoneID, "openWindowDetection"), body, nil)
}

func (c *Client) SetAwayTemperature(ctx context.Context, zoneID int, temperature float64) error {
	body := map[string]any{
		"type":       "HEATING",
		"autoAdjust": false,
		"setting": map[string]any{
			"type":        "HEATING",
			"power":       "ON",
			"temperature": map[string]float64{"celsius": temperature},
		},
	}
	return c.request(ctx, http.MethodPut, c.zonePath(zoneID, "awayConfiguration"), body, nil)
}

func (c *Client) IdentifyDevice(ctx context.Context, serial string) error {
	return c.request(ctx, http.MethodPost, "/devices/"+url.PathEscape(serial)+"/identify", nil, nil)
}

func (c *Client) homePath(suffix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("/homes/%d/%s", c.homeID, suffix)
}

func (c *Client) zonePath(zoneID int, suffix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("/homes/%d/zones/%d/%s", c.homeID, zoneID, suffix)
}

func (c *Client) request(ctx context.Context, method, path string, body any, out any) error {
	if err := c.ensureAuth(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CommunicationError{Err: err}
	}
	defer resp.Body.Close()

	if rl, ok := ParseRateLimitHeaders(resp.Header); ok {
		c.mu.Lock()
		c.rateLimit = rl
		c.mu.Unlock()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Err: fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Err: fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &CommunicationError{Err: fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &CommunicationError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ValidationError{Field: path, Err: err}
	}
	return nil
}

func (c *Client) ensureAuth(ctx context.Context) error {
	c.mu.Lock()
	valid := c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-30*time.Second))
	refresh := c.refreshToken
	c.mu.Unlock()

	if valid {
		return nil
	}

	form := url.Values{
		"client_id":     {clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &CommunicationError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Err: fmt.Errorf("token refresh rejected with status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &CommunicationError{Err: fmt.Errorf("token refresh failed with status %d", resp.StatusCode)}
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return &ValidationError{Field: "token", Err: err}
	}

	c.mu.Lock()
	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	rotated := tr.RefreshToken != "" && tr.RefreshToken != c.refreshToken
	if rotated {
		c.refreshToken = tr.RefreshToken
	}
	callback := c.onTokenRotated
	c.mu.Unlock()

	if rotated {
		log.Debug().Msg("Refresh token rotated by auth server")
		if callback != nil {
			callback(tr.RefreshToken)
		}
	}
	return nil
}

func parseZoneID(s string) (int, error) {
	var id int
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, fmt.Errorf("invalid zone id %q: %w", s, err)
	}
	return id, nil
}
