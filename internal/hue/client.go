package hue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to a Hue bridge over the v1 REST API. The bridge is treated
// as a best-effort, rate-sensitive remote service: callers decide how often
// to talk to it, the client only bounds individual requests.
type Client struct {
	address    string
	username   string
	httpClient *http.Client
}

// NewClient creates a new Hue client.
func NewClient(address, username string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		address:  address,
		username: username,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Connect verifies the bridge is reachable, logs the lights and groups it
// knows about, and switches every light on. The controller assumes lights
// are powered; knob and pad commands only adjust color and brightness.
func (c *Client) Connect(ctx context.Context) error {
	lights, err := c.Lights(ctx)
	if err != nil {
		return fmt.Errorf("connect to Hue bridge at %s: %w", c.address, err)
	}

	on := true
	for _, id := range sortedIDs(lights) {
		log.Info().Str("light", id).Str("name", lights[id].Name).Msg("Found light")
		if err := c.SetLight(ctx, id, LightUpdate{On: &on}); err != nil {
			log.Warn().Err(err).Str("light", id).Msg("Failed to switch light on")
		}
	}

	groups, err := c.Groups(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list groups")
	} else {
		for id, group := range groups {
			log.Info().Str("group", id).Str("name", group.Name).Msg("Found group")
		}
	}

	log.Info().Str("address", c.address).Int("lights", len(lights)).Msg("Connected to Hue bridge")
	return nil
}

// Close closes the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("http://%s/api/%s/%s", c.address, c.username, path)
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// Lights returns all lights known to the bridge, keyed by light ID.
func (c *Client) Lights(ctx context.Context) (map[string]LightInfo, error) {
	resp, err := c.request(ctx, "GET", "lights", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var lights map[string]LightInfo
	if err := json.NewDecoder(resp.Body).Decode(&lights); err != nil {
		return nil, err
	}

	return lights, nil
}

// Light returns the live state of one light.
func (c *Client) Light(ctx context.Context, lightID string) (*LightInfo, error) {
	resp, err := c.request(ctx, "GET", fmt.Sprintf("lights/%s", lightID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info LightInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		return nil, fmt.Errorf("light %q not found", lightID)
	}

	return &info, nil
}

// SetLight sends a partial state update to one light.
func (c *Client) SetLight(ctx context.Context, lightID string, upd LightUpdate) error {
	bodyBytes, err := json.Marshal(upd.payload())
	if err != nil {
		return err
	}

	resp, err := c.request(ctx, "PUT", fmt.Sprintf("lights/%s/state", lightID), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to set light state: %s", string(body))
	}

	return nil
}

// Groups returns all groups known to the bridge, keyed by group ID.
func (c *Client) Groups(ctx context.Context) (map[string]Group, error) {
	resp, err := c.request(ctx, "GET", "groups", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var groups map[string]Group
	if err := json.NewDecoder(resp.Body).Decode(&groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// Address returns the bridge address.
func (c *Client) Address() string {
	return c.address
}

// sortedIDs orders light IDs numerically where possible so startup logs are
// stable.
func sortedIDs(lights map[string]LightInfo) []string {
	ids := make([]string, 0, len(lights))
	for id := range lights {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}
