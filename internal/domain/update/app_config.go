package update

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// UpdatesKeyHeader is the request header holding the project's update key.
const UpdatesKeyHeader = "x-expo-updates-key"

// ErrInvalidUpdatesURL is returned when updates.url has no scheme or host.
var ErrInvalidUpdatesURL = errors.New("updates.url must be an absolute URL")

// AppConfig is the part of the public Expo config the update server relies on.
type AppConfig struct {
	// Version is the app version, used as the runtime version.
	Version string
	// UpdatesURL is the manifest URL the app polls for updates.
	UpdatesURL string
	// UpdatesKey identifies the project on the update server.
	UpdatesKey string
	// Raw is the complete public config as printed by the Expo CLI.
	Raw json.RawMessage
}

// rawAppConfig mirrors the JSON layout of the fields AppConfig extracts.
type rawAppConfig struct {
	Version string `json:"version"`
	Updates *struct {
		URL            string         `json:"url"`
		RequestHeaders map[string]any `json:"requestHeaders"`
	} `json:"updates"`
}

// ParseAppConfig extracts AppConfig from the public config JSON.
// Missing fields are left empty; see the project package for validation.
func ParseAppConfig(data []byte) (*AppConfig, error) {
	var raw rawAppConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode app config: %w", err)
	}

	cfg := &AppConfig{
		Version: raw.Version,
		Raw:     json.RawMessage(data),
	}

	if raw.Updates != nil {
		cfg.UpdatesURL = raw.Updates.URL

		if key, ok := raw.Updates.RequestHeaders[UpdatesKeyHeader].(string); ok {
			cfg.UpdatesKey = key
		}
	}

	return cfg, nil
}

// Host returns the scheme and authority of UpdatesURL, e.g. "https://example.com".
func (c *AppConfig) Host() (string, error) {
	return HostOf(c.UpdatesURL)
}

// HostOf returns "<scheme>://<host>" for rawURL, dropping path, query and fragment.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUpdatesURL, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%q: %w", rawURL, ErrInvalidUpdatesURL)
	}

	return u.Scheme + "://" + u.Host, nil
}
