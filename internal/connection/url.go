package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// OverviewChannel is the channel identifier for the market overview feed.
const OverviewChannel = "overview"

// DefaultHost is used when the base URL carries no host.
const DefaultHost = "localhost:8000"

// LiveURL builds the live channel URL for channel.
//
// The scheme is wss when pageScheme is https and ws otherwise; an empty
// pageScheme falls back to the base URL's scheme. The host comes from
// baseURL, or DefaultHost if baseURL has none.
func LiveURL(baseURL, pageScheme, channel string) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", fmt.Errorf("channel is required")
	}

	host := DefaultHost
	var baseScheme string
	if baseURL != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return "", fmt.Errorf("parse base url: %w", err)
		}
		if u.Host != "" {
			host = u.Host
		}
		baseScheme = u.Scheme
	}

	if pageScheme == "" {
		pageScheme = baseScheme
	}

	scheme := "ws"
	if strings.EqualFold(strings.TrimSuffix(pageScheme, ":"), "https") {
		scheme = "wss"
	}

	u := url.URL{
		Scheme: scheme,
		Host:   host,
		Path:   "/ws/live/" + channel,
	}
	return u.String(), nil
}
