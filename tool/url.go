package tool

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildSocketURL appends the session token to the real-time endpoint.
func BuildSocketURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse server URL: %v", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme: %q", u.Scheme)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// HostOf returns the bare host name of a URL, for reachability probes.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}
	host := u.Hostname()
	if strings.TrimSpace(host) == "" {
		return "", fmt.Errorf("URL has no host: %s", rawURL)
	}
	return host, nil
}
