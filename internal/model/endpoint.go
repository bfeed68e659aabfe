package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoint is the immutable identity of one polled device.
type Endpoint struct {
	BaseURL string `json:"base_url"`
	Host    string `json:"host"`
}

func ParseEndpoint(raw string) (Endpoint, error) {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return Endpoint{}, fmt.Errorf("empty endpoint")
	}
	u, err := url.Parse(base)
	if err != nil {
		return Endpoint{}, fmt.Errorf("parse endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("endpoint %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint %q: missing host", raw)
	}
	return Endpoint{BaseURL: base, Host: u.Host}, nil
}

// URL joins a sub-resource path such as "meter/0" onto the base URL.
func (e Endpoint) URL(path string) string {
	return e.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func (e Endpoint) String() string {
	return e.BaseURL
}
