package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		wantBase string
		wantHost string
	}{
		{"http://10.0.0.5", "http://10.0.0.5", "10.0.0.5"},
		{"http://10.0.0.5/", "http://10.0.0.5", "10.0.0.5"},
		{"  http://plug-kitchen:8080//  ", "http://plug-kitchen:8080", "plug-kitchen:8080"},
		{"https://plug.example.com", "https://plug.example.com", "plug.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			ep, err := ParseEndpoint(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, ep.BaseURL)
			assert.Equal(t, tt.wantHost, ep.Host)
		})
	}
}

func TestParseEndpointRejects(t *testing.T) {
	for _, raw := range []string{"", "   ", "10.0.0.5", "ftp://10.0.0.5", "http://"} {
		_, err := ParseEndpoint(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestEndpointURL(t *testing.T) {
	ep, err := ParseEndpoint("http://10.0.0.5/")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5/meter/0", ep.URL("meter/0"))
	assert.Equal(t, "http://10.0.0.5/status", ep.URL("/status"))
}
