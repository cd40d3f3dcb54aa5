package clientip

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClientIP(t *testing.T) {
	t.Cleanup(func() { _ = SetTrustedProxies(nil) })
	require.NoError(t, SetTrustedProxies([]string{"10.0.0.0/8", "192.0.2.7"}))

	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{name: "direct peer", remote: "203.0.113.5:4000", want: "203.0.113.5"},
		{name: "untrusted peer cannot spoof", remote: "203.0.113.5:4000", xff: "1.1.1.1", want: "203.0.113.5"},
		{name: "trusted proxy", remote: "10.1.2.3:4000", xff: "198.51.100.9", want: "198.51.100.9"},
		{name: "chain of proxies", remote: "10.1.2.3:4000", xff: "6.6.6.6, 198.51.100.9, 192.0.2.7", want: "198.51.100.9"},
		{name: "trusted proxy without header", remote: "10.1.2.3:4000", want: "10.1.2.3"},
		{name: "no port", remote: "203.0.113.5", want: "203.0.113.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, RealClientIP(r))
		})
	}
}

func TestSetTrustedProxiesRejectsGarbage(t *testing.T) {
	t.Cleanup(func() { _ = SetTrustedProxies(nil) })
	assert.Error(t, SetTrustedProxies([]string{"not-an-ip"}))
	assert.Error(t, SetTrustedProxies([]string{"10.0.0.0/99"}))
}
