package middleware

import (
	"io"
	"net"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIPVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain ipv4", raw: "79.144.65.173", want: "79.144.65.173"},
		{name: "ipv4 with spaces", raw: " 79.144.65.173 ", want: "79.144.65.173"},
		{name: "quoted ipv4", raw: "\"79.144.65.173\"", want: "79.144.65.173"},
		{name: "ipv4 with port", raw: "79.144.65.173:443", want: "79.144.65.173"},
		{name: "ipv6 literal", raw: "2001:db8::1", want: "2001:db8::1"},
		{name: "ipv6 in brackets", raw: "[2001:db8::1]", want: "2001:db8::1"},
		{name: "ipv6 with port", raw: "[2001:db8::1]:8443", want: "2001:db8::1"},
		{name: "ipv6 with zone", raw: "fe80::1%eth0", want: "fe80::1"},
		{name: "ipv4 mapped ipv6", raw: "::ffff:203.0.113.9", want: "203.0.113.9"},
		{name: "invalid value", raw: "not-an-ip", want: ""},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, parsed := normalizeIP(tc.raw)
			assert.Equal(t, tc.want, got)

			if tc.want == "" {
				assert.Nil(t, parsed)
				return
			}
			require.NotNil(t, parsed)
			assert.Equal(t, tc.want, parsed.String())
		})
	}
}

func TestSelectPreferredIP(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"prefers public ipv4 over ipv6", []string{"2001:db8::1", "203.0.113.20"}, "203.0.113.20"},
		{"skips private addresses", []string{"192.168.1.10", "10.0.0.5", "::1", "198.51.100.7"}, "198.51.100.7"},
		{"returns ipv6 fallback when no ipv4", []string{"2001:db8::2"}, "2001:db8::2"},
		{"returns empty when no valid candidates", []string{"", "   ", "not-an-ip"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, selectPreferredIP(tc.values))
		})
	}
}

func TestIsPrivateIPWithMappedIPv4(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("::ffff:192.168.1.5")))
	assert.False(t, isPrivateIP(net.ParseIP("::ffff:8.8.8.8")))
	assert.True(t, isPrivateIP(net.ParseIP("fe80::1")))
	assert.False(t, isPrivateIP(nil))
}

func TestParseForwardedHeader(t *testing.T) {
	got := parseForwardedHeader(`for=192.0.2.60;proto=http;by=203.0.113.43, For="[2001:db8:cafe::17]:4711"`)
	assert.Equal(t, []string{"192.0.2.60", `"[2001:db8:cafe::17]:4711"`}, got)
	assert.Equal(t, "192.0.2.60", selectPreferredIP(got))
}

func TestClientIPHeaderOrder(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(ClientIP(c))
	})

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded for wins", map[string]string{"X-Forwarded-For": "10.0.0.1, 203.0.113.5", "X-Real-IP": "198.51.100.1"}, "203.0.113.5"},
		{"real ip when forwarded is private", map[string]string{"X-Forwarded-For": "10.0.0.1", "X-Real-IP": "198.51.100.1"}, "198.51.100.1"},
		{"rfc 7239", map[string]string{"Forwarded": "for=198.51.100.9"}, "198.51.100.9"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(body))
		})
	}
}
