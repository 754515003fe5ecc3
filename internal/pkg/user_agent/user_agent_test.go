package user_agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkpage/internal/pkg/user_agent"
)

func TestParseUserAgent(t *testing.T) {
	testCases := []struct {
		name      string
		userAgent string
		device    string
		bot       bool
	}{
		{
			name:      "Chrome on Windows",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			device:    user_agent.Desktop,
		},
		{
			name:      "Safari on macOS",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1 Safari/605.1.15",
			device:    user_agent.Desktop,
		},
		{
			name:      "Safari on iPhone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			device:    user_agent.Mobile,
		},
		{
			name:      "Chrome on Android phone",
			userAgent: "Mozilla/5.0 (Linux; Android 11; SM-G998B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.120 Mobile Safari/537.36",
			device:    user_agent.Mobile,
		},
		{
			name:      "Safari on iPad",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			device:    user_agent.Tablet,
		},
		{
			name:      "Chrome on Android tablet",
			userAgent: "Mozilla/5.0 (Linux; Android 12; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36",
			device:    user_agent.Tablet,
		},
		{
			name:      "Googlebot",
			userAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			bot:       true,
		},
		{
			name:      "curl",
			userAgent: "curl/8.4.0",
			bot:       true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := user_agent.ParseUserAgent(tc.userAgent)
			assert.Equal(t, tc.device, result.Device)
			assert.Equal(t, tc.bot, result.Bot)
		})
	}
}

func TestDeviceType(t *testing.T) {
	assert.Nil(t, user_agent.DeviceType(""))
	assert.Nil(t, user_agent.DeviceType("Googlebot/2.1"))
	assert.Nil(t, user_agent.DeviceType("SomethingElse/1.0"))

	device := user_agent.DeviceType("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148")
	require.NotNil(t, device)
	assert.Equal(t, user_agent.Mobile, *device)
}
