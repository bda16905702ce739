package referrers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com", "Google"},
		{"news.ycombinator.com", "Hacker News"},
		{"t.co", "X/Twitter"},
		{"www.reddit.com", "Reddit"},
		{"m.facebook.com", "Facebook"},
		{"old.reddit.com", "Reddit"},
		{"mail.google.com", "Gmail"},
		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},
		{"GOOGLE.COM", "Google"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			assert.Equal(t, tt.expected, FriendlyName(tt.hostname))
		})
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, DirectLabel, Label(""))
	assert.Equal(t, DirectLabel, Label("  "))
	assert.Equal(t, "Google", Label("https://www.google.com/search?q=trackly"))
	assert.Equal(t, "Blog.example.org", Label("blog.example.org/post/1"))
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "news.ycombinator.com", Hostname("https://News.YCombinator.com/item?id=1"))
	assert.Equal(t, "example.com", Hostname("example.com"))
	assert.Equal(t, "", Hostname(""))
}
