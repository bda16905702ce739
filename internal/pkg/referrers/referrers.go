// Package referrers turns referrer URLs into display names.
package referrers

import (
	"net/url"
	"strings"
)

// DirectLabel is shown for visits without a referrer.
const DirectLabel = "Direct / Unknown"

var sources = map[string][]string{
	// Search engines
	"Google":     {"google.com", "google.co.uk", "google.de", "google.fr", "google.es", "google.it", "google.ca", "google.com.au", "google.co.jp", "google.com.br"},
	"Bing":       {"bing.com"},
	"DuckDuckGo": {"duckduckgo.com"},
	"Yahoo":      {"yahoo.com", "search.yahoo.com"},
	"Baidu":      {"baidu.com"},
	"Yandex":     {"yandex.ru", "yandex.com"},
	"Ecosia":     {"ecosia.org"},
	"Kagi":       {"kagi.com"},

	// Social
	"X/Twitter": {"x.com", "twitter.com", "t.co"},
	"Facebook":  {"facebook.com", "fb.com"},
	"Instagram": {"instagram.com"},
	"LinkedIn":  {"linkedin.com", "lnkd.in"},
	"TikTok":    {"tiktok.com"},
	"Pinterest": {"pinterest.com"},
	"Reddit":    {"reddit.com"},
	"Threads":   {"threads.net"},
	"Bluesky":   {"bsky.app"},
	"Mastodon":  {"mastodon.social"},
	"YouTube":   {"youtube.com", "youtu.be"},
	"Discord":   {"discord.com", "discordapp.com"},
	"Telegram":  {"telegram.org", "t.me"},
	"Slack":     {"slack.com"},

	// Communities
	"Hacker News":    {"news.ycombinator.com", "hn.algolia.com"},
	"Lobsters":       {"lobste.rs"},
	"Product Hunt":   {"producthunt.com"},
	"DEV Community":  {"dev.to"},
	"Medium":         {"medium.com"},
	"Substack":       {"substack.com"},
	"GitHub":         {"github.com"},
	"GitLab":         {"gitlab.com"},
	"Stack Overflow": {"stackoverflow.com"},

	// Mail
	"Gmail":       {"mail.google.com"},
	"Outlook":     {"outlook.live.com", "outlook.office.com"},
	"Proton Mail": {"protonmail.com", "mail.proton.me"},
}

var byDomain = func() map[string]string {
	m := make(map[string]string)
	for name, domains := range sources {
		for _, d := range domains {
			m[d] = name
		}
	}
	return m
}()

// Hostname extracts the lower-cased host of a referrer, accepting bare hosts.
func Hostname(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// FriendlyName maps a hostname to a known source. Subdomains resolve to their
// closest known parent; unknown hosts lose "www." and get a capital letter.
func FriendlyName(hostname string) string {
	hostname = strings.TrimPrefix(strings.ToLower(hostname), "www.")
	if hostname == "" {
		return ""
	}

	for h := hostname; h != ""; {
		if name, ok := byDomain[h]; ok {
			return name
		}
		dot := strings.IndexByte(h, '.')
		if dot < 0 {
			break
		}
		h = h[dot+1:]
	}

	return strings.ToUpper(hostname[:1]) + hostname[1:]
}

// Label is the display name for a stored referrer value.
func Label(referrer string) string {
	host := Hostname(referrer)
	if host == "" {
		if strings.TrimSpace(referrer) == "" {
			return DirectLabel
		}
		return referrer
	}
	return FriendlyName(host)
}
