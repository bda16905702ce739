package user_agent

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mileusna/useragent"
	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device labels.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceTV      = "TV"
	DeviceConsole = "Console"
	DeviceBot     = "Bot"
)

type UserAgent struct {
	UserAgent      string
	OS             string
	OSVersion      string
	Browser        string
	BrowserVersion string
	Device         string
	Mobile         bool
	Tablet         bool
	Desktop        bool
	Bot            bool
}

//go:embed database/rules.yml
var databaseFiles embed.FS

type ruleEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type deviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
}

type ruleSet struct {
	Bots     []ruleEntry   `yaml:"bots"`
	Browsers []ruleEntry   `yaml:"browsers"`
	OSs      []ruleEntry   `yaml:"oss"`
	Devices  []deviceEntry `yaml:"devices"`
}

// Compiled regex cache
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	// Rules are matched case-insensitively.
	regex, err := pcre.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *Parser
	once   sync.Once
)

// Parser evaluates the embedded rule set and falls back to a generic parser
// for anything the rules miss.
type Parser struct {
	rules      ruleSet
	regexCache *RegexCache
}

func getParser() *Parser {
	once.Do(func() {
		parser = &Parser{regexCache: newRegexCache()}
		data, err := databaseFiles.ReadFile("database/rules.yml")
		if err == nil {
			err = yaml.Unmarshal(data, &parser.rules)
		}
		if err != nil {
			slog.Default().Error("Failed to load user agent rules", slog.Any("error", err))
		}
	})
	return parser
}

func (p *Parser) match(entries []ruleEntry, userAgent string) (string, string) {
	for _, entry := range entries {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}
		return entry.Name, expand(entry.Version, matches)
	}
	return "", ""
}

func (p *Parser) device(userAgent string) string {
	for _, entry := range p.rules.Devices {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		if regex.MatchString(userAgent) {
			switch entry.Device {
			case "tablet":
				return DeviceTablet
			case "smartphone":
				return DeviceMobile
			case "tv":
				return DeviceTV
			case "console":
				return DeviceConsole
			}
		}
	}
	return ""
}

// expand replaces $1, $2, ... in template with the submatches.
func expand(template string, matches []string) string {
	if template == "" || len(matches) < 2 {
		return ""
	}
	out := template
	for i := len(matches) - 1; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), matches[i])
	}
	return strings.ReplaceAll(out, "_", ".")
}

// ParseUserAgent classifies a raw User-Agent header. Empty input yields an
// empty result.
func ParseUserAgent(userAgent string) UserAgent {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return UserAgent{}
	}
	p := getParser()

	if name, _ := p.match(p.rules.Bots, userAgent); name != "" {
		return UserAgent{
			UserAgent: userAgent,
			Browser:   name,
			Device:    DeviceBot,
			Bot:       true,
		}
	}

	result := UserAgent{UserAgent: userAgent}
	result.Browser, result.BrowserVersion = p.match(p.rules.Browsers, userAgent)
	result.OS, result.OSVersion = p.match(p.rules.OSs, userAgent)
	result.Device = p.device(userAgent)

	if result.Browser == "" || result.OS == "" || result.Device == "" {
		fallback := useragent.Parse(userAgent)
		if fallback.Bot {
			return UserAgent{
				UserAgent: userAgent,
				Browser:   fallback.Name,
				Device:    DeviceBot,
				Bot:       true,
			}
		}
		if result.Browser == "" {
			result.Browser, result.BrowserVersion = fallback.Name, fallback.Version
		}
		if result.OS == "" {
			result.OS, result.OSVersion = fallback.OS, fallback.OSVersion
		}
		if result.Device == "" {
			switch {
			case fallback.Tablet:
				result.Device = DeviceTablet
			case fallback.Mobile:
				result.Device = DeviceMobile
			}
		}
	}

	if result.Device == "" {
		result.Device = DeviceDesktop
	}
	result.Mobile = result.Device == DeviceMobile
	result.Tablet = result.Device == DeviceTablet
	result.Desktop = result.Device == DeviceDesktop
	return result
}
