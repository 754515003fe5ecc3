package user_agent

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device types reported by Classify.
const (
	Mobile  = "mobile"
	Desktop = "desktop"
	Tablet  = "tablet"
)

// UserAgent is the classification of a User-Agent header.
type UserAgent struct {
	UserAgent string
	Device    string
	Name      string
	Bot       bool
}

//go:embed rules/devices.yml
var rulesFile []byte

// BotEntry matches crawlers and HTTP libraries.
type BotEntry struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

// DeviceEntry maps a pattern to one of the device types.
type DeviceEntry struct {
	Regex string `yaml:"regex"`
	Type  string `yaml:"type"`
	Name  string `yaml:"name"`
}

type ruleSet struct {
	Bots    []BotEntry    `yaml:"bots"`
	Devices []DeviceEntry `yaml:"devices"`
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

	regex, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

var (
	parser *DeviceParser
	once   sync.Once
)

type DeviceParser struct {
	rules      ruleSet
	regexCache *RegexCache
}

func getParser() *DeviceParser {
	once.Do(func() {
		parser = &DeviceParser{regexCache: newRegexCache()}
		if err := yaml.Unmarshal(rulesFile, &parser.rules); err != nil {
			fmt.Printf("Error parsing devices.yml: %v\n", err)
		}
	})
	return parser
}

func (p *DeviceParser) parseBot(userAgent string) *BotEntry {
	for i := range p.rules.Bots {
		bot := &p.rules.Bots[i]
		if regex, err := p.regexCache.get(bot.Regex); err == nil && regex.MatchString(userAgent) {
			return bot
		}
	}
	return nil
}

func (p *DeviceParser) parseDevice(userAgent string) *DeviceEntry {
	for i := range p.rules.Devices {
		entry := &p.rules.Devices[i]
		if regex, err := p.regexCache.get(entry.Regex); err == nil && regex.MatchString(userAgent) {
			return entry
		}
	}
	return nil
}

// ParseUserAgent classifies a User-Agent header. Device is empty for bots
// and for agents no rule recognises.
func ParseUserAgent(userAgent string) UserAgent {
	result := UserAgent{UserAgent: userAgent}
	if strings.TrimSpace(userAgent) == "" {
		return result
	}

	p := getParser()
	if bot := p.parseBot(userAgent); bot != nil {
		result.Bot = true
		result.Name = bot.Name
		return result
	}

	if entry := p.parseDevice(userAgent); entry != nil {
		result.Device = entry.Type
		result.Name = entry.Name
	}
	return result
}

// DeviceType returns mobile, desktop or tablet, or nil when unknown.
func DeviceType(userAgent string) *string {
	ua := ParseUserAgent(userAgent)
	if ua.Device == "" {
		return nil
	}
	device := ua.Device
	return &device
}
