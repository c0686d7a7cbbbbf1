package metrics

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBots are automation accounts excluded from every author statistic
var DefaultBots = []string{
	"dependabot",
	"dependabot[bot]",
	"github-actions[bot]",
	"renovate[bot]",
}

// botFile is the on-disk allow-list format
type botFile struct {
	Bots []string `yaml:"bots"`
}

// BotList is a static set of automation logins, matched case-insensitively
type BotList struct {
	logins map[string]struct{}
}

// NewBotList creates a bot list from the given logins
func NewBotList(logins ...string) *BotList {
	b := &BotList{logins: make(map[string]struct{}, len(logins))}
	for _, l := range logins {
		if l = strings.TrimSpace(l); l != "" {
			b.logins[strings.ToLower(l)] = struct{}{}
		}
	}
	return b
}

// LoadBotList returns the default bots merged with those listed in path.
// An empty path yields only the defaults.
func LoadBotList(path string) (*BotList, error) {
	logins := append([]string(nil), DefaultBots...)
	if path == "" {
		return NewBotList(logins...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bot list: %w", err)
	}

	var f botFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse bot list %s: %w", path, err)
	}
	return NewBotList(append(logins, f.Bots...)...), nil
}

// Contains reports whether login is a known bot
func (b *BotList) Contains(login string) bool {
	if b == nil {
		return false
	}
	_, ok := b.logins[strings.ToLower(login)]
	return ok
}

// Len returns the number of bots in the list
func (b *BotList) Len() int {
	if b == nil {
		return 0
	}
	return len(b.logins)
}
