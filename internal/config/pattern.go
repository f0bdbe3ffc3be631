// File: internal/config/pattern.go
// Brief: Typed stack-name patterns with a fixed substitution vocabulary.

package config

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var patternTokenRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// NamePattern is a stack-name template over the fixed variables {project} and
// {env}. Unknown tokens are rejected at parse time so a typo fails the config
// load instead of silently surviving substitution.
type NamePattern struct {
	raw string
}

// ParseNamePattern validates pattern tokens against the known vocabulary.
func ParseNamePattern(raw string) (NamePattern, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NamePattern{}, fmt.Errorf("stack name pattern is empty")
	}
	for _, m := range patternTokenRe.FindAllStringSubmatch(raw, -1) {
		switch m[1] {
		case "project", "env":
		default:
			return NamePattern{}, fmt.Errorf("stack name pattern %q: unknown token {%s} (known: {project}, {env})", raw, m[1])
		}
	}
	if i := strings.IndexAny(strings.NewReplacer("{project}", "", "{env}", "").Replace(raw), "{}"); i >= 0 {
		return NamePattern{}, fmt.Errorf("stack name pattern %q: malformed token braces", raw)
	}
	return NamePattern{raw: raw}, nil
}

// Resolve substitutes the pattern variables. Patterns only contain tokens
// validated by ParseNamePattern, so this never leaves a token behind.
func (p NamePattern) Resolve(project, env string) string {
	r := strings.NewReplacer("{project}", project, "{env}", env)
	return r.Replace(p.raw)
}

func (p NamePattern) String() string { return p.raw }

// IsZero reports whether the pattern was never set.
func (p NamePattern) IsZero() bool { return p.raw == "" }

func (p *NamePattern) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseNamePattern(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p NamePattern) MarshalYAML() (any, error) { return p.raw, nil }
