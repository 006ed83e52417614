package safety

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"safetalk.app/mediator/internal/model"
)

// Action is what the caller should surface next.
type Action string

const (
	ActionImmediateResources   Action = "immediate_resources"
	ActionCrisisResources      Action = "crisis_resources"
	ActionSupportResources     Action = "support_resources"
	ActionContinueConversation Action = "continue_conversation"
)

// GuidanceLevel keys the resource sets in the policy file.
type GuidanceLevel string

const (
	GuidanceImmediate GuidanceLevel = "immediate"
	GuidanceCrisis    GuidanceLevel = "crisis"
	GuidanceSupport   GuidanceLevel = "support"
)

// Classification is the result of screening one piece of text.
type Classification struct {
	Flagged           bool           `json:"flagged"`
	Severity          model.Severity `json:"severity,omitempty"`
	Category          model.Category `json:"category,omitempty"`
	TriggerPhrase     string         `json:"trigger_phrase,omitempty"`
	RecommendedAction Action         `json:"recommended_action"`
}

type Resource struct {
	Name        string `yaml:"name" json:"name"`
	Phone       string `yaml:"phone" json:"phone"`
	Website     string `yaml:"website,omitempty" json:"website,omitempty"`
	Description string `yaml:"description" json:"description"`
}

// Guidance is the resource payload returned instead of a conversation turn.
type Guidance struct {
	Level       GuidanceLevel `yaml:"-" json:"level"`
	Title       string        `yaml:"title" json:"title"`
	Description string        `yaml:"description" json:"description"`
	Resources   []Resource    `yaml:"resources" json:"resources"`
}

type policyFile struct {
	Keywords        []string                   `yaml:"keywords"`
	Patterns        []patternRule              `yaml:"patterns"`
	PatternSeverity model.Severity             `yaml:"pattern_severity"`
	Categories      []categoryRule             `yaml:"categories"`
	Default         defaultRule                `yaml:"default"`
	Guidance        map[GuidanceLevel]Guidance `yaml:"guidance"`
}

type patternRule struct {
	ID       string         `yaml:"id"`
	Regex    string         `yaml:"regex"`
	compiled *regexp.Regexp `yaml:"-"`
}

type categoryRule struct {
	Name     model.Category `yaml:"name"`
	Priority int            `yaml:"priority"`
	Severity model.Severity `yaml:"severity"`
	Terms    []string       `yaml:"terms"`
}

type defaultRule struct {
	Category model.Category `yaml:"category"`
	Severity model.Severity `yaml:"severity"`
}

func parsePolicy(data []byte) (*policyFile, error) {
	var p policyFile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	p.normalize()
	return &p, nil
}

func (p *policyFile) validate() error {
	if len(p.Keywords) == 0 && len(p.Patterns) == 0 {
		return fmt.Errorf("policy has no keywords or patterns")
	}
	if !validSeverity(p.PatternSeverity) {
		return fmt.Errorf("invalid pattern_severity %q", p.PatternSeverity)
	}
	for _, c := range p.Categories {
		if c.Name == "" || len(c.Terms) == 0 {
			return fmt.Errorf("category %q needs a name and terms", c.Name)
		}
		if !validSeverity(c.Severity) {
			return fmt.Errorf("category %q: invalid severity %q", c.Name, c.Severity)
		}
	}
	if p.Default.Category == "" || !validSeverity(p.Default.Severity) {
		return fmt.Errorf("policy default needs a category and a valid severity")
	}
	for _, level := range []GuidanceLevel{GuidanceImmediate, GuidanceCrisis, GuidanceSupport} {
		g, ok := p.Guidance[level]
		if !ok || len(g.Resources) == 0 {
			return fmt.Errorf("guidance %q missing or empty", level)
		}
	}
	return nil
}

func (p *policyFile) compile() error {
	for i := range p.Patterns {
		re, err := regexp.Compile("(?i)" + p.Patterns[i].Regex)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", p.Patterns[i].ID, err)
		}
		p.Patterns[i].compiled = re
	}
	return nil
}

// normalize lower-cases match terms, stamps guidance levels and orders
// categories from highest to lowest priority.
func (p *policyFile) normalize() {
	for i, k := range p.Keywords {
		p.Keywords[i] = strings.ToLower(k)
	}
	for i := range p.Categories {
		for j, t := range p.Categories[i].Terms {
			p.Categories[i].Terms[j] = strings.ToLower(t)
		}
	}
	for level, g := range p.Guidance {
		g.Level = level
		p.Guidance[level] = g
	}
	sort.SliceStable(p.Categories, func(i, j int) bool {
		return p.Categories[i].Priority > p.Categories[j].Priority
	})
}

func validSeverity(s model.Severity) bool {
	return s == model.SeverityLow || s == model.SeverityMedium || s == model.SeverityHigh
}
