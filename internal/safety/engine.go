package safety

import (
	_ "embed"
	"fmt"
	"strings"

	"safetalk.app/mediator/internal/model"
)

//go:embed policy.yaml
var defaultPolicy []byte

// Engine screens text against the compiled policy. It holds no mutable state
// after construction and is safe for concurrent use.
type Engine struct {
	policy *policyFile
}

// NewEngine compiles the policy embedded in the binary.
func NewEngine() (*Engine, error) {
	return NewEngineFromYAML(defaultPolicy)
}

// NewEngineFromYAML compiles a policy document with the same layout as the embedded one.
func NewEngineFromYAML(data []byte) (*Engine, error) {
	p, err := parsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("loading safety policy: %w", err)
	}
	return &Engine{policy: p}, nil
}

// Classify screens text. It is deterministic: the same input always yields
// the same result, with no I/O.
func (e *Engine) Classify(text string) Classification {
	lower := strings.ToLower(text)

	keyword := ""
	for _, k := range e.policy.Keywords {
		if strings.Contains(lower, k) {
			keyword = k
			break
		}
	}

	patternMatch := ""
	for _, p := range e.policy.Patterns {
		if m := p.compiled.FindString(text); m != "" {
			patternMatch = m
			break
		}
	}

	var c Classification
	switch {
	case keyword != "":
		c = e.categorize(keyword)
	case patternMatch != "":
		c = e.categorize(patternMatch)
	default:
		return Classification{RecommendedAction: ActionContinueConversation}
	}

	if patternMatch != "" {
		c.Severity = e.policy.PatternSeverity
	}
	c.RecommendedAction = ActionFor(c.Severity, c.Category)
	return c
}

func (e *Engine) categorize(trigger string) Classification {
	lower := strings.ToLower(trigger)
	for _, cat := range e.policy.Categories {
		for _, term := range cat.Terms {
			if strings.Contains(lower, term) {
				return Classification{
					Flagged:       true,
					Severity:      cat.Severity,
					Category:      cat.Name,
					TriggerPhrase: trigger,
				}
			}
		}
	}
	return Classification{
		Flagged:       true,
		Severity:      e.policy.Default.Severity,
		Category:      e.policy.Default.Category,
		TriggerPhrase: trigger,
	}
}

// Guidance returns the resource set for a flagged result.
func (e *Engine) Guidance(severity model.Severity, category model.Category) Guidance {
	return e.policy.Guidance[LevelFor(severity, category)]
}

// LevelFor maps a flag onto a resource set. Self-harm gets crisis lines ahead
// of the general emergency set even though it is also high severity.
func LevelFor(severity model.Severity, category model.Category) GuidanceLevel {
	switch {
	case category == model.CategoryDistress:
		return GuidanceCrisis
	case severity == model.SeverityHigh,
		category == model.CategoryPhysical,
		category == model.CategoryThreats:
		return GuidanceImmediate
	default:
		return GuidanceSupport
	}
}

func ActionFor(severity model.Severity, category model.Category) Action {
	switch LevelFor(severity, category) {
	case GuidanceCrisis:
		return ActionCrisisResources
	case GuidanceImmediate:
		return ActionImmediateResources
	default:
		return ActionSupportResources
	}
}
