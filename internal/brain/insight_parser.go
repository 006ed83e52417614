package brain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var errMissingSections = errors.New("model output is missing labeled sections")

// A label must open its own line. Markdown list markers, headings and bold
// markers around the label are tolerated.
var sectionLabel = regexp.MustCompile(`(?im)^[ \t]*(?:[-*#>]+[ \t]*)*\**[ \t]*(emotional insight|context|suggested approach)[ \t]*\**[ \t]*:[ \t]*\**`)

type insightSections struct {
	Emotional string
	Context   string
	Approach  string
}

// parseInsight splits model output into its three labeled sections. Missing,
// repeated or empty sections are an error; nothing is inferred.
func parseInsight(text string) (insightSections, error) {
	matches := sectionLabel.FindAllStringSubmatchIndex(text, -1)

	found := make(map[string]string, 3)
	for i, m := range matches {
		label := strings.ToLower(text[m[2]:m[3]])
		if _, dup := found[label]; dup {
			return insightSections{}, fmt.Errorf("%w: %q appears twice", errMissingSections, label)
		}

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		found[label] = cleanSection(text[m[1]:end])
	}

	out := insightSections{
		Emotional: found[strings.ToLower(labelEmotional)],
		Context:   found[strings.ToLower(labelContext)],
		Approach:  found[strings.ToLower(labelApproach)],
	}

	var missing []string
	if out.Emotional == "" {
		missing = append(missing, labelEmotional)
	}
	if out.Context == "" {
		missing = append(missing, labelContext)
	}
	if out.Approach == "" {
		missing = append(missing, labelApproach)
	}
	if len(missing) > 0 {
		return insightSections{}, fmt.Errorf("%w: %s", errMissingSections, strings.Join(missing, ", "))
	}
	return out, nil
}

func cleanSection(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "*"))
}
