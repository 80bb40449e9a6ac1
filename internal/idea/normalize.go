package idea

import (
	"strings"
	"unicode"

	"github.com/howell-aikit/ideaflow/internal/llm"
	"github.com/howell-aikit/ideaflow/internal/state"
)

// canonical maps folded key spellings onto summary fields
var canonical = map[string]string{
	"projectpurpose": "purpose",
	"purpose":        "purpose",
	"platform":       "platform",
	"targetplatform": "platform",
	"techstack":      "tech_stack",
	"technologies":   "tech_stack",
	"technology":     "tech_stack",
	"keyfeatures":    "key_features",
	"features":       "key_features",
}

// Normalize maps whatever keys the summary service returned onto the four
// canonical fields. Matching ignores case, spaces, underscores and dashes.
// Unknown keys are dropped and missing fields stay empty.
func Normalize(raw map[string]llm.FlexString) state.ProjectSummary {
	var out state.ProjectSummary
	for key, value := range raw {
		field, ok := canonical[foldKey(key)]
		if !ok {
			continue
		}
		v := value.String()
		switch field {
		case "purpose":
			out.Purpose = pick(out.Purpose, v)
		case "platform":
			out.Platform = pick(out.Platform, v)
		case "tech_stack":
			out.TechStack = pick(out.TechStack, v)
		case "key_features":
			out.KeyFeatures = pick(out.KeyFeatures, v)
		}
	}
	return out
}

// pick keeps the result independent of map iteration order when two
// spellings of the same key are present: the longer value wins, ties go
// to the lexically smaller one.
func pick(current, candidate string) string {
	switch {
	case current == "":
		return candidate
	case len(candidate) > len(current):
		return candidate
	case len(candidate) == len(current) && candidate < current:
		return candidate
	default:
		return current
	}
}

func foldKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
