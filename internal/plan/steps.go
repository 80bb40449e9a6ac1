package plan

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// maxPhases bounds how many documents unstructured step text is split into
const maxPhases = 5

const stepsHeading = "## Implementation Steps"

var (
	stepHeader   = regexp.MustCompile(`(?m)^## Step \d+: `)
	numberedItem = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`)
	paragraphGap = regexp.MustCompile(`\n\n+`)
)

// StepDoc is one per-step document derived from the implementation document
type StepDoc struct {
	Number  int
	Title   string
	Content string
}

// FileName returns the step's file name, e.g. step_01_project_setup.txt
func (s StepDoc) FileName() string {
	return fmt.Sprintf("step_%02d_%s.txt", s.Number, SafeTitle(s.Title))
}

// SplitSteps derives step documents from a rendered plan. "## Step N: "
// sections are used when present; otherwise numbered items under the
// implementation steps heading; otherwise that section's paragraphs are
// grouped into at most five phases.
func SplitSteps(doc string) []StepDoc {
	if steps := splitSections(doc); len(steps) > 0 {
		return steps
	}

	parts := strings.Split(doc, stepsHeading)
	if len(parts) < 2 {
		return nil
	}
	body := parts[1]

	if steps := splitNumbered(body); len(steps) > 0 {
		return steps
	}
	return splitPhases(body)
}

func splitSections(doc string) []StepDoc {
	locs := stepHeader.FindAllStringIndex(doc, -1)
	if len(locs) == 0 {
		return nil
	}

	steps := make([]StepDoc, 0, len(locs))
	for i, loc := range locs {
		end := len(doc)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := strings.TrimSpace(doc[loc[0]:end])
		n := i + 1

		title := firstLine(doc[loc[1]:end])
		if title == "" {
			title = fmt.Sprintf("Step %d", n)
		}
		steps = append(steps, StepDoc{Number: n, Title: title, Content: section})
	}
	return steps
}

func splitNumbered(body string) []StepDoc {
	locs := numberedItem.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		return nil
	}

	steps := make([]StepDoc, 0, len(locs))
	for i, loc := range locs {
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		item := strings.TrimSpace(body[loc[0]:end])
		n := i + 1

		title := firstLine(body[loc[1]:end])
		if title == "" {
			title = fmt.Sprintf("Step %d", n)
		}
		steps = append(steps, StepDoc{
			Number:  n,
			Title:   title,
			Content: fmt.Sprintf("# Step %d: %s\n\n%s", n, title, item),
		})
	}
	return steps
}

// splitPhases groups paragraphs evenly; the last phase takes any remainder
func splitPhases(body string) []StepDoc {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}

	paragraphs := paragraphGap.Split(body, -1)
	count := min(maxPhases, len(paragraphs))
	chunk := max(1, len(paragraphs)/count)

	steps := make([]StepDoc, 0, count)
	for i := 0; i < count; i++ {
		start := i * chunk
		end := min(start+chunk, len(paragraphs))
		if i == count-1 {
			end = len(paragraphs)
		}

		title := fmt.Sprintf("Implementation Phase %d", i+1)
		steps = append(steps, StepDoc{
			Number:  i + 1,
			Title:   title,
			Content: "# " + title + "\n\n" + strings.Join(paragraphs[start:end], "\n\n"),
		})
	}
	return steps
}

// SafeTitle lowercases a title and keeps only letters, digits, "_" and "-",
// mapping everything else to "_".
func SafeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(title))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
