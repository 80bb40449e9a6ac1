package inspect

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	starsPattern     = regexp.MustCompile(`(\d+)\s+stars?`)
	forksPattern     = regexp.MustCompile(`(\d+)\s+forks?`)
	languagesSection = regexp.MustCompile(`(?s)Languages\s*\n(.*?)\n\n`)
	languagePair     = regexp.MustCompile(`([A-Za-z+#]+)\s+(\d+\.?\d*)%`)
	readmeSection    = regexp.MustCompile(`(?s)README\s*\n\n(.*?)(?:\n\n[A-Z]|\z)`)
	filesSection     = regexp.MustCompile(`(?s)Folders and files\s*\n(.*?)(?:\n\nREADME|\n\nAbout|\z)`)
	fileCell         = regexp.MustCompile(`\|\s*([^|]+\.\w+)\s*\|`)
)

// ParseStars finds an "N stars" count
func ParseStars(content string) (int, bool) {
	return parseCount(starsPattern, content)
}

// ParseForks finds an "N forks" count
func ParseForks(content string) (int, bool) {
	return parseCount(forksPattern, content)
}

// ParseLanguages reads "name percentage%" pairs from a Languages section
func ParseLanguages(content string) ([]string, bool) {
	m := languagesSection.FindStringSubmatch(content)
	if m == nil {
		return nil, false
	}
	var langs []string
	for _, pair := range languagePair.FindAllStringSubmatch(m[1], -1) {
		langs = append(langs, pair[1])
	}
	return langs, true
}

// ParseReadme returns the text block after a README marker up to the next heading
func ParseReadme(content string) (string, bool) {
	m := readmeSection.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseFiles returns file names listed in a "Folders and files" table
func ParseFiles(content string) ([]string, bool) {
	m := filesSection.FindStringSubmatch(content)
	if m == nil {
		return nil, false
	}
	var files []string
	for _, cell := range fileCell.FindAllStringSubmatch(m[1], -1) {
		if name := strings.TrimSpace(cell[1]); name != "" {
			files = append(files, name)
		}
	}
	return files, true
}

// Parse extracts everything it can from raw page content. Fields whose
// pattern matches nothing keep the values already in base.
func Parse(content string, base RepoContent) RepoContent {
	out := base
	out.RawContent = content
	out.Extracted = true

	if n, ok := ParseStars(content); ok {
		out.Stars = n
	}
	if n, ok := ParseForks(content); ok {
		out.Forks = n
	}
	if langs, ok := ParseLanguages(content); ok {
		out.Languages = langs
	}
	if readme, ok := ParseReadme(content); ok {
		out.Readme = readme
	}
	if files, ok := ParseFiles(content); ok {
		out.Files = files
	}
	return out
}

func parseCount(re *regexp.Regexp, content string) (int, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
