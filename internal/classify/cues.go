package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	quotedCue  = regexp.MustCompile(`“([^”]{2,24})”|"([^"]{2,24})"|「([^」]{2,24})」|『([^』]{2,24})』`)
	numberCues = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:room|floor|car|platform|exit|line|bus|apt)\s*#?\d+\b`),
		regexp.MustCompile(`\d+\s*(?:号车厢|节车厢|号线|号楼|号|楼|层|节|室|房|站|路)`),
		regexp.MustCompile(`第[一二三四五六七八九十百零\d]+[节层号个段]车?厢?`),
		regexp.MustCompile(`\d{1,2}[:：]\d{2}`),
	}
)

// Cues 抽取字面线索：标题、引号短语、数字+单位；去重后截取前 maxCues 个
func (c *Classifier) Cues(in Input) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, c.maxCues)
	add := func(s string) bool {
		s = strings.TrimSpace(s)
		if s == "" || utf8.RuneCountInString(s) > 40 {
			return len(out) < c.maxCues
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			return len(out) < c.maxCues
		}
		seen[key] = struct{}{}
		out = append(out, s)
		return len(out) < c.maxCues
	}

	if !add(in.Title) {
		return out
	}
	sources := append([]string{in.Body}, in.Comments...)
	for _, src := range sources {
		for _, m := range quotedCue.FindAllStringSubmatch(src, -1) {
			for _, g := range m[1:] {
				if g != "" {
					if !add(g) {
						return out
					}
					break
				}
			}
		}
	}
	for _, src := range sources {
		for _, re := range numberCues {
			for _, m := range re.FindAllString(src, -1) {
				if !add(m) {
					return out
				}
			}
		}
	}
	return out
}
