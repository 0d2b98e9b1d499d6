package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	quotePattern    = regexp.MustCompile(`“([^”]+)”|"([^"]+)"|「([^」]+)」|『([^』]+)』`)
	reportingVerb   = regexp.MustCompile(`(?i)(?:回复|回答|答复|说|写道|reply|respond|answer|say)\s*(?:是|为|如下)?\s*[:：]\s*`)
	sentenceEnders  = "。！？!?；;…."
	minQuotedLength = 4
)

// quotedSpeech 取最后一段干净的引号内容
type quotedSpeech struct{ p *Pipeline }

func (quotedSpeech) Name() string { return "quoted" }

func (s quotedSpeech) Apply(text string) (string, bool) {
	matches := quotePattern.FindAllStringSubmatch(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		q := firstGroup(matches[i])
		if utf8.RuneCountInString(q) < minQuotedLength {
			continue
		}
		if s.p.Acceptable(q) {
			return q, true
		}
	}
	return "", false
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return strings.TrimSpace(g)
		}
	}
	return ""
}

// reportedSpeech 取最后一个"回复："之后的内容
type reportedSpeech struct{ p *Pipeline }

func (reportedSpeech) Name() string { return "reported" }

func (s reportedSpeech) Apply(text string) (string, bool) {
	locs := reportingVerb.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return "", false
	}
	rest := strings.TrimSpace(text[locs[len(locs)-1][1]:])
	if i := strings.IndexAny(rest, "\n"); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}

// dropMeta 删除含推理措辞的句子
type dropMeta struct{ p *Pipeline }

func (dropMeta) Name() string { return "drop_meta" }

func (s dropMeta) Apply(text string) (string, bool) {
	kept := s.p.cleanSentences(text)
	out := strings.TrimSpace(strings.Join(kept, ""))
	return out, out != ""
}

// truncate 删除推理句后在最大长度内的最后一个句末截断
type truncate struct{ p *Pipeline }

func (truncate) Name() string { return "truncate" }

func (s truncate) Apply(text string) (string, bool) {
	var b strings.Builder
	n := 0
	for _, sent := range s.p.cleanSentences(text) {
		if !endsSentence(sent) {
			break
		}
		c := utf8.RuneCountInString(sent)
		if n+c > s.p.maxLen {
			break
		}
		b.WriteString(sent)
		n += c
	}
	out := strings.TrimSpace(b.String())
	return out, out != ""
}

func (p *Pipeline) cleanSentences(text string) []string {
	var kept []string
	for _, sent := range splitSentences(text) {
		if strings.TrimSpace(sent) == "" || p.LooksLikeReasoning(sent) {
			continue
		}
		kept = append(kept, sent)
	}
	return kept
}

// splitSentences 按句末标点与换行切分，标点保留在句尾；连续标点视为同一句末
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' || r == '\r' {
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
		if strings.ContainsRune(sentenceEnders, r) {
			for i+1 < len(runes) && (strings.ContainsRune(sentenceEnders, runes[i+1]) || isClosingQuote(runes[i+1])) {
				i++
				cur.WriteRune(runes[i])
			}
			if s := strings.TrimSpace(cur.String()); s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isClosingQuote(r rune) bool {
	return r == '”' || r == '」' || r == '』' || r == '"'
}

func endsSentence(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	if isClosingQuote(r) {
		trimmed := strings.TrimRightFunc(s, isClosingQuote)
		r, _ = utf8.DecodeLastRuneInString(trimmed)
	}
	return strings.ContainsRune(sentenceEnders, r)
}
