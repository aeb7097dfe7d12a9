package stage

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"PaperPromoter/internal/domain"
)

var defaultNarrative = []string{"hook", "problem", "method", "results", "takeaway"}

var (
	bulletPattern  = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+)$`)
	hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
)

// ParseDraft reads a model reply into a LogicalDraft. JSON (optionally in
// a code fence) is preferred; otherwise bullet lines become claims and the
// first other line becomes the title.
func ParseDraft(raw string) (domain.LogicalDraft, error) {
	var draft domain.LogicalDraft
	if body, ok := jsonObject(raw); ok {
		if err := json.Unmarshal([]byte(body), &draft); err == nil && !draft.Empty() {
			return tidyDraft(draft), nil
		}
		draft = domain.LogicalDraft{}
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			draft.Claims = append(draft.Claims, strings.TrimSpace(m[1]))
			continue
		}
		if draft.Title == "" {
			draft.Title = strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
	}
	if draft.Empty() || len(draft.Claims) == 0 {
		return domain.LogicalDraft{}, errors.New("model reply contains no usable draft")
	}
	return tidyDraft(draft), nil
}

func tidyDraft(d domain.LogicalDraft) domain.LogicalDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Claims = compact(d.Claims)
	d.KeyFindings = compact(d.KeyFindings)
	d.NarrativeOrder = compact(d.NarrativeOrder)
	if len(d.NarrativeOrder) == 0 {
		d.NarrativeOrder = append([]string(nil), defaultNarrative...)
	}
	return d
}

func compact(items []string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// jsonObject returns the outermost {...} span of s.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// ParsePost turns model output into a post. The title is the first
// markdown heading (or first line) and hashtags are collected in order of
// appearance, capped at the platform limit.
func ParsePost(raw string, p Platform) (domain.Post, error) {
	body := strings.TrimSpace(stripFence(raw))
	if body == "" {
		return domain.Post{}, errors.New("model returned an empty post")
	}

	post := domain.Post{Platform: p.Name, Markdown: body}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := strings.Fields(line)[0]
		switch {
		case hashtagPattern.MatchString(first) && strings.HasPrefix(first, "#"):
			// opens with hashtags, no title line
		case strings.HasPrefix(line, "#"):
			post.Title = strings.TrimSpace(strings.TrimLeft(line, "#"))
		default:
			post.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		}
		break
	}
	if utf8.RuneCountInString(post.Title) > 120 {
		post.Title = string([]rune(post.Title)[:120])
	}

	seen := map[string]bool{}
	for _, tag := range hashtagPattern.FindAllString(body, -1) {
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		post.Hashtags = append(post.Hashtags, tag)
		if p.MaxHashtags > 0 && len(post.Hashtags) == p.MaxHashtags {
			break
		}
	}
	return post, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
