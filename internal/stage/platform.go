package stage

import (
	"fmt"
	"sort"
	"strings"
)

// Platform describes the target network's conventions.
type Platform struct {
	Name        string
	DisplayName string
	Language    string
	MaxChars    int
	MaxHashtags int
	Tone        string
	Format      string
}

var (
	Twitter = Platform{
		Name:        "twitter",
		DisplayName: "Twitter/X thread",
		Language:    "English",
		MaxChars:    1400,
		MaxHashtags: 3,
		Tone:        "concise, curious and technically precise",
		Format:      "a numbered thread of 4-6 short posts; each post under 280 characters; the first post is the hook",
	}
	Xiaohongshu = Platform{
		Name:        "xiaohongshu",
		DisplayName: "Xiaohongshu note",
		Language:    "Simplified Chinese",
		MaxChars:    1000,
		MaxHashtags: 8,
		Tone:        "friendly and enthusiastic, with a few emoji",
		Format:      "a catchy title line under 20 characters followed by short paragraphs and an emoji bullet list",
	}
)

var platforms = map[string]Platform{
	Twitter.Name:     Twitter,
	Xiaohongshu.Name: Xiaohongshu,
	"x":              Twitter,
	"xhs":            Xiaohongshu,
}

// LookupPlatform resolves a platform by name or alias.
func LookupPlatform(name string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Twitter, nil
	}
	if p, ok := platforms[key]; ok {
		return p, nil
	}
	return Platform{}, fmt.Errorf("unknown platform %q (want one of %s)", name, strings.Join(PlatformNames(), ", "))
}

// PlatformNames lists canonical platform names.
func PlatformNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, p := range platforms {
		if !seen[p.Name] {
			seen[p.Name] = true
			names = append(names, p.Name)
		}
	}
	sort.Strings(names)
	return names
}
