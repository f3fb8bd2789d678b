package docs

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/sha1n/mcp-tossdocs-server/internal/domain"
)

var (
	// Matches: [Title](https://host/page.md) and [Title](page.md "tooltip")
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

	// Matches: https://host/page.md on its own line, optionally as a list item
	bareURLPattern = regexp.MustCompile(`^\s*(?:[-*+]\s+)?(https?://\S+)\s*$`)
)

// Link is a sub-page reference discovered in a seed manifest.
type Link struct {
	Title string
	URL   string
}

// ParseLinks extracts sub-page links from a seed manifest in document order.
// Relative references are resolved against baseURL; fragments are dropped,
// non-http(s) targets and duplicates are skipped. Image links are ignored.
func ParseLinks(manifest, baseURL string) ([]Link, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid manifest URL %q: %w", domain.ErrManifest, baseURL, err)
	}

	var links []Link
	seen := make(map[string]bool)

	add := func(title, ref string) {
		resolved, ok := resolveLink(base, ref)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		if title == "" {
			title = linkTitleFromURL(resolved)
		}
		links = append(links, Link{Title: title, URL: resolved})
	}

	for _, line := range strings.Split(manifest, "\n") {
		matches := markdownLinkPattern.FindAllStringSubmatchIndex(line, -1)
		if len(matches) == 0 {
			if m := bareURLPattern.FindStringSubmatch(line); m != nil {
				add("", m[1])
			}
			continue
		}

		for _, m := range matches {
			if m[0] > 0 && line[m[0]-1] == '!' {
				continue
			}
			add(strings.TrimSpace(line[m[2]:m[3]]), line[m[4]:m[5]])
		}
	}

	return links, nil
}

// resolveLink resolves ref against base and normalizes it.
func resolveLink(base *url.URL, ref string) (string, bool) {
	u, err := base.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// linkTitleFromURL derives a title from the last path segment.
//
// Examples:
//   - https://host/docs/intro.md -> intro
//   - https://host/ -> host
func linkTitleFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	if name == "" || name == "." || name == "/" {
		return u.Host
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
