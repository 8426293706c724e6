package normalizer

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"net/url"
	"regexp"
	"strings"
)

var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// CanonicalizeURL strips UTM tracking parameters and the fragment from raw,
// preserving the remaining query parameters in their original relative order.
// Malformed input is returned unchanged; a bad URL must not fail the pipeline.
func CanonicalizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if parsed.RawQuery != "" {
		var kept []string
		for _, pair := range strings.Split(parsed.RawQuery, "&") {
			if pair == "" {
				continue
			}
			key := pair
			if idx := strings.Index(pair, "="); idx >= 0 {
				key = pair[:idx]
			}
			if trackingParams[key] {
				continue
			}
			kept = append(kept, pair)
		}
		parsed.RawQuery = strings.Join(kept, "&")
	}

	parsed.Fragment = ""
	parsed.RawFragment = ""

	return parsed.String()
}

// CleanText unescapes HTML entities, strips tag-like substrings and collapses
// runs of whitespace. An empty result signals no usable content.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = html.UnescapeString(text)
	text = tagPattern.ReplaceAllString(text, "")
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// GenerateHash fingerprints an article as sha1(cleanTitle + ":" + host) in
// lowercase hex. The hash is advisory duplicate-flagging metadata: identity
// for upserts is the canonical URL, so two URLs sharing a cleaned title and
// host intentionally produce the same hash while remaining separate rows.
// Empty title or URL yields an empty string; partial input is never hashed.
func GenerateHash(title, rawURL string) string {
	if title == "" || rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Host)

	sum := sha1.Sum([]byte(CleanText(title) + ":" + host))
	return hex.EncodeToString(sum[:])
}
