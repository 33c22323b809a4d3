package content

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractAudio returns the first src attribute found in an HTML fragment, made
// relative to mediaBase when it lives there.
func ExtractAudio(fragment, mediaBase string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, ok := doc.Find("[src]").First().Attr("src")
	if !ok {
		src, _ = doc.Find("a[href$='.mp3']").First().Attr("href")
	}
	return RelativeTo(strings.TrimSpace(src), mediaBase)
}

// RelativeTo strips mediaBase from u, ignoring scheme and a leading "www.".
// URLs elsewhere are returned unchanged.
func RelativeTo(u, mediaBase string) string {
	if u == "" || mediaBase == "" {
		return u
	}
	prefix, _ := hostPath(mediaBase)
	if prefix == "" {
		return u
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	full, query := hostPath(u)
	rest, ok := strings.CutPrefix(full, prefix)
	if !ok {
		return u
	}
	if query != "" {
		rest += "?" + query
	}
	return rest
}

func hostPath(raw string) (string, string) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "", ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	return host + parsed.EscapedPath(), parsed.RawQuery
}
