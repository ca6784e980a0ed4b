package helpers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"utm_id":       {},
	"gclid":        {},
	"dclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
}

var arxivAbsPath = regexp.MustCompile(`^/abs/([\w.\-]+)$`)

// CanonicalURL normalises a paper URL into the identity used as the cache
// key. It lowercases scheme/host, removes default ports, strips fragments
// and tracking query parameters (utm_*, fbclid, etc.), cleans path segments
// and sorts remaining query parameters deterministically. arXiv abstract
// pages are rewritten to their PDF counterpart so /abs/ and /pdf/ links for
// the same paper share one identity.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("url must be http(s)")
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return "", errors.New("url missing host")
	}
	if parts := strings.Split(host, ":"); len(parts) == 2 {
		port := parts[1]
		if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
			host = parts[0]
		}
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}
	cleanPath := path.Clean(parsed.Path)
	if cleanPath == "." {
		cleanPath = "/"
	}
	if !strings.HasPrefix(cleanPath, "/") {
		cleanPath = "/" + cleanPath
	}
	parsed.Path = cleanPath

	if isArxivHost(host) {
		if m := arxivAbsPath.FindStringSubmatch(parsed.Path); m != nil {
			parsed.Path = "/pdf/" + m[1]
		}
		// arXiv serves the same PDF with and without the extension.
		parsed.Path = strings.TrimSuffix(parsed.Path, ".pdf")
		parsed.RawQuery = ""
	}

	parsed.Fragment = ""
	query := parsed.Query()
	for key := range query {
		if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
			query.Del(key)
		}
	}

	if len(query) == 0 {
		parsed.RawQuery = ""
	} else {
		keys := make([]string, 0, len(query))
		for key := range query {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, key := range keys {
			values := append([]string(nil), query[key]...)
			sort.Strings(values)
			for _, value := range values {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(key))
				if value != "" {
					b.WriteByte('=')
					b.WriteString(url.QueryEscape(value))
				}
			}
		}
		parsed.RawQuery = b.String()
	}

	return parsed.String(), nil
}

// URLFingerprint canonicalises raw and returns its fingerprint.
func URLFingerprint(raw string) (string, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	return Fingerprint(canonical), nil
}

// Fingerprint returns a deterministic SHA-256 hex digest of an
// already-canonicalised URL, used as the compact cache key component.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// IsArxivURL reports whether the canonicalised URL points at an arXiv PDF.
func IsArxivURL(canonical string) bool {
	parsed, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	return isArxivHost(parsed.Host) && strings.HasPrefix(parsed.Path, "/pdf/")
}

func isArxivHost(host string) bool {
	return host == "arxiv.org" || host == "www.arxiv.org" || strings.HasSuffix(host, ".arxiv.org")
}
