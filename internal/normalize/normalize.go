// Package normalize maps raw adapter records onto the canonical record
// schema. The cross-source identity heuristic lives here and nowhere else:
// the same post reached through the native API (post ID) and through the
// search proxy (post URL) must normalize to one identity key, so the
// deduplicator can collapse them without knowing anything about sources.
package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
	"github.com/Lee-Soyeon/kpop-trade-collector/internal/source"
)

// ErrMalformed marks a raw record that cannot be mapped to the canonical
// schema. Only the single record is skipped, never the whole query.
var ErrMalformed = errors.New("malformed record")

// Record maps one raw record to a canonical one. Trade intent and the
// collection timestamp are assigned later (by the classifier and the sink
// respectively); fields the source did not supply stay unset.
func Record(raw source.RawRecord) (*model.Record, error) {
	if strings.TrimSpace(raw.Title) == "" {
		return nil, fmt.Errorf("%w: missing title", ErrMalformed)
	}

	key, err := identityKey(raw)
	if err != nil {
		return nil, err
	}

	rec := &model.Record{
		IdentityKey:  key,
		Title:        raw.Title,
		Body:         raw.Body,
		Snippet:      raw.Snippet,
		Author:       raw.Author,
		Community:    raw.Community,
		Source:       raw.Source,
		Score:        raw.Score,
		NumResponses: raw.NumResponses,
	}
	if !raw.CreatedAt.IsZero() {
		t := raw.CreatedAt.UTC()
		rec.CreatedAt = &t
	}
	rec.LanguageHint = languageHint(raw.Title + " " + raw.Body + " " + raw.Snippet)
	return rec, nil
}

// identityKey picks the most identity-stable value the source provides:
// the native post ID when present, the post ID embedded in a platform URL
// when recognizable, and otherwise the canonicalized URL itself.
func identityKey(raw source.RawRecord) (string, error) {
	if raw.NativeID != "" {
		return raw.NativeID, nil
	}
	if raw.URL == "" {
		return "", fmt.Errorf("%w: no native id or url", ErrMalformed)
	}
	if id := postIDFromURL(raw.URL); id != "" {
		return id, nil
	}
	canon, err := canonicalURL(raw.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return canon, nil
}

// postIDFromURL extracts the post ID from a platform permalink of the form
// /r/<community>/comments/<id>/<slug>.
func postIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, seg := range segs {
		if seg == "comments" && i+1 < len(segs) && segs[i+1] != "" {
			return segs[i+1]
		}
	}
	return ""
}

// canonicalURL lowers scheme and host, collapses platform subdomains,
// strips tracking parameters and the fragment, and trims the trailing
// slash, so cosmetically different URLs of one page compare equal.
func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("relative url %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	for _, sub := range []string{"www.", "old.", "new.", "m."} {
		if strings.HasPrefix(host, sub) {
			host = host[len(sub):]
			break
		}
	}
	u.Host = host
	u.Fragment = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(param, "utm_") || param == "ref" || param == "ref_source" ||
			param == "context" || param == "share_id" {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), nil
}

// languageHint is best-effort: Hangul anywhere marks the post Korean,
// everything else defaults to English.
func languageHint(text string) string {
	for _, r := range text {
		if unicode.Is(unicode.Hangul, r) {
			return "ko"
		}
	}
	return "en"
}
