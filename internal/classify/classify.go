// Package classify tags collected posts with a trade intent by scanning
// title and body text against ordered keyword groups. Group order is fixed
// (SELL > TRADE > BUY > SEARCH) and the first matching group wins, which
// keeps mixed-marker titles like "WTT/WTS" deterministic.
package classify

import (
	"strings"
	"unicode"

	"github.com/Lee-Soyeon/kpop-trade-collector/internal/model"
)

// group binds an intent to its marker keywords. Multi-word keywords come
// before their short forms so the more specific marker is what we report
// as matched.
type group struct {
	intent   model.TradeIntent
	keywords []string
}

// defaultGroups is the fixed precedence order. The Korean markers mirror
// the English ones: 판매/팝니다 sell, 교환 trade, 삽니다/구해 buy.
var defaultGroups = []group{
	{model.IntentSell, []string{"for sale", "selling", "wts", "판매", "팝니다"}},
	{model.IntentTrade, []string{"wtt", "trade", "swap", "교환"}},
	{model.IntentBuy, []string{"want to buy", "looking for", "wtb", "삽니다", "구해"}},
	{model.IntentSearch, []string{"in search of", "iso"}},
}

// Classifier performs case-insensitive keyword classification.
type Classifier struct {
	groups []group
}

// New returns a Classifier with the default keyword groups.
func New() *Classifier {
	return &Classifier{groups: defaultGroups}
}

// Classify inspects the text and returns the matching intent plus the
// keyword that triggered it. ok is false when no group matches; such a
// record must not be materialized.
func (c *Classifier) Classify(text string) (intent model.TradeIntent, keyword string, ok bool) {
	lower := strings.ToLower(text)
	tokens := tokenSet(lower)

	for _, g := range c.groups {
		for _, kw := range g.keywords {
			if matches(lower, tokens, kw) {
				return g.intent, kw, true
			}
		}
	}
	return "", "", false
}

// matches decides per keyword kind: phrases and Korean markers match as
// substrings, single ASCII words must match a whole token so that e.g.
// "also" never triggers "iso".
func matches(lower string, tokens map[string]struct{}, kw string) bool {
	if strings.ContainsRune(kw, ' ') || !isASCII(kw) {
		return strings.Contains(lower, kw)
	}
	_, ok := tokens[kw]
	return ok
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// tokenSet splits already-lowercased text on everything that is not a
// letter or digit.
func tokenSet(lower string) map[string]struct{} {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
