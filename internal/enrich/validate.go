package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clearcare/provider-cli/internal/model"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Digits strips everything but 0-9 from a raw phone string.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatPhone normalizes a raw phone string for Indian provider records.
// A 10-digit number is rendered as "+91 XXXXX XXXXX"; longer numbers are
// assumed to carry their own country code and keep their digits behind a
// plus. Anything shorter is unusable and rejected.
func FormatPhone(raw string) (string, bool) {
	d := Digits(raw)
	switch {
	case len(d) == 10:
		return fmt.Sprintf("+91 %s %s", d[:5], d[5:]), true
	case len(d) > 10:
		return "+" + d, true
	default:
		return "", false
	}
}

// ValidEmail reports whether s is a plausible address with a local part,
// a domain and a TLD.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidAddress applies the minimum-substance check used after search:
// anything 10 characters or shorter is a fragment, not an address.
func ValidAddress(s string) bool {
	return len(strings.TrimSpace(s)) > 10
}

// Field presence heuristics. These gate whether enrichment runs at all,
// and are deliberately looser than the post-search validators above: a
// field that passes here is left alone, a field that fails is worth a
// search.

func hasUsablePhone(rec model.ProviderRecord) bool {
	p := rec.Get(model.FieldPhone)
	return p != "" && len(p) >= 10
}

func hasUsableEmail(rec model.ProviderRecord) bool {
	e := rec.Get(model.FieldEmail)
	return e != "" && strings.Contains(e, "@")
}

func hasUsableAddress(rec model.ProviderRecord) bool {
	return len(rec.Get(model.FieldAddress)) >= 15
}

// Needed reports whether any contact field is missing or too thin to
// trust, which is the trigger for online enrichment.
func Needed(rec model.ProviderRecord) bool {
	return !hasUsablePhone(rec) || !hasUsableEmail(rec) || !hasUsableAddress(rec)
}
