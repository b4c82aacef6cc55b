package negotiate

import (
	"strings"

	"golang.org/x/text/language"
)

// Languages returns the language tags of an Accept-Language header in
// preference order. Tags weighted zero are dropped.
func Languages(header string) []string {
	entries := ParseHeader(header)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Weight <= 0 {
			continue
		}
		out = append(out, e.Value)
	}
	return out
}

// MatchLanguage picks the first available locale that satisfies the
// caller's languages, tried in order. A locale satisfies a language when
// it is the same tag, or it shares the base language and any script or
// region it names agrees with the requested one. "en" therefore serves
// "en-GB", but "en-US" does not.
func MatchLanguage(languages, available []string) (string, bool) {
	for _, lang := range languages {
		want, err := language.Parse(lang)
		if err != nil {
			continue
		}
		wantBase, wantScript, wantRegion := want.Raw()
		for _, locale := range available {
			if strings.EqualFold(lang, locale) {
				return locale, true
			}
			have, err := language.Parse(locale)
			if err != nil {
				continue
			}
			base, script, region := have.Raw()
			if base != wantBase {
				continue
			}
			if script != (language.Script{}) && script != wantScript {
				continue
			}
			if region != (language.Region{}) && region != wantRegion {
				continue
			}
			return locale, true
		}
	}
	return "", false
}
