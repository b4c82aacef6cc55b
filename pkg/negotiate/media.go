package negotiate

import (
	"sort"
	"strings"
)

// mediaType is a parsed type/subtype with optional parameters.
type mediaType struct {
	typ     string
	subtype string
	params  map[string]string
}

func parseMediaType(s string) mediaType {
	parts := strings.Split(s, ";")
	mime := strings.ToLower(strings.TrimSpace(parts[0]))
	typ, subtype, ok := strings.Cut(mime, "/")
	if !ok {
		// A bare "*" is treated as */*.
		if typ == "*" {
			subtype = "*"
		}
	}
	mt := mediaType{typ: typ, subtype: subtype}
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(p, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || k == "q" {
			continue
		}
		if mt.params == nil {
			mt.params = make(map[string]string)
		}
		mt.params[k] = strings.Trim(strings.TrimSpace(v), `"`)
	}
	return mt
}

// specificity ranks a media range: */* is 0, type/* is 1, type/sub is 2,
// and a concrete type with parameters is 3.
func specificity(value string, params map[string]string) int {
	mt := parseMediaType(value)
	switch {
	case mt.typ == "*":
		return 0
	case mt.subtype == "*":
		return 1
	case len(params) > 0 || len(mt.params) > 0:
		return 3
	default:
		return 2
	}
}

// MatchMediaType reports whether a media range matches an offered media
// type. Wildcards are honored on either side. Parameters present on the
// range must be present with the same value on the offer.
func MatchMediaType(mediaRange, offer string) bool {
	return matchParsed(parseMediaType(mediaRange), parseMediaType(offer))
}

func matchParsed(r, o mediaType) bool {
	for k, v := range r.params {
		if o.params[k] != v {
			return false
		}
	}
	if r.typ == "*" || o.typ == "*" {
		return true
	}
	if r.typ != o.typ {
		return false
	}
	return r.subtype == "*" || o.subtype == "*" || r.subtype == o.subtype
}

// Match returns the offer preferred by the Accept header. Header entries
// are tried in order; for the first entry matching any offer, the most
// specific matching offer wins. Entries weighted zero never match. An
// empty header accepts anything.
func Match(header string, offers []string) (string, bool) {
	entries := acceptEntries(header)
	for _, entry := range entries {
		if entry.Weight <= 0 {
			continue
		}
		r := mediaType{params: entry.Params}
		r.typ, r.subtype = splitType(entry.Value)

		var matches []string
		for _, offer := range offers {
			if matchParsed(r, parseMediaType(offer)) {
				matches = append(matches, offer)
			}
		}
		if len(matches) == 0 {
			continue
		}
		sort.SliceStable(matches, func(i, j int) bool {
			return specificity(matches[i], nil) > specificity(matches[j], nil)
		})
		return matches[0], true
	}
	return "", false
}

// Accepts reports whether the Accept header allows offerType. The most
// specific matching range decides, so "text/html;q=0, */*" refuses
// text/html while accepting everything else.
func Accepts(header, offerType string) bool {
	offer := parseMediaType(offerType)
	best := -1
	var weight float64
	for _, entry := range acceptEntries(header) {
		r := mediaType{params: entry.Params}
		r.typ, r.subtype = splitType(entry.Value)
		// Ranges are matched one way here: a concrete range never
		// matches a wildcard offer.
		if r.typ != "*" && r.typ != offer.typ {
			continue
		}
		if r.subtype != "*" && r.subtype != offer.subtype {
			continue
		}
		if !matchParsed(r, offer) {
			continue
		}
		if s := specificity(entry.Value, entry.Params); s > best {
			best = s
			weight = entry.Weight
		}
	}
	return best >= 0 && weight > 0
}

func acceptEntries(header string) []Entry {
	if strings.TrimSpace(header) == "" {
		return []Entry{{Value: "*/*", Weight: 1}}
	}
	return ParseHeader(header)
}

func splitType(value string) (string, string) {
	mt := parseMediaType(value)
	return mt.typ, mt.subtype
}
