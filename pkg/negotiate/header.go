package negotiate

import (
	"sort"
	"strconv"
	"strings"
)

// Entry is one element of a weighted header list such as Accept.
type Entry struct {
	Value  string
	Params map[string]string
	Weight float64
}

// ParseHeader splits a comma separated header into entries ordered by
// weight, highest first, then by specificity.
func ParseHeader(header string) []Entry {
	var entries []Entry
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		elements := strings.Split(part, ";")
		entry := Entry{
			Value:  strings.TrimSpace(elements[0]),
			Weight: 1,
		}
		for _, el := range elements[1:] {
			key, value, _ := strings.Cut(el, "=")
			key = strings.ToLower(strings.TrimSpace(key))
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if key == "" {
				continue
			}
			if key == "q" {
				entry.Weight = parseWeight(value)
				continue
			}
			if entry.Params == nil {
				entry.Params = make(map[string]string)
			}
			entry.Params[key] = value
		}
		if entry.Value == "" {
			continue
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weight != entries[j].Weight {
			return entries[i].Weight > entries[j].Weight
		}
		return specificity(entries[i].Value, entries[i].Params) > specificity(entries[j].Value, entries[j].Params)
	})
	return entries
}

// Values returns the entry values in order.
func Values(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out
}

// parseWeight reads a q value. Malformed values weigh zero.
func parseWeight(v string) float64 {
	w, err := strconv.ParseFloat(v, 64)
	if err != nil || w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}
