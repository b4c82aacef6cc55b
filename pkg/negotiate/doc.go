// Package negotiate implements HTTP content negotiation for the request
// pipeline: parsing weighted header lists (Accept, Accept-Language),
// matching media ranges against offered media types, and picking a
// locale for the caller's language preferences.
//
// Entries of equal weight are ordered by specificity: a concrete type
// with parameters sorts before a concrete type, which sorts before a
// subtype wildcard, which sorts before */*. Entries that tie on both
// keep header order.
//
//	offer, ok := negotiate.Match(r.Header.Get("Accept"), []string{"text/html", "application/json"})
package negotiate
