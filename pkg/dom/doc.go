// Package dom is the synthetic document the rendering engine runs
// component scripts against. It stores the tree as golang.org/x/net/html
// nodes and adds what the HTML parser has no notion of: shadow roots
// attached to hosts, fragment semantics on insertion, and the
// declarative shadow root pass that makes rendered shadow trees part of
// the serialized markup.
//
// Template contents stay children of their template node, so rendering
// a template element emits its contents. Tree walks and selector
// queries never descend into them.
package dom
