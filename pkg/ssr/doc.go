// Package ssr renders custom element markup on the server.
//
// An Engine evaluates an entry script against a synthetic document in a
// fresh goja runtime. The script imports component modules from the
// engine's file system; they are converted from ES modules to
// CommonJS-shaped units, linked by normalized path and evaluated once
// each. After evaluation, every element whose tag the script defined
// and that hosts an open shadow root gets a declarative
// <template shadowrootmode="open"> copy of it, so the browser can paint
// the component before any script runs.
//
// The document exposes the part of the browser surface components use
// while constructing: node and element trees, attributes, shadow roots,
// templates, selectors, custom element lifecycle callbacks and events.
// Navigation, timers and network access are inert.
//
//	engine := ssr.New(os.DirFS("dist"), ssr.WithTimeout(5*time.Second))
//	body, err := engine.Render(ctx, ssr.Input{
//	    Markup: `<fw-page-1a2b></fw-page-1a2b>`,
//	    Script: `import Page from "/__app/routes/page-1a2b.js";
//	             customElements.define("fw-page-1a2b", Page);`,
//	})
package ssr
