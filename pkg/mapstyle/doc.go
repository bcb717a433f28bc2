// Package mapstyle models the map state an export starts from: the camera
// and a MapLibre/Mapbox GL style document.
//
// A [Style] keeps every property it was decoded from, so a style read from
// disk or a URL can be handed to a browser engine unchanged. Typed
// accessors on [Source] and [Layer] expose the subset the built-in raster
// engine understands.
//
// # Sanitizing
//
// Browser renderers reject sources carrying null or empty placeholder
// properties (raster-dem sources often arrive with an undefined url or
// bounds). [Sanitize] returns a copy with every falsy source property
// removed:
//
//	clean := mapstyle.Sanitize(style)
//
// The input style is never modified.
package mapstyle
