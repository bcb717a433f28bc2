// Package units converts physical page lengths into pixels and describes the
// paper presets a map can be exported to.
//
// # Conversion
//
// [ToPixels] maps a length in millimeters or inches to a pixel count at a
// given DPI:
//
//	units.ToPixels(25.4, 96, units.MM)   // 96
//	units.ToPixels(1, 300, units.Inch)   // 300
//
// The conversion is linear in the length and has no error conditions; zero
// and negative lengths pass through arithmetically. Callers validate.
//
// # Page Sizes
//
// Presets are stored in landscape order (width > height). A portrait page is
// obtained by swapping the pair with [PageSize.Oriented]:
//
//	a4, _ := units.LookupPageSize("A4")     // 297x210
//	w, h := a4.Oriented(units.Portrait)     // 210, 297
//
// A0, A1, B0 and B1 are deliberately absent: at print resolutions their
// canvases exceed what renderers reliably allocate.
package units
