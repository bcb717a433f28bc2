package chromium

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/mapexport/pkg/render"
)

// DefaultMapLibreURL is the MapLibre GL build loaded by the page.
const DefaultMapLibreURL = "https://unpkg.com/maplibre-gl@4.7.1/dist/maplibre-gl.js"

// resultExpr evaluates to the promise set up by the page.
const resultExpr = `window.__mapexport`

type pageConfig struct {
	Style      any        `json:"style"`
	Center     [2]float64 `json:"center"`
	Zoom       float64    `json:"zoom"`
	Bearing    float64    `json:"bearing"`
	Pitch      float64    `json:"pitch"`
	PixelRatio float64    `json:"pixelRatio"`
	Strict     bool       `json:"strict"`
}

const pageScript = `
function render(resolve, reject) {
  const cfg = JSON.parse(document.getElementById("config").textContent);
  const map = new maplibregl.Map({
    container: "map",
    style: cfg.style,
    center: cfg.center,
    zoom: cfg.zoom,
    bearing: cfg.bearing,
    pitch: cfg.pitch,
    pixelRatio: cfg.pixelRatio,
    interactive: false,
    preserveDrawingBuffer: true,
    fadeDuration: 0,
    attributionControl: false
  });
  map.once("idle", () => resolve(map.getCanvas().toDataURL("image/png")));
  map.on("error", (e) => {
    if (cfg.strict) reject(String((e.error && e.error.message) || e));
  });
}
window.__mapexport = new Promise((resolve, reject) => {
  const s = document.createElement("script");
  s.src = JSON.parse(document.getElementById("maplibre").textContent);
  s.onload = () => render(resolve, reject);
  s.onerror = () => reject("maplibre-gl failed to load");
  document.head.appendChild(s);
});
`

// pageHTML builds the document hosting one off-screen map.
// The container is sized in logical pixels.
func pageHTML(snap render.Snapshot, opts render.TargetOptions, mapLibreURL string, strict bool) (string, error) {
	w, h := opts.LogicalSize()
	cfg := pageConfig{
		Style:      snap.Style,
		Center:     [2]float64{snap.Camera.Center.Lon(), snap.Camera.Center.Lat()},
		Zoom:       snap.Camera.Zoom,
		Bearing:    snap.Camera.Bearing,
		Pitch:      snap.Camera.Pitch,
		PixelRatio: opts.PixelRatio,
		Strict:     strict,
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode page config: %w", err)
	}
	src, err := json.Marshal(mapLibreURL)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>html, body { margin: 0; padding: 0; } #map { width: %gpx; height: %gpx; }</style>
</head>
<body>
<div id="map"></div>
<script id="config" type="application/json">%s</script>
<script id="maplibre" type="application/json">%s</script>
<script>%s</script>
</body>
</html>`, w, h, data, src, pageScript), nil
}
