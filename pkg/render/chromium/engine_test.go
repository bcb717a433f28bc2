package chromium

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/matzehuels/mapexport/pkg/mapstyle"
	"github.com/matzehuels/mapexport/pkg/render"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

func testSnapshot(t *testing.T) render.Snapshot {
	t.Helper()
	style, err := mapstyle.Parse([]byte(`{
		"version": 8,
		"name": "bg",
		"sources": {},
		"layers": [{"id": "bg", "type": "background", "paint": {"background-color": "#336699"}}]
	}`))
	if err != nil {
		t.Fatal(err)
	}
	return render.Snapshot{
		Camera: mapstyle.Camera{Center: orb.Point{13.4, 52.5}, Zoom: 9, Bearing: 15},
		Style:  style,
	}
}

func TestPageHTML(t *testing.T) {
	snap := testSnapshot(t)
	opts := render.TargetOptions{Width: 600, Height: 300, PixelRatio: 2}

	doc, err := pageHTML(snap, opts, "https://example.com/maplibre.js", false)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"width: 300px; height: 150px;",
		"interactive: false",
		"preserveDrawingBuffer: true",
		"fadeDuration: 0",
		"attributionControl: false",
		`map.once("idle"`,
		`"https://example.com/maplibre.js"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("page does not contain %q", want)
		}
	}

	start := strings.Index(doc, `<script id="config" type="application/json">`)
	end := strings.Index(doc[start:], "</script>")
	raw := doc[start+len(`<script id="config" type="application/json">`) : start+end]
	var cfg pageConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("config is not JSON: %v", err)
	}
	if cfg.Center != [2]float64{13.4, 52.5} || cfg.Zoom != 9 || cfg.Bearing != 15 || cfg.PixelRatio != 2 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestPageHTMLEscapesScript(t *testing.T) {
	snap := testSnapshot(t)
	snap.Style.Name = "</script><script>alert(1)</script>"

	doc, err := pageHTML(snap, render.TargetOptions{Width: 10, Height: 10, PixelRatio: 1}, DefaultMapLibreURL, false)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(doc, "<script>alert(1)") {
		t.Error("style content was not escaped")
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		url  string
		want tiles.ResourceKind
	}{
		{"https://tiles.example.com/3/4/2.png?access_token=x", tiles.KindTile},
		{"https://tiles.example.com/v1/3/4/2.pbf", tiles.KindTile},
		{"https://api.example.com/fonts/Open Sans/0-255.pbf", tiles.KindGlyphs},
		{"https://api.example.com/sprite@2x.png", tiles.KindSprite},
		{"https://api.example.com/styles/basic/style.json", tiles.KindStyle},
		{"https://api.example.com/tiles.json", tiles.KindSource},
		{"https://api.example.com/other", tiles.KindUnknown},
	}
	for _, tt := range tests {
		if got := guessKind(tt.url); got != tt.want {
			t.Errorf("guessKind(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestMergeHeaders(t *testing.T) {
	got := mergeHeaders(
		map[string]any{"Accept": "*/*", "Authorization": "old"},
		map[string]string{"authorization": "Bearer new"},
	)
	values := map[string]string{}
	for _, h := range got {
		values[strings.ToLower(h.Name)] = h.Value
	}
	if len(got) != 2 || values["authorization"] != "Bearer new" || values["accept"] != "*/*" {
		t.Errorf("mergeHeaders() = %v", values)
	}
}

func findBrowser() string {
	if path := os.Getenv("MAPEXPORT_TEST_CHROME"); path != "" {
		return path
	}
	return ""
}

// TestEngineRender needs a Chromium binary and network access for the
// MapLibre bundle. Set MAPEXPORT_TEST_CHROME to the browser path to run it.
func TestEngineRender(t *testing.T) {
	path := findBrowser()
	if path == "" {
		t.Skip("MAPEXPORT_TEST_CHROME not set")
	}
	if _, err := exec.LookPath(path); err != nil {
		t.Skipf("browser not found: %v", err)
	}

	e := &Engine{BrowserPath: path, Headless: true}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	opts := render.TargetOptions{Width: 200, Height: 100, PixelRatio: 2}
	target, err := e.NewTarget(ctx, testSnapshot(t), opts)
	if err != nil {
		t.Fatal(err)
	}
	canvas, err := target.Idle().Wait(ctx)
	if cerr := target.Close(); cerr != nil {
		t.Error(cerr)
	}
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if canvas.Width() != 200 || canvas.Height() != 100 {
		t.Errorf("canvas = %dx%d, want 200x100", canvas.Width(), canvas.Height())
	}
	if e.Live() != 0 {
		t.Errorf("Live() = %d, want 0", e.Live())
	}
}
