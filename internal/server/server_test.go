package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/mapexport/internal/config"
	"github.com/matzehuels/mapexport/pkg/cache"
	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/pipeline"
	"github.com/matzehuels/mapexport/pkg/tiles"
)

const blueStyle = `{"version": 8, "name": "Blue", "sources": {}, "layers": [{"id": "bg", "type": "background", "paint": {"background-color": "#0000ff"}}]}`

func exportBody(format string) string {
	return `{"style": ` + blueStyle + `, "center": [2.35, 48.85], "zoom": 5, "page_size": "A6", "format": "` + format + `", "dpi": 72}`
}

func newTestServer(t *testing.T, c cache.Cache) *Server {
	t.Helper()
	runner := pipeline.NewRunner(nil, tiles.NewRouter(tiles.NewHTTPFetcher(tiles.WithRetry(1, 0))), c, nil, nil)
	t.Cleanup(func() { runner.Close() })
	cfg := config.Default().Server
	return New(runner, cfg, nil)
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if _, err := uuid.Parse(rec.Header().Get("X-Request-ID")); err != nil {
		t.Errorf("X-Request-ID = %q, want a UUID", rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestIDKept(t *testing.T) {
	s := newTestServer(t, nil)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", id)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != id {
		t.Errorf("X-Request-ID = %q, want %q", got, id)
	}
}

func TestPageSizes(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/v1/page-sizes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		PageSizes []struct {
			Name string     `json:"name"`
			Size [2]float64 `json:"size"`
		} `json:"page_sizes"`
		Formats []string `json:"formats"`
		DPIs    []int    `json:"dpis"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range resp.PageSizes {
		if p.Name == "A4" && p.Size == [2]float64{297, 210} {
			found = true
		}
	}
	if !found {
		t.Errorf("A4 missing from %v", resp.PageSizes)
	}
	if strings.Join(resp.Formats, ",") != "png,jpg,pdf,svg" {
		t.Errorf("formats = %v", resp.Formats)
	}
	if len(resp.DPIs) != 5 {
		t.Errorf("dpis = %v", resp.DPIs)
	}
}

func TestExportAttachment(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/exports", exportBody("png"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="map.png"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 420 || b.Dy() != 298 {
		t.Errorf("size = %dx%d, want 420x298", b.Dx(), b.Dy())
	}
	if _, _, blue, _ := img.At(1, 1).RGBA(); blue>>8 != 0xff {
		t.Errorf("blue = %d, want 255", blue>>8)
	}
}

func TestExportInline(t *testing.T) {
	s := newTestServer(t, nil)
	rec := do(t, s, http.MethodPost, "/v1/exports?inline=1", exportBody("svg"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp exportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != "map.svg" || resp.MediaType != "image/svg+xml" {
		t.Errorf("resp = %q %q", resp.Name, resp.MediaType)
	}
	if !strings.HasPrefix(resp.DataURI, "data:image/svg+xml;base64,") {
		t.Errorf("data_uri = %.40q", resp.DataURI)
	}
	if resp.Width != 420 || resp.Height != 298 {
		t.Errorf("size = %dx%d", resp.Width, resp.Height)
	}
}

func TestExportCached(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, c)

	first := do(t, s, http.MethodPost, "/v1/exports", exportBody("jpg"))
	second := do(t, s, http.MethodPost, "/v1/exports", exportBody("jpg"))
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Errorf("X-Cache = %q, %q, want MISS, HIT", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Error("cached body differs")
	}
}

func TestExportErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   apperrors.Code
	}{
		{"bad format", exportBody("tiff"), http.StatusBadRequest, apperrors.ErrCodeInvalidFormat},
		{"bad json", `{"style":`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"unknown field", `{"colour": "red"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"no style", `{"zoom": 2}`, http.StatusBadRequest, apperrors.ErrCodeInvalidInput},
		{"bad style", `{"style": {"version": 7}}`, http.StatusBadRequest, apperrors.ErrCodeInvalidStyle},
		{"bad style url", `{"style_url": "ftp://example.com/style.json"}`, http.StatusBadRequest, apperrors.ErrCodeInvalidURL},
		{"local tile archive", `{"style": {"version": 8, "sources": {"s": {"type": "raster", "tiles": ["mbtiles:///tmp/world.mbtiles/{z}/{x}/{y}"]}}, "layers": [{"id": "r", "type": "raster", "source": "s"}]}}`, http.StatusBadRequest, apperrors.ErrCodeInvalidURL},
		{"local tilejson", `{"style": {"version": 8, "sources": {"s": {"type": "raster", "url": "file:///etc/tiles.json"}}, "layers": []}}`, http.StatusBadRequest, apperrors.ErrCodeInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			rec := do(t, s, http.MethodPost, "/v1/exports", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decodeError(t, rec)
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q (%s)", body.Code, tt.code, body.Message)
			}
			if body.RequestID == "" {
				t.Error("request_id missing")
			}
		})
	}
}

func TestExportBusy(t *testing.T) {
	s := newTestServer(t, nil)
	for i := 0; i < cap(s.sem); i++ {
		s.sem <- struct{}{}
	}
	rec := do(t, s, http.MethodPost, "/v1/exports", exportBody("png"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if body := decodeError(t, rec); body.Code != apperrors.ErrCodeBusy {
		t.Errorf("code = %q, want %q", body.Code, apperrors.ErrCodeBusy)
	}
}

func TestExportBodyLimit(t *testing.T) {
	runner := pipeline.NewRunner(nil, nil, nil, nil, nil)
	cfg := config.Default().Server
	cfg.MaxBodyBytes = 16
	s := New(runner, cfg, nil)

	rec := do(t, s, http.MethodPost, "/v1/exports", exportBody("png"))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestExportBearerCredential(t *testing.T) {
	styles := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "pk.secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Write([]byte(blueStyle))
	}))
	defer styles.Close()

	s := newTestServer(t, nil)
	body := `{"style_url": "` + styles.URL + `/style.json", "zoom": 1, "page_size": "A6", "format": "png", "dpi": 72}`
	req := httptest.NewRequest(http.MethodPost, "/v1/exports", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer pk.secret")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestUpstreamFailureLoggedOnce(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	var buf bytes.Buffer
	runner := pipeline.NewRunner(nil, tiles.NewRouter(tiles.NewHTTPFetcher(tiles.WithRetry(1, 0))), nil, nil, nil)
	defer runner.Close()
	s := New(runner, config.Default().Server, log.New(&buf))

	rec := do(t, s, http.MethodPost, "/v1/exports", `{"style_url": "`+upstream.URL+`/style.json"}`)
	if rec.Code < http.StatusInternalServerError {
		t.Fatalf("status = %d, want 5xx", rec.Code)
	}
	if n := strings.Count(buf.String(), "export failed"); n != 1 {
		t.Errorf("\"export failed\" logged %d times, want 1:\n%s", n, buf.String())
	}
}
