package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/matzehuels/mapexport/pkg/errors"
	"github.com/matzehuels/mapexport/pkg/export"
	"github.com/matzehuels/mapexport/pkg/pipeline"
	"github.com/matzehuels/mapexport/pkg/units"
)

// exportResponse is the body of an inline export.
type exportResponse struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	DataURI   string `json:"data_uri"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Cached    bool   `json:"cached"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      apperrors.Code `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
}

// optionsResponse lists what an export may be configured with.
type optionsResponse struct {
	PageSizes    []units.NamedPageSize `json:"page_sizes"`
	Formats      []string              `json:"formats"`
	DPIs         []int                 `json:"dpis"`
	Orientations []string              `json:"orientations"`
	Defaults     export.Settings       `json:"defaults"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"live_targets": s.runner.Engine.Live(),
	})
}

func (s *Server) handlePageSizes(w http.ResponseWriter, r *http.Request) {
	formats := make([]string, 0, len(export.Formats()))
	for _, f := range export.Formats() {
		formats = append(formats, f.String())
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		PageSizes:    units.PageSizes(),
		Formats:      formats,
		DPIs:         units.DPIs,
		Orientations: []string{units.Landscape.String(), units.Portrait.String()},
		Defaults:     s.runner.Defaults,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	if !s.acquire() {
		s.writeError(w, r, &export.Error{Kind: export.KindBusy, Err: export.ErrBusy})
		return
	}
	defer s.release()

	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	var opts pipeline.Options
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, r, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "invalid request body: %v", err))
		return
	}
	if opts.Credential == "" {
		opts.Credential = bearerToken(r)
	}

	ctx := r.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	downloads := &export.MemoryDownloader{}
	opts.Logger = logger
	opts.Feedback = export.LogFeedback{Logger: logger}
	opts.Downloader = downloads

	result, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	art, ok := downloads.Last()
	if !ok {
		art = result.Artifact
	}

	w.Header().Set("X-Cache", cacheStatus(result.CacheInfo.ArtifactHit))
	if inline, _ := strconv.ParseBool(r.URL.Query().Get("inline")); inline {
		writeJSON(w, http.StatusOK, exportResponse{
			Name:      art.Name,
			MediaType: art.MediaType,
			DataURI:   art.DataURI(),
			Width:     result.Stats.Width,
			Height:    result.Stats.Height,
			Cached:    result.CacheInfo.ArtifactHit,
		})
		return
	}

	w.Header().Set("Content-Type", art.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		logger.Warn("write response", "error", err)
	}
}

// writeError maps err onto a status code and a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errorBody{
			Code:      apperrors.ErrCodeInvalidInput,
			Message:   fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit),
			RequestID: requestIDFrom(r.Context()),
		}})
		return
	}
	// Export failures were already reported through the request's feedback.
	ae := export.AsAppError(err)
	writeJSON(w, apperrors.HTTPStatus(ae.Code), errorResponse{Error: errorBody{
		Code:      ae.Code,
		Message:   ae.Message,
		RequestID: requestIDFrom(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func bearerToken(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
