// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web serves the upload form: a browser uploads one CVAT XML file,
// the server converts it and offers the LabelMe JSON files as a ZIP.
package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/cvat2labelme/internal/bundle"
	"github.com/pdiddy/cvat2labelme/internal/cache"
	"github.com/pdiddy/cvat2labelme/internal/convert"
	"github.com/pdiddy/cvat2labelme/internal/logger"
	"github.com/pdiddy/cvat2labelme/internal/session"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Server holds the handlers of the upload form.
type Server struct {
	memo     *cache.Memo
	sessions *session.Manager
	log      *logger.Logger
	cfg      types.ServeConfig
}

// NewServer returns a Server converting uploads through memo and keeping
// per-browser results in sessions.
func NewServer(cfg types.ServeConfig, memo *cache.Memo, sessions *session.Manager, log *logger.Logger) *Server {
	def := types.DefaultConfig().Serve
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.DownloadName == "" {
		cfg.DownloadName = def.DownloadName
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{memo: memo, sessions: sessions, log: log, cfg: cfg}
}

// Handler returns the routes of the form wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /convert", s.handleConvert)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /api/convert", s.handleAPIConvert)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

type indexPage struct {
	Flash        *session.Flash
	HasResult    bool
	Count        int
	DownloadName string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.ID(w, r)
	st := s.sessions.Snapshot(id)

	page := indexPage{
		Flash:        st.Flash,
		HasResult:    st.Result != nil,
		Count:        st.Result.Len(),
		DownloadName: s.cfg.DownloadName,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.log.Error("rendering index: %v", err)
	}
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.ID(w, r)
	s.convertUpload(id, w, r)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// convertUpload converts the posted file into session id and leaves the
// outcome as a flash message.
func (s *Server) convertUpload(id string, w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.log.Warning("rejected upload: %v", err)
		s.flash(id, session.FlashError, err.Error())
		return
	}

	s.sessions.Update(id, func(st *session.State) {
		if st.LastUpload != "" && st.LastUpload != up.identity() {
			st.Reset()
		}
		st.LastUpload = up.identity()
	})

	res, err := s.memo.Convert(r.Context(), up.content)
	if err != nil {
		s.log.Warning("converting %s: %v", up.name, err)
		s.flash(id, session.FlashError, failureMessage(err))
		return
	}

	s.log.Info("converted %s into %d files", up.name, res.Len())
	s.sessions.Update(id, func(st *session.State) {
		st.Result = res
		st.Flash = &session.Flash{
			Level:   session.FlashSuccess,
			Message: fmt.Sprintf("Converted %d files", res.Len()),
		}
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.ID(w, r)
	res, ok := s.sessions.Result(id)
	if !ok {
		http.Error(w, "no converted files", http.StatusNotFound)
		return
	}
	s.writeZip(w, res)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.ID(w, r)
	if err := s.memo.Clear(r.Context()); err != nil {
		s.log.Error("clearing cache: %v", err)
	}
	s.sessions.Clear(id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAPIConvert(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, err.Error(), types.FailureNone, http.StatusBadRequest)
		return
	}

	res, err := s.memo.Convert(r.Context(), up.content)
	if err != nil {
		s.log.Warning("converting %s: %v", up.name, err)
		respondError(w, err.Error(), convert.Kind(err), http.StatusBadRequest)
		return
	}

	s.log.Info("converted %s into %d files", up.name, res.Len())
	s.writeZip(w, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) writeZip(w http.ResponseWriter, res *convert.Result) {
	data, err := bundle.Zip(res)
	if err != nil {
		s.log.Error("building archive: %v", err)
		http.Error(w, "failed to build archive", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.cfg.DownloadName))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.Write(data)
}

func (s *Server) flash(id string, level session.FlashLevel, msg string) {
	s.sessions.Update(id, func(st *session.State) {
		st.Flash = &session.Flash{Level: level, Message: msg}
	})
}

// upload is an XML file received from a form post.
type upload struct {
	name    string
	size    int64
	content []byte
}

// identity distinguishes one upload from another the way the form sees
// them: by file name and size.
func (u *upload) identity() string {
	return fmt.Sprintf("%s_%d", u.name, u.size)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("no file uploaded")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xml") {
		return nil, fmt.Errorf("%s is not an .xml file", header.Filename)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return &upload{name: header.Filename, size: header.Size, content: content}, nil
}

// failureMessage renders a conversion error for the flash message.
func failureMessage(err error) string {
	switch convert.Kind(err) {
	case types.FailureParse:
		return fmt.Sprintf("Failed to parse XML: %v", err)
	case types.FailureProcessing:
		return fmt.Sprintf("Failed to process XML: %v", err)
	default:
		return fmt.Sprintf("Failed to convert XML: %v", err)
	}
}

// apiError is the JSON body of a failed API request.
type apiError struct {
	Error string            `json:"error"`
	Kind  types.FailureKind `json:"kind,omitempty"`
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, kind types.FailureKind, status int) {
	respondJSON(w, apiError{Error: message, Kind: kind}, status)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
